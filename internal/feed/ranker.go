// Package feed computes the total order of posts for a given sort criterion.
//
// The ranker is total: every criterion defines a strict order with an
// explicit tie-break, and an unrecognized criterion string is not an error —
// it means the default order. The same ranker serves both the global feed and
// a single author's profile; only the input set differs.
package feed

import (
	"sort"

	"github.com/sakif/poemblog/internal/model"
)

// Criterion identifies one of the supported post orderings.
type Criterion string

const (
	// CriterionRecencyDesc is the default: newest first, ties by id descending.
	CriterionRecencyDesc Criterion = "recency-desc"
	// CriterionRecencyAsc is oldest first, ties by id ascending.
	CriterionRecencyAsc Criterion = "recency-asc"
	// CriterionLikesDesc is most liked first, ties by timestamp descending.
	CriterionLikesDesc Criterion = "likes-desc"
	// CriterionLikesAsc is least liked first, ties by timestamp ascending.
	CriterionLikesAsc Criterion = "likes-asc"
)

// ParseCriterion maps a raw query string to a Criterion. Anything that isn't
// a recognized criterion falls back to CriterionRecencyDesc.
func ParseCriterion(s string) Criterion {
	switch Criterion(s) {
	case CriterionRecencyAsc, CriterionLikesDesc, CriterionLikesAsc:
		return Criterion(s)
	default:
		return CriterionRecencyDesc
	}
}

// Rank returns the posts ordered by the given criterion. The input slice is
// not modified; Rank sorts a copy.
func Rank(posts []model.Post, c Criterion) []model.Post {
	ranked := make([]model.Post, len(posts))
	copy(ranked, posts)

	less := comparator(c)
	sort.SliceStable(ranked, func(i, j int) bool {
		return less(&ranked[i], &ranked[j])
	})

	return ranked
}

// comparator returns the strict less-than for a criterion, tie-break included.
func comparator(c Criterion) func(a, b *model.Post) bool {
	switch c {
	case CriterionRecencyAsc:
		return func(a, b *model.Post) bool {
			if !a.Timestamp.Equal(b.Timestamp) {
				return a.Timestamp.Before(b.Timestamp)
			}
			return a.ID < b.ID
		}
	case CriterionLikesDesc:
		return func(a, b *model.Post) bool {
			if a.Likes != b.Likes {
				return a.Likes > b.Likes
			}
			return a.Timestamp.After(b.Timestamp)
		}
	case CriterionLikesAsc:
		return func(a, b *model.Post) bool {
			if a.Likes != b.Likes {
				return a.Likes < b.Likes
			}
			return a.Timestamp.Before(b.Timestamp)
		}
	default: // CriterionRecencyDesc
		return func(a, b *model.Post) bool {
			if !a.Timestamp.Equal(b.Timestamp) {
				return a.Timestamp.After(b.Timestamp)
			}
			return a.ID > b.ID
		}
	}
}
