package model

import "time"

// Post represents a published microblog post.
//
// Author is a denormalized copy of the authoring user's username at the time
// of posting, not a foreign key. Timestamp is the creation time until the
// post is edited, after which it holds the edit time and Edited is set —
// and never reset.
//
// Likes is a plain counter. A like is not a stored entity: liking increments
// the counter with no per-user ledger, so repeated likes from the same user
// each count. That matches the reference behavior and is deliberately kept.
type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Edited    bool      `json:"edited"`
	Likes     int64     `json:"likes"`
}
