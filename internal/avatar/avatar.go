// Package avatar renders the deterministic fallback avatar for users who
// have no avatar URL: a colored square with the first letter of the username
// centered in white. The same username always produces the same image.
package avatar

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"unicode"
	"unicode/utf8"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Size is the edge length of the generated image in pixels.
const Size = 100

// palette is indexed by the letter's code point modulo its length, so the
// background color is a stable function of the username's first letter.
var palette = []color.RGBA{
	{0xFF, 0x57, 0x33, 0xFF},
	{0x33, 0xFF, 0x57, 0xFF},
	{0x33, 0x57, 0xFF, 0xFF},
	{0xF0, 0x33, 0xFF, 0xFF},
	{0xFF, 0x33, 0xA6, 0xFF},
}

var white = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}

// Generate renders the avatar for a username as a PNG.
func Generate(username string) ([]byte, error) {
	letter := firstLetter(username)

	dst := image.NewRGBA(image.Rect(0, 0, Size, Size))
	bg := palette[int(letter)%len(palette)]
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, xdraw.Src)

	drawLetter(dst, letter)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("avatar: encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

func firstLetter(username string) rune {
	r, _ := utf8.DecodeRuneInString(username)
	if r == utf8.RuneError {
		r = '?'
	}
	return unicode.ToUpper(r)
}

// drawLetter rasterizes the glyph with the basicfont face onto a small
// transparent canvas, then scales it up onto the center of dst. The face is
// 7×13; nearest-neighbor scaling keeps the blocky look crisp.
func drawLetter(dst *image.RGBA, letter rune) {
	const (
		glyphW = 7
		glyphH = 13
		scale  = 4
	)

	small := image.NewRGBA(image.Rect(0, 0, glyphW, glyphH))
	d := font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(white),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(0, basicfont.Face7x13.Ascent),
	}
	d.DrawString(string(letter))

	w, h := glyphW*scale, glyphH*scale
	x := (Size - w) / 2
	y := (Size - h) / 2
	target := image.Rect(x, y, x+w, y+h)

	xdraw.NearestNeighbor.Scale(dst, target, small, small.Bounds(), xdraw.Over, nil)
}
