package annotate

import (
	"image"
	"image/draw"

	"github.com/teslashibe/go-eyestate/pkg/eyestate"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Image draws onto any draw.Image without cgo.
type Image struct{}

// Annotate draws the region box and label onto img.
func (Image) Annotate(img draw.Image, p eyestate.Prediction) {
	src := image.NewUniform(Color(p.Label))
	r := p.Region.Intersect(img.Bounds())
	if !eyestate.Degenerate(r) {
		strokeRect(img, r, src)
	}

	origin := TextOrigin(p.Region)
	d := &font.Drawer{
		Dst:  img,
		Src:  src,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(origin.X, origin.Y),
	}
	d.DrawString(p.Text())
}

// strokeRect draws a Thickness-wide outline inside r.
func strokeRect(dst draw.Image, r image.Rectangle, src image.Image) {
	t := min(Thickness, r.Dx(), r.Dy())
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}
