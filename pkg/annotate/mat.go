package annotate

import (
	"github.com/teslashibe/go-eyestate/pkg/eyestate"
	"gocv.io/x/gocv"
)

// Mat draws onto gocv frames in place.
type Mat struct{}

// Annotate draws the region box and the "<Open|Closed> (p.pp)" label.
func (Mat) Annotate(frame gocv.Mat, p eyestate.Prediction) {
	c := Color(p.Label)
	gocv.Rectangle(&frame, p.Region, c, Thickness)
	gocv.PutText(&frame, p.Text(), TextOrigin(p.Region), gocv.FontHersheySimplex, FontScale, c, Thickness)
}
