package slide

import (
	"fmt"
	"image"
)

// FrameSize is the output video resolution. It is fixed for a whole run.
type FrameSize struct {
	Width  int
	Height int
}

func (f FrameSize) String() string {
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}

// Rect returns the frame rectangle anchored at the origin.
func (f FrameSize) Rect() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// Valid reports whether both dimensions are positive.
func (f FrameSize) Valid() bool {
	return f.Width > 0 && f.Height > 0
}
