package effects

import (
	"fmt"
	"math"
	"strings"
)

// Motion maps local slide time to a zoom factor applied to the source image.
// period is the slide duration; base is the scale at which the image just
// fits the frame.
type Motion interface {
	ScaleAt(t, period, base float64) float64
}

// Breathing is a slow sinusoidal zoom around Offset*base. One full breath
// spans the slide, so the scale at the end equals the scale at the start.
type Breathing struct {
	Offset    float64
	Amplitude float64
}

// DefaultBreathing keeps the zoom within [1.00, 1.06] of the fitted size.
var DefaultBreathing = Breathing{Offset: 1.03, Amplitude: 0.03}

func (b Breathing) ScaleAt(t, period, base float64) float64 {
	if period <= 0 {
		return base * b.Offset
	}
	return base * (b.Offset + b.Amplitude*math.Sin(2*math.Pi*t/period))
}

// Peak is the largest factor ScaleAt can return for base 1.
func (b Breathing) Peak() float64 {
	return b.Offset + math.Abs(b.Amplitude)
}

// Static shows the fitted image without movement.
type Static struct{}

func (Static) ScaleAt(_, _, base float64) float64 { return base }

// BaseScale is the fit-within factor of a w x h image in a fw x fh frame.
func BaseScale(fw, fh, w, h int) float64 {
	if w <= 0 || h <= 0 {
		return 0
	}
	return math.Min(float64(fw)/float64(w), float64(fh)/float64(h))
}

// Peak reports the largest factor m can return for base 1 over one period.
func Peak(m Motion) float64 {
	switch v := m.(type) {
	case Breathing:
		return v.Peak()
	case *Breathing:
		return v.Peak()
	case Static, *Static:
		return 1
	}
	// Unknown motion: sample one period.
	peak := 1.0
	for i := 0; i <= 100; i++ {
		peak = math.Max(peak, m.ScaleAt(float64(i), 100, 1))
	}
	return peak
}

// ByName resolves the motion selected in the config.
func ByName(name string) (Motion, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "breathing", "zoom":
		return DefaultBreathing, nil
	case "static", "none":
		return Static{}, nil
	}
	return nil, fmt.Errorf("unknown motion %q", name)
}
