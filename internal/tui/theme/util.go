package theme

import colorful "github.com/lucasb-eyer/go-colorful"

// InterpolateColor blends two hex colors in RGB space. pos is clamped to
// [0, 1]; an unparsable endpoint yields the other one unchanged.
func InterpolateColor(colorA, colorB string, pos float64) string {
	a, errA := colorful.Hex(colorA)
	b, errB := colorful.Hex(colorB)
	switch {
	case errA != nil && errB != nil:
		return colorA
	case errA != nil:
		return colorB
	case errB != nil:
		return colorA
	}
	pos = min(max(pos, 0), 1)
	return a.BlendRgb(b, pos).Clamped().Hex()
}
