package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpolateColor(t *testing.T) {
	assert.Equal(t, "#000000", InterpolateColor("#000000", "#ffffff", 0))
	assert.Equal(t, "#ffffff", InterpolateColor("#000000", "#ffffff", 1))
	assert.Equal(t, "#808080", InterpolateColor("#000000", "#ffffff", 0.5))
	assert.Equal(t, "#ffffff", InterpolateColor("#000000", "#ffffff", 7), "clamped")
	assert.Equal(t, "#cba6f7", InterpolateColor("bogus", "#cba6f7", 0.3))
}

func TestCurrent(t *testing.T) {
	orig := Current()
	t.Cleanup(func() { SetCurrent(orig) })

	assert.Equal(t, "catppuccin-mocha", orig.Name)
	assert.Same(t, orig.S(), orig.S(), "styles are built once")

	custom := &Theme{Name: "custom"}
	SetCurrent(custom)
	assert.Same(t, custom, Current())
}
