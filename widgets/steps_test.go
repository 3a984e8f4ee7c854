package widgets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderStepRow(t *testing.T) {
	row := RenderStepRow("ch1", []StepCell{
		{Color: [3]uint8{255, 0, 0}, Symbol: '●'},
		{Color: [3]uint8{0, 0, 255}, Symbol: '·'},
	})
	assert.True(t, strings.HasPrefix(row, "ch1"))
	assert.Contains(t, row, "●")
	assert.Contains(t, row, "·")
	assert.Less(t, strings.Index(row, "●"), strings.Index(row, "·"))
}

func TestRenderKeyLine(t *testing.T) {
	line := RenderKeyLine([]KeyBinding{{Key: "space", Desc: "play"}, {Key: "q", Desc: "quit"}})
	assert.Equal(t, "space:play  q:quit", line)
}

func TestRGBToHex(t *testing.T) {
	assert.Equal(t, "#0a0bff", rgbToHex([3]uint8{10, 11, 255}))
}
