package flamegraph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderFoldedFormat(t *testing.T) {
	folded, svg := Render(5000, 2000)
	require.Equal(t, "Total;CPU 5000\nTotal;Memory 2000\n", folded)
	require.True(t, strings.HasPrefix(svg, "<svg"))
	require.True(t, strings.HasSuffix(svg, "</svg>"))
	require.Contains(t, svg, "CPU 5000")
	require.Contains(t, svg, "Memory 2000")
}

func TestRenderZeroValues(t *testing.T) {
	folded, svg := Render(0, 0)
	require.Equal(t, "Total;CPU 0\nTotal;Memory 0\n", folded)
	require.Contains(t, svg, `width="0"`)
}

func TestBarWidthProportional(t *testing.T) {
	require.Equal(t, width, barWidth(100, 100))
	require.Equal(t, 0, barWidth(0, 100))
	require.Equal(t, 0, barWidth(5, 0))
}
