// Package flamegraph renders a two-line folded-stack profile of a
// completed invocation into a minimal, valid SVG. This is a
// demonstration artifact, not a faithful flamegraph renderer: the
// grounding source feeds exactly the same two synthetic lines
// ("Total;CPU <n>" / "Total;Memory <n>") into a full flamegraph
// library, and no pack dependency brings an equivalent folded-stack-to-
// SVG renderer, so the two bars are drawn directly.
package flamegraph

import "fmt"

const (
	width     = 600
	barHeight = 30
)

// Render builds a folded-stack summary (for anyone piping the raw text
// elsewhere) and a minimal SVG with one bar per counter.
func Render(cpuInstructions, memoryBytes uint64) (folded string, svg string) {
	folded = fmt.Sprintf("Total;CPU %d\nTotal;Memory %d\n", cpuInstructions, memoryBytes)
	svg = renderSVG(cpuInstructions, memoryBytes)
	return folded, svg
}

func renderSVG(cpuInstructions, memoryBytes uint64) string {
	cpuWidth := barWidth(cpuInstructions, maxUint(cpuInstructions, memoryBytes))
	memWidth := barWidth(memoryBytes, maxUint(cpuInstructions, memoryBytes))

	return fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`+
			`<title>Soroban Resource Consumption</title>`+
			`<rect x="0" y="0" width="%d" height="%d" fill="#e05d44"/>`+
			`<text x="4" y="%d">CPU %d</text>`+
			`<rect x="0" y="%d" width="%d" height="%d" fill="#4c9aff"/>`+
			`<text x="4" y="%d">Memory %d</text>`+
			`</svg>`,
		width, barHeight*2+10,
		cpuWidth, barHeight,
		barHeight-8, cpuInstructions,
		barHeight+5, memWidth, barHeight,
		barHeight*2+1, memoryBytes,
	)
}

func barWidth(value, max uint64) int {
	if max == 0 {
		return 0
	}
	return int(float64(value) / float64(max) * float64(width))
}

func maxUint(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
