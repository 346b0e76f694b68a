// Package trapboundary wraps a single call in a recover scope and
// reports which of the boundary's three outcomes occurred: success,
// returned error, or panic. It is the single-call-frame descendant of
// the teacher's goroutine-supervising panicGroup/MonitoredRoutine idiom:
// the simulator has no worker goroutines to supervise, only one call to
// protect before the process must still emit well-formed JSON.
package trapboundary

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// unwindStackLines skips debug.Stack()'s own header frames (the call to
// debug.Stack and this package's recover closure) before the call stack
// becomes useful to a reader.
const unwindStackLines = 4

// Result is the three-way outcome of a guarded call.
type Result struct {
	Err          error
	Panicked     bool
	PanicMessage string
	CallStack    []string
}

// Run invokes fn, recovering any panic instead of letting it unwind past
// this frame. Exactly one of (Err, Panicked) describes the non-success
// outcome; both are zero on success.
func Run(fn func() error) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result.Panicked = true
			result.PanicMessage = fmt.Sprintf("%v", r)
			result.CallStack = callStack(r)
		}
	}()
	result.Err = fn()
	return result
}

// callStack formats the recovered value and the stack at the point of
// panic into a flat, loggable slice of lines.
func callStack(recovered any) []string {
	lines := []string{fmt.Sprintf("%v", recovered)}

	raw := string(debug.Stack())
	for i, line := range strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == '\t' }) {
		if i < unwindStackLines {
			continue
		}
		lines = append(lines, line)
		if strings.Contains(line, "(*Host).InvokeFunction") || strings.Contains(line, "trapboundary.Run") {
			break
		}
	}
	return lines
}
