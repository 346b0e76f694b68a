// Package stacktrace classifies a raw host-error string into a trap kind
// and parses any embedded call-stack frames, entirely by string
// inspection — the debug text is all a trap boundary has to work with.
package stacktrace

import (
	"strconv"
	"strings"

	"github.com/erst-labs/simulate/internal/simtypes"
)

// FromHostError builds a WasmStackTrace by classifying and parsing a raw
// error string produced by the metered host.
func FromHostError(errorDebug string) simtypes.WasmStackTrace {
	return simtypes.WasmStackTrace{
		TrapKind:       classifyTrap(errorDebug),
		RawMessage:     errorDebug,
		Frames:         extractFrames(errorDebug),
		SorobanWrapped: containsAny(errorDebug, "HostError", "ScError", "Error(WasmVm"),
	}
}

// FromPanic builds a WasmStackTrace from a recovered panic payload. No
// frames are recoverable from a Go panic value alone.
func FromPanic(message string) simtypes.WasmStackTrace {
	return simtypes.WasmStackTrace{
		TrapKind:   simtypes.TrapKind{Kind: simtypes.TrapUnknown, Message: message},
		RawMessage: message,
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func classifyTrap(msg string) simtypes.TrapKind {
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "out of bounds memory"):
		return simtypes.TrapKind{Kind: simtypes.TrapOutOfBoundsMemoryAccess}
	case strings.Contains(lower, "out of bounds table"):
		return simtypes.TrapKind{Kind: simtypes.TrapOutOfBoundsTableAccess}
	case strings.Contains(lower, "integer overflow"):
		return simtypes.TrapKind{Kind: simtypes.TrapIntegerOverflow}
	case strings.Contains(lower, "integer division by zero"), strings.Contains(lower, "division by zero"):
		return simtypes.TrapKind{Kind: simtypes.TrapIntegerDivisionByZero}
	case strings.Contains(lower, "invalid conversion to int"):
		return simtypes.TrapKind{Kind: simtypes.TrapInvalidConversionToInt}
	case strings.Contains(lower, "unreachable"):
		return simtypes.TrapKind{Kind: simtypes.TrapUnreachable}
	case strings.Contains(lower, "call stack exhausted"), strings.Contains(lower, "stack overflow"):
		return simtypes.TrapKind{Kind: simtypes.TrapStackOverflow}
	case strings.Contains(lower, "indirect call type mismatch"):
		return simtypes.TrapKind{Kind: simtypes.TrapIndirectCallTypeMismatch}
	case strings.Contains(lower, "undefined element"), strings.Contains(lower, "uninitialized element"):
		return simtypes.TrapKind{Kind: simtypes.TrapUndefinedElement}
	case strings.Contains(lower, "hosterror"), strings.Contains(lower, "host error"):
		return simtypes.TrapKind{Kind: simtypes.TrapHostError, Message: msg}
	default:
		return simtypes.TrapKind{Kind: simtypes.TrapUnknown, Message: msg}
	}
}

// extractFrames parses lines of two shapes: numbered "N: <body>" and bare
// "func[...]"/"<..." lines, in that priority order per line.
func extractFrames(errorDebug string) []simtypes.StackFrame {
	var frames []simtypes.StackFrame

	for _, line := range strings.Split(errorDebug, "\n") {
		trimmed := strings.TrimSpace(line)

		if frame, ok := tryParseNumberedFrame(trimmed); ok {
			frames = append(frames, frame)
			continue
		}

		if strings.HasPrefix(trimmed, "func[") || strings.HasPrefix(trimmed, "<") {
			if frame, ok := tryParseBareFrame(trimmed, len(frames)); ok {
				frames = append(frames, frame)
			}
		}
	}

	return frames
}

func tryParseNumberedFrame(line string) (simtypes.StackFrame, bool) {
	idxStr, rest, ok := strings.Cut(line, ":")
	if !ok {
		return simtypes.StackFrame{}, false
	}
	idxStr = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(idxStr), "#"))
	index, err := strconv.Atoi(idxStr)
	if err != nil {
		return simtypes.StackFrame{}, false
	}

	funcName, funcIndex, wasmOffset := parseFrameBody(strings.TrimSpace(rest))
	return simtypes.StackFrame{
		Index:      index,
		FuncIndex:  funcIndex,
		FuncName:   funcName,
		WasmOffset: wasmOffset,
	}, true
}

func tryParseBareFrame(line string, index int) (simtypes.StackFrame, bool) {
	funcName, funcIndex, wasmOffset := parseFrameBody(line)
	if funcName == nil && funcIndex == nil {
		return simtypes.StackFrame{}, false
	}
	return simtypes.StackFrame{
		Index:      index,
		FuncIndex:  funcIndex,
		FuncName:   funcName,
		WasmOffset: wasmOffset,
	}, true
}

// parseFrameBody recognizes "func[42]", "func[42] @ 0xa3c",
// "some_function_name @ 0xb20", and "<module>::path::function".
func parseFrameBody(body string) (funcName *string, funcIndex *uint32, wasmOffset *uint64) {
	namePart, offsetPart, hasOffset := strings.Cut(body, " @ ")

	if hasOffset {
		off := strings.TrimSpace(offsetPart)
		if hex, ok := strings.CutPrefix(off, "0x"); ok {
			if v, err := strconv.ParseUint(hex, 16, 64); err == nil {
				wasmOffset = &v
			}
		} else if v, err := strconv.ParseUint(off, 10, 64); err == nil {
			wasmOffset = &v
		}
	}

	nameTrimmed := strings.TrimSpace(namePart)
	if inner, ok := strings.CutPrefix(nameTrimmed, "func["); ok {
		if idxStr, ok := strings.CutSuffix(inner, "]"); ok {
			if v, err := strconv.ParseUint(idxStr, 10, 32); err == nil {
				idx := uint32(v)
				funcIndex = &idx
			}
		}
	} else if nameTrimmed != "" {
		funcName = &nameTrimmed
	}

	return funcName, funcIndex, wasmOffset
}
