// Package events classifies the metered host's diagnostic events into
// categories and derives best-effort instruction hints, entirely from
// fields already present on the event — no external event-schema
// library is wired because the event shape here is ad hoc to this
// simulator, not a wire format any pack dependency models.
package events

import (
	"strings"

	"github.com/erst-labs/simulate/internal/simtypes"
)

const instructionMarker = "Instruction:"

// Category classifies a DiagnosticEvent's event_type into the three-way
// tag the response carries.
func Category(event simtypes.DiagnosticEvent) string {
	switch strings.ToLower(event.EventType) {
	case "contract":
		return "Contract"
	case "system":
		return "System"
	case "diagnostic":
		return "Diagnostic"
	default:
		return "Diagnostic"
	}
}

// Classify annotates an event with its wasm_instruction hint, extracted
// from the data field when a topic carries the "Instruction:" marker.
// in_successful_contract_call is never touched here: the host already
// sets it correctly (the negation of its internal failed-call flag) at
// the point the event is recorded, and this function must not re-derive
// or invert it — that inversion is the historical bug this component
// exists to avoid reproducing.
func Classify(event simtypes.DiagnosticEvent) simtypes.DiagnosticEvent {
	event.WasmInstruction = extractInstructionHint(event)
	return event
}

// CategorizeAll pairs every event with its derived category, in order.
func CategorizeAll(rawEvents []simtypes.DiagnosticEvent) []simtypes.CategorizedEvent {
	out := make([]simtypes.CategorizedEvent, 0, len(rawEvents))
	for _, e := range rawEvents {
		classified := Classify(e)
		out = append(out, simtypes.CategorizedEvent{
			Category: Category(classified),
			Event:    classified,
		})
	}
	return out
}

func extractInstructionHint(event simtypes.DiagnosticEvent) *uint64 {
	hasMarker := false
	for _, topic := range event.Topics {
		if strings.Contains(topic, instructionMarker) {
			hasMarker = true
			break
		}
	}
	if !hasMarker {
		return nil
	}

	idx := strings.Index(event.Data, instructionMarker)
	if idx < 0 {
		return nil
	}
	rest := strings.TrimSpace(event.Data[idx+len(instructionMarker):])
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return nil
	}
	var v uint64
	for _, c := range rest[:end] {
		v = v*10 + uint64(c-'0')
	}
	return &v
}
