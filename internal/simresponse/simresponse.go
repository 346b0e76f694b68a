// Package simresponse builds and serializes the single JSON object the
// process writes to standard output, mirroring the grounding source's
// send_error/println!(serde_json::to_string) pattern: every exit path
// through the pipeline ends by constructing one SimulationResponse and
// marshaling it exactly once.
package simresponse

import (
	"encoding/json"
	"fmt"

	"github.com/erst-labs/simulate/internal/simtypes"
)

// fallbackJSON is emitted, verbatim, on the one path Marshal itself
// cannot fail over: when the response we just built fails to encode.
// It must be valid JSON by construction so stdout is never empty.
const fallbackJSON = `{"status":"error","error":"internal error: failed to serialize response","error_code":"ERR_SERIALIZATION_FAILED"}`

// Success builds a success response from the pipeline's accumulated
// fields. Any nil optional fields are simply omitted by the struct's
// omitempty tags.
func Success(opts SuccessOptions) simtypes.SimulationResponse {
	return simtypes.SimulationResponse{
		Status:             "success",
		Events:             opts.Events,
		DiagnosticEvents:   opts.DiagnosticEvents,
		CategorizedEvents:  opts.CategorizedEvents,
		Logs:               opts.Logs,
		BudgetUsage:        opts.BudgetUsage,
		Flamegraph:         opts.Flamegraph,
		OptimizationReport: opts.OptimizationReport,
		LcovReport:         opts.LcovReport,
		LcovReportPath:     opts.LcovReportPath,
		SourceLocation:     opts.SourceLocation,
	}
}

// SuccessOptions collects the optional fields a successful run may have
// accumulated. Zero values are all valid and simply omitted.
type SuccessOptions struct {
	Events             []string
	DiagnosticEvents   []simtypes.DiagnosticEvent
	CategorizedEvents  []simtypes.CategorizedEvent
	Logs               []string
	BudgetUsage        *simtypes.BudgetUsage
	Flamegraph         string
	OptimizationReport *simtypes.OptimizationReport
	LcovReport         string
	LcovReportPath     string
	SourceLocation     *simtypes.SourceLocation
}

// Error builds an error response carrying a plain message and, when the
// failure happened mid-execution, whatever budget/logs/trace context had
// already accumulated before the failure.
func Error(msg string, opts ErrorOptions) simtypes.SimulationResponse {
	return simtypes.SimulationResponse{
		Status:         "error",
		Error:          msg,
		Logs:           opts.Logs,
		BudgetUsage:    opts.BudgetUsage,
		StackTrace:     opts.StackTrace,
		WasmOffset:     opts.WasmOffset,
		ErrorCode:      opts.ErrorCode,
		SourceLocation: opts.SourceLocation,
	}
}

// ErrorOptions collects the optional context an error response may carry.
type ErrorOptions struct {
	Logs           []string
	BudgetUsage    *simtypes.BudgetUsage
	StackTrace     *simtypes.WasmStackTrace
	WasmOffset     *uint64
	ErrorCode      string
	SourceLocation *simtypes.SourceLocation
}

// StructuredErrorMessage renders a StructuredError as its own JSON string,
// the value that goes into Response.Error for host/panic failures —
// matching the grounding source's habit of double-encoding the error
// detail as a JSON string within the outer JSON object.
func StructuredErrorMessage(kind, message string) string {
	se := simtypes.StructuredError{Kind: kind, Message: message}
	encoded, err := json.Marshal(se)
	if err != nil {
		return message
	}
	return string(encoded)
}

// Emit marshals resp to a single line of JSON, falling back to a fixed,
// known-valid error document if marshaling itself fails. It never
// returns an error: the contract with the caller is that stdout always
// gets exactly one well-formed JSON object.
func Emit(resp simtypes.SimulationResponse) string {
	encoded, err := json.Marshal(resp)
	if err != nil {
		return fallbackJSON
	}
	return string(encoded)
}

// EmitLine is Emit with the trailing newline the process writes to
// stdout, kept separate so callers that only want the bytes (tests,
// logging) don't have to trim it back off.
func EmitLine(resp simtypes.SimulationResponse) string {
	return fmt.Sprintf("%s\n", Emit(resp))
}
