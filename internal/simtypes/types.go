// Package simtypes holds the request/response shapes that flow through the
// simulation pipeline. They are plain value types: no behavior, no
// invariants enforced beyond what encoding/json already gives us.
package simtypes

import "encoding/json"

// Request is a single simulation job read from standard input.
type Request struct {
	EnvelopeXDR               string          `json:"envelope_xdr"`
	ResultMetaXDR             string          `json:"result_meta_xdr,omitempty"`
	LedgerEntries             map[string]string `json:"ledger_entries,omitempty"`
	ContractWasm              string          `json:"contract_wasm,omitempty"`
	WasmPath                  string          `json:"wasm_path,omitempty"`
	EnableOptimizationAdvisor bool            `json:"enable_optimization_advisor,omitempty"`
	Profile                   bool            `json:"profile,omitempty"`
	Timestamp                 string          `json:"timestamp,omitempty"`
	MockBaseFee               *uint32         `json:"mock_base_fee,omitempty"`
	MockGasPrice              *uint64         `json:"mock_gas_price,omitempty"`
	DeclaredFee               *uint64         `json:"declared_fee,omitempty"`
	EnableCoverage            bool            `json:"enable_coverage,omitempty"`
	CoverageLcovPath          string          `json:"coverage_lcov_path,omitempty"`
	ResourceCalibration       *ResourceCalibration `json:"resource_calibration,omitempty"`
	MemoryLimit               *uint64         `json:"memory_limit,omitempty"`
	RestorePreamble           json.RawMessage `json:"restore_preamble,omitempty"`
	NoCache                   bool            `json:"no_cache,omitempty"`
}

// ResourceCalibration overrides the cost model for a fixed set of
// cryptographic primitives. Each entry is (const_cost, per_byte_cost).
type ResourceCalibration struct {
	Sha256          *CostOverride  `json:"sha256,omitempty"`
	Keccak256       *CostOverride  `json:"keccak256,omitempty"`
	Ed25519         *CostOverride  `json:"ed25519,omitempty"`
}

// CostOverride is a (const, per-byte) linear cost model override.
type CostOverride struct {
	Const  uint64 `json:"const"`
	PerByte uint64 `json:"per_byte"`
}

// DiagnosticEvent is a host-emitted event, classified per the
// in_successful_contract_call invariant (always !failed_call).
type DiagnosticEvent struct {
	EventType               string   `json:"event_type"`
	ContractID               string  `json:"contract_id,omitempty"`
	Topics                   []string `json:"topics"`
	Data                     string   `json:"data"`
	InSuccessfulContractCall bool     `json:"in_successful_contract_call"`
	WasmInstruction          *uint64  `json:"wasm_instruction,omitempty"`
}

// CategorizedEvent pairs a coarse category with the raw diagnostic event,
// one-to-one and in emission order with the host's event stream.
type CategorizedEvent struct {
	Category string          `json:"category"`
	Event    DiagnosticEvent `json:"event"`
}

// StackFrame is one frame of a WASM backtrace, most-recent-trap-site first.
type StackFrame struct {
	Index       int     `json:"index"`
	FuncIndex   *uint32 `json:"func_index,omitempty"`
	FuncName    *string `json:"func_name,omitempty"`
	WasmOffset  *uint64 `json:"wasm_offset,omitempty"`
	Module      *string `json:"module,omitempty"`
}

// TrapKindTag enumerates the closed tagged union of trap kinds. It is a
// discriminated sum: HostError and Unknown carry a message in Message,
// every other tag ignores it.
type TrapKindTag string

const (
	TrapOutOfBoundsMemoryAccess  TrapKindTag = "OutOfBoundsMemoryAccess"
	TrapOutOfBoundsTableAccess   TrapKindTag = "OutOfBoundsTableAccess"
	TrapIntegerOverflow          TrapKindTag = "IntegerOverflow"
	TrapIntegerDivisionByZero    TrapKindTag = "IntegerDivisionByZero"
	TrapInvalidConversionToInt   TrapKindTag = "InvalidConversionToInt"
	TrapUnreachable              TrapKindTag = "Unreachable"
	TrapStackOverflow            TrapKindTag = "StackOverflow"
	TrapIndirectCallTypeMismatch TrapKindTag = "IndirectCallTypeMismatch"
	TrapUndefinedElement         TrapKindTag = "UndefinedElement"
	TrapHostError                TrapKindTag = "HostError"
	TrapUnknown                  TrapKindTag = "Unknown"
)

// TrapKind is the closed tagged union from the data model. Message is only
// populated for HostError and Unknown.
type TrapKind struct {
	Kind    TrapKindTag `json:"kind"`
	Message string      `json:"message,omitempty"`
}

// WasmStackTrace is the structured trap report attached to error responses.
type WasmStackTrace struct {
	TrapKind        TrapKind     `json:"trap_kind"`
	RawMessage      string       `json:"raw_message"`
	Frames          []StackFrame `json:"frames"`
	SorobanWrapped  bool         `json:"soroban_wrapped"`
}

// SourceLocation is produced only when the module carries debug symbols.
type SourceLocation struct {
	File       string  `json:"file"`
	Line       uint32  `json:"line"`
	Column     *uint32 `json:"column,omitempty"`
	ColumnEnd  *uint32 `json:"column_end,omitempty"`
	GithubLink *string `json:"github_link,omitempty"`
}

// BudgetUsage reports metering counters and derived percentages.
type BudgetUsage struct {
	CPUInstructionsConsumed uint64  `json:"cpu_instructions_consumed"`
	MemoryBytesConsumed     uint64  `json:"memory_bytes_consumed"`
	CPUUsagePercent         float64 `json:"cpu_usage_percent"`
	MemoryUsagePercent      float64 `json:"memory_usage_percent"`
	OperationsCount         int     `json:"operations_count"`
}

// OptimizationTip is one heuristic recommendation from the advisor.
type OptimizationTip struct {
	Severity         string  `json:"severity"`
	Category         string  `json:"category"`
	Message          string  `json:"message"`
	EstimatedSavings string  `json:"estimated_savings"`
	CodeLocationHint *string `json:"code_location,omitempty"`
}

// OptimizationReport is the advisor's full output for one invocation.
type OptimizationReport struct {
	Tips             []OptimizationTip `json:"tips"`
	EfficiencyScore  float64           `json:"efficiency_score"`
	CPUEfficiency    float64           `json:"cpu_efficiency"`
	MemoryEfficiency float64           `json:"memory_efficiency"`
	Comparison       string            `json:"comparison_to_baseline"`
}

// StructuredError is the normalized error shape carried in error responses.
type StructuredError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SimulationResponse is the single JSON object emitted on standard output.
// Success and error shapes share one struct with omitempty fields, matching
// the "always JSON, always single-line" contract.
type SimulationResponse struct {
	Status              string               `json:"status"`
	Events              []string             `json:"events,omitempty"`
	DiagnosticEvents     []DiagnosticEvent    `json:"diagnostic_events,omitempty"`
	CategorizedEvents    []CategorizedEvent   `json:"categorized_events,omitempty"`
	Logs                 []string             `json:"logs,omitempty"`
	BudgetUsage          *BudgetUsage         `json:"budget_usage,omitempty"`
	Flamegraph           string               `json:"flamegraph,omitempty"`
	OptimizationReport   *OptimizationReport  `json:"optimization_report,omitempty"`
	LcovReport           string               `json:"lcov_report,omitempty"`
	LcovReportPath       string               `json:"lcov_report_path,omitempty"`
	SourceLocation       *SourceLocation      `json:"source_location,omitempty"`

	Error      string          `json:"error,omitempty"`
	StackTrace *WasmStackTrace `json:"stack_trace,omitempty"`
	WasmOffset *uint64         `json:"wasm_offset,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
}

// Error codes recognized by the panic boundary.
const (
	ErrMemoryLimitExceeded = "ERR_MEMORY_LIMIT_EXCEEDED"
)

// Protocol-level metering ceilings. Named constants per the resolved
// ambiguity between historical hardcoded literals and the later,
// consistently-named lineage of the grounding source.
const (
	CPULimit    uint64 = 100_000_000
	MemoryLimit uint64 = 50_000_000
)
