// Package meteredhost builds and drives the instrumented WASM execution
// engine: a wazero runtime that charges a fixed (or calibrated) CPU cost
// per invoked host function, records linear-memory size as memory
// consumed, and guards call depth with a function-call listener.
package meteredhost

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	wazeroapi "github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	"github.com/erst-labs/simulate/internal/simtypes"
)

const (
	wasmPageSize = 64 * 1024

	// baseInstructionsPerCall approximates the protocol's per-call CPU
	// cost when no resource_calibration override applies.
	baseInstructionsPerCall uint64 = 1000
)

// HostFunctionCall is the narrow slice of an InvokeHostFunction operation
// the metered host needs: a label for coverage/logging and the raw
// argument bytes for a cost-override lookup.
type HostFunctionCall struct {
	Label string
	Args  [][]byte
}

// Host wraps a wazero runtime with budget counters and an optional
// compiled-module cache that survives WipeLedgerStatePreservingModules.
type Host struct {
	ctx     context.Context
	runtime wazero.Runtime

	mu       sync.Mutex
	compiled map[string]wazero.CompiledModule
	modules  map[string]wazeroapi.Module

	calibration *simtypes.ResourceCalibration
	memoryLimit uint64

	cpuConsumed    uint64
	memoryConsumed uint64
	events         []simtypes.DiagnosticEvent
}

// New builds a Host with a fresh budget and event log. memoryLimit bounds
// the WASM linear memory in bytes (rounded up to whole pages); a zero
// value falls back to the protocol default.
func New(memoryLimit uint64, calibration *simtypes.ResourceCalibration) *Host {
	if memoryLimit == 0 {
		memoryLimit = simtypes.MemoryLimit
	}
	pages := (memoryLimit + wasmPageSize - 1) / wasmPageSize

	ctx := context.Background()
	cfg := wazero.NewRuntimeConfig().WithMemoryLimitPages(uint32(pages))
	runtime := wazero.NewRuntimeWithConfig(ctx, cfg)

	return &Host{
		ctx:         ctx,
		runtime:     runtime,
		compiled:    make(map[string]wazero.CompiledModule),
		modules:     make(map[string]wazeroapi.Module),
		calibration: calibration,
		memoryLimit: memoryLimit,
	}
}

// WipeLedgerStatePreservingModules resets the budget and event log while
// keeping the compiled-module cache, so a calibration sweep or repeated
// invocation doesn't pay recompilation cost each time.
func (h *Host) WipeLedgerStatePreservingModules() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cpuConsumed = 0
	h.memoryConsumed = 0
	h.events = nil
}

// LoadModule compiles and instantiates a WASM module under the given
// name, or returns the cached instance if already loaded.
func (h *Host) LoadModule(name string, wasm []byte) (wazeroapi.Module, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if mod, ok := h.modules[name]; ok {
		return mod, nil
	}

	compiled, err := h.runtime.CompileModule(h.withMeteringListener(), wasm)
	if err != nil {
		return nil, fmt.Errorf("failed to compile wasm module: %w", err)
	}
	mod, err := h.runtime.InstantiateModule(h.withMeteringListener(), compiled, wazero.NewModuleConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate wasm module: %w", err)
	}

	h.compiled[name] = compiled
	h.modules[name] = mod
	return mod, nil
}

// InvokeFunction calls the given export on an already-loaded module,
// charging a cost-model-aware instruction count and recording a
// synthetic diagnostic event on success. A trap inside the call comes
// back as the returned error. The memory-ceiling check, run before and
// after the call, panics with ErrMemoryLimitExceeded; that panic
// propagates to the caller uninterrupted — the trap boundary recovers
// it, not this layer.
func (h *Host) InvokeFunction(moduleName, export string, call HostFunctionCall, args ...uint64) ([]uint64, error) {
	h.mu.Lock()
	mod, ok := h.modules[moduleName]
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("module %q not loaded", moduleName)
	}

	fn := mod.ExportedFunction(export)
	if fn == nil {
		return nil, fmt.Errorf("export %q not found in module %q", export, moduleName)
	}

	h.chargeCall(call)
	h.checkMemoryCeiling(mod)

	results, err := fn.Call(h.withMeteringListener(), args...)
	if err != nil {
		return nil, err
	}

	h.recordEvent(call.Label)
	h.checkMemoryCeiling(mod)
	return results, nil
}

// chargeCall increments the CPU counter for one host-function call,
// applying a resource_calibration override when the label names a
// calibrated primitive.
func (h *Host) chargeCall(call HostFunctionCall) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cost := baseInstructionsPerCall
	if override := h.costOverrideFor(call.Label); override != nil {
		argBytes := uint64(0)
		for _, a := range call.Args {
			argBytes += uint64(len(a))
		}
		cost = override.Const + override.PerByte*argBytes
	}
	h.cpuConsumed += cost
}

func (h *Host) costOverrideFor(label string) *simtypes.CostOverride {
	if h.calibration == nil {
		return nil
	}
	switch {
	case containsFold(label, "sha256"):
		return h.calibration.Sha256
	case containsFold(label, "keccak256"):
		return h.calibration.Keccak256
	case containsFold(label, "ed25519"):
		return h.calibration.Ed25519
	default:
		return nil
	}
}

func containsFold(haystack, needle string) bool {
	h, n := []byte(haystack), []byte(needle)
	for i := range h {
		h[i] = lower(h[i])
	}
	for i := range n {
		n[i] = lower(n[i])
	}
	for i := 0; i+len(n) <= len(h); i++ {
		if string(h[i:i+len(n)]) == string(n) {
			return true
		}
	}
	return false
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// recordEvent appends a synthetic diagnostic event for a successful
// invocation. in_successful_contract_call is always the negation of a
// failed-call flag — here, a call that reached recordEvent always
// succeeded, so the flag is always true.
func (h *Host) recordEvent(label string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, simtypes.DiagnosticEvent{
		EventType:                "contract",
		Topics:                   []string{label},
		Data:                     "{}",
		InSuccessfulContractCall: true,
	})
}

// checkMemoryCeiling panics with ERR_MEMORY_LIMIT_EXCEEDED if the
// module's current linear memory exceeds the configured ceiling.
func (h *Host) checkMemoryCeiling(mod wazeroapi.Module) {
	mem := mod.Memory()
	if mem == nil {
		return
	}
	size := uint64(mem.Size())
	h.mu.Lock()
	h.memoryConsumed = size
	limit := h.memoryLimit
	h.mu.Unlock()
	if size > limit {
		panic(simtypes.ErrMemoryLimitExceeded)
	}
}

// GetEvents returns the diagnostic events recorded since the last wipe.
func (h *Host) GetEvents() []simtypes.DiagnosticEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]simtypes.DiagnosticEvent, len(h.events))
	copy(out, h.events)
	return out
}

// BudgetCloned returns a point-in-time snapshot of the consumed counters.
func (h *Host) BudgetCloned() (cpuConsumed, memoryConsumed uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cpuConsumed, h.memoryConsumed
}

// withMeteringListener attaches an experimental.FunctionListener that
// enforces a call-depth ceiling, mirroring the contract-engine call
// guard used elsewhere in the pack's wazero wiring.
func (h *Host) withMeteringListener() context.Context {
	const maxCallDepth = 64
	factory := experimental.FunctionListenerFactoryFunc(func(def wazeroapi.FunctionDefinition) experimental.FunctionListener {
		return experimental.FunctionListenerFunc(func(ctx context.Context, mod wazeroapi.Module, def wazeroapi.FunctionDefinition, params []uint64, stack experimental.StackIterator) {
			depth := 0
			for stack.Next() {
				depth++
			}
			if depth > maxCallDepth {
				panic(fmt.Errorf("wasm max call depth exceeded: %d", depth))
			}
		})
	})
	return experimental.WithFunctionListenerFactory(h.ctx, factory)
}

// Close releases the runtime's resources.
func (h *Host) Close() error {
	return h.runtime.Close(h.ctx)
}
