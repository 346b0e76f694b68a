// Package pipeline wires every component into the single state machine
// a request passes through: decode, validate, load, dispatch (inside the
// panic boundary), then measure and report. It is the Go-side analogue
// of the grounding source's main() match arms, reshaped into named
// stages so each one stays independently testable.
package pipeline

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/stellar/go/support/log"
	"github.com/stellar/go/xdr"

	"github.com/erst-labs/simulate/internal/advisor"
	"github.com/erst-labs/simulate/internal/budget"
	"github.com/erst-labs/simulate/internal/coverage"
	"github.com/erst-labs/simulate/internal/dispatch"
	"github.com/erst-labs/simulate/internal/events"
	"github.com/erst-labs/simulate/internal/flamegraph"
	"github.com/erst-labs/simulate/internal/meteredhost"
	"github.com/erst-labs/simulate/internal/simconfig"
	"github.com/erst-labs/simulate/internal/simresponse"
	"github.com/erst-labs/simulate/internal/simtypes"
	"github.com/erst-labs/simulate/internal/snapshot"
	"github.com/erst-labs/simulate/internal/sourcemap"
	"github.com/erst-labs/simulate/internal/sourcemapcache"
	"github.com/erst-labs/simulate/internal/stacktrace"
	"github.com/erst-labs/simulate/internal/trapboundary"
	"github.com/erst-labs/simulate/internal/wasmvalidate"
	"github.com/erst-labs/simulate/internal/xdrcodec"
)

// Run decodes req, drives the full simulation, and returns the single
// SimulationResponse to emit. It never returns an error itself: every
// failure path is folded into an error-shaped response, matching the
// "always one JSON object out" external contract.
func Run(cfg *simconfig.Config, logger *log.Entry, req *simtypes.Request) simtypes.SimulationResponse {
	var logs []string
	logf := func(format string, args ...interface{}) {
		logs = append(logs, fmt.Sprintf(format, args...))
	}

	envelope, err := xdrcodec.DecodeEnvelope(req.EnvelopeXDR)
	if err != nil {
		return simresponse.Error(fmt.Sprintf("Invalid envelope_xdr: %v", err), simresponse.ErrorOptions{Logs: logs})
	}

	snap := snapshot.New()
	if meta, ok := xdrcodec.DecodeResultMeta(req.ResultMetaXDR); ok {
		logf("loaded result meta (ignored for storage preload: v%d)", meta.V)
	} else if req.ResultMetaXDR != "" {
		logger.Warnf("failed to decode result_meta_xdr, proceeding with empty storage")
	}

	if len(req.RestorePreamble) > 0 {
		if err := snap.MergeRestorePreamble(req.RestorePreamble); err != nil {
			logger.Warnf("failed to merge restore_preamble: %v", err)
		}
	}
	if req.LedgerEntries != nil {
		if err := loadLedgerEntries(snap, req.LedgerEntries); err != nil {
			return simresponse.Error(fmt.Sprintf("Invalid ledger_entries: %v", err), simresponse.ErrorOptions{Logs: logs})
		}
	}
	logf("Loaded %d Ledger Entries", snap.Len())

	wasm, wasmLogs, err := resolveWasm(req)
	logs = append(logs, wasmLogs...)
	if err != nil {
		return simresponse.Error(err.Error(), simresponse.ErrorOptions{Logs: logs})
	}

	var mapper *sourcemap.Mapper
	if wasm != nil {
		if err := wasmvalidate.EnforceSorobanCompatibility(wasm); err != nil {
			return simresponse.Error(fmt.Sprintf("WASM validation failed: %v", err), simresponse.ErrorOptions{Logs: logs})
		}
		mapper = buildSourceMap(cfg, logger, wasm)
	}

	var memoryLimit uint64
	if req.MemoryLimit != nil {
		memoryLimit = *req.MemoryLimit
	}
	host := meteredhost.New(memoryLimit, req.ResourceCalibration)
	defer host.Close()
	logf("Host Initialized")

	if wasm != nil {
		if _, err := host.LoadModule("contract", wasm); err != nil {
			return simresponse.Error(fmt.Sprintf("Failed to load contract module: %v", err), simresponse.ErrorOptions{Logs: logs})
		}
	}

	cov := coverage.New(req.EnableCoverage)
	operations := envelope.Operations()

	result := trapboundary.Run(func() error {
		if wasm == nil {
			// No contract module: resolveWasm already logged that
			// contract execution is skipped.
			return nil
		}
		outcomes, dispatchErr := dispatch.Execute(host, cov, operations)
		for _, o := range outcomes {
			if o.Skipped {
				logf("%s: %s", o.Label, o.Note)
			}
		}
		return dispatchErr
	})

	cpuConsumed, memoryConsumed := host.BudgetCloned()
	usage := budget.Usage(cpuConsumed, memoryConsumed, len(operations))

	if result.Panicked {
		trace := stacktrace.FromPanic(result.PanicMessage)
		logs = append([]string{fmt.Sprintf("PANIC: %s", result.PanicMessage)}, logs...)
		errorCode := ""
		if result.PanicMessage == simtypes.ErrMemoryLimitExceeded {
			errorCode = simtypes.ErrMemoryLimitExceeded
		}
		return simresponse.Error(
			simresponse.StructuredErrorMessage("Panic", result.PanicMessage),
			simresponse.ErrorOptions{Logs: logs, BudgetUsage: &usage, StackTrace: &trace, ErrorCode: errorCode},
		)
	}
	if result.Err != nil {
		trace := stacktrace.FromHostError(result.Err.Error())
		errOpts := simresponse.ErrorOptions{Logs: logs, BudgetUsage: &usage, StackTrace: &trace}
		errOpts.WasmOffset, errOpts.SourceLocation = sourceLocationForHostError(mapper, trace)
		return simresponse.Error(simresponse.StructuredErrorMessage("HostError", result.Err.Error()), errOpts)
	}

	if msg, ok := budget.CheckMockFee(req, usage); !ok {
		return simresponse.Error(msg, simresponse.ErrorOptions{Logs: logs, BudgetUsage: &usage})
	}

	rawEvents := host.GetEvents()
	categorized := events.CategorizeAll(rawEvents)
	eventSummaries := make([]string, 0, len(rawEvents))
	for _, e := range rawEvents {
		eventSummaries = append(eventSummaries, e.EventType)
	}

	opts := simresponse.SuccessOptions{
		Events:            eventSummaries,
		DiagnosticEvents:  rawEvents,
		CategorizedEvents: categorized,
		Logs:              logs,
		BudgetUsage:       &usage,
	}

	if req.EnableOptimizationAdvisor {
		report := advisor.Analyze(usage.CPUInstructionsConsumed, usage.MemoryBytesConsumed, usage.OperationsCount)
		opts.OptimizationReport = &report
	}

	if req.Profile {
		_, svg := flamegraph.Render(usage.CPUInstructionsConsumed, usage.MemoryBytesConsumed)
		opts.Flamegraph = svg
	}

	if cov.Enabled() {
		opts.LcovReport = cov.Report()
		if req.CoverageLcovPath != "" {
			if err := cov.WriteToPath(req.CoverageLcovPath); err != nil {
				logger.Warnf("failed to write coverage report: %v", err)
			} else {
				opts.LcovReportPath = req.CoverageLcovPath
			}
		}
	}

	if mapper != nil && mapper.HasDebugSymbols() && len(rawEvents) > 0 {
		if loc := mapper.MapWasmOffsetToSource(0); loc != nil {
			opts.SourceLocation = loc
		}
	}

	return simresponse.Success(opts)
}

// sourceLocationForHostError extracts the wasm offset from a host-error
// trace's leading frame and maps it to a source location, mirroring the
// mapping the success path performs. It returns nils when no debug
// symbols are loaded or the trace carries no resolvable offset.
func sourceLocationForHostError(mapper *sourcemap.Mapper, trace simtypes.WasmStackTrace) (*uint64, *simtypes.SourceLocation) {
	if mapper == nil || !mapper.HasDebugSymbols() || len(trace.Frames) == 0 || trace.Frames[0].WasmOffset == nil {
		return nil, nil
	}
	offset := trace.Frames[0].WasmOffset
	return offset, mapper.MapWasmOffsetToSource(*offset)
}

// loadLedgerEntries decodes pairs into their own snapshot and merges the
// result into snap, so a decode failure anywhere in ledger_entries is
// reported before any partial state lands in snap.
func loadLedgerEntries(snap *snapshot.Snapshot, pairs map[string]string) error {
	loaded, err := snapshot.FromBase64Map(pairs)
	if err != nil {
		return err
	}
	loaded.Iter(func(keyBytes string, entry xdr.LedgerEntry) {
		snap.Insert(keyBytes, entry)
	})
	return nil
}

// resolveWasm picks the module bytes from contract_wasm or wasm_path, in
// that precedence order, and returns accumulated log lines either way.
func resolveWasm(req *simtypes.Request) ([]byte, []string, error) {
	var logs []string

	if req.ContractWasm != "" {
		wasm, err := base64.StdEncoding.DecodeString(req.ContractWasm)
		if err != nil {
			return nil, logs, fmt.Errorf("invalid contract_wasm base64: %w", err)
		}
		return wasm, logs, nil
	}

	if req.WasmPath == "" {
		logs = append(logs, "no contract module provided; skipping contract execution")
		return nil, logs, nil
	}

	info, err := os.Stat(req.WasmPath)
	if err != nil {
		return nil, logs, fmt.Errorf("failed to stat wasm_path: %w", err)
	}
	if info.Size() > wasmvalidate.MaxWasmSize {
		return nil, logs, fmt.Errorf("wasm_path exceeds %d byte limit", wasmvalidate.MaxWasmSize)
	}

	wasm, err := os.ReadFile(req.WasmPath)
	if err != nil {
		return nil, logs, fmt.Errorf("failed to read wasm_path: %w", err)
	}
	if err := wasmvalidate.ValidateMagicAndSize(wasm); err != nil {
		return nil, logs, err
	}
	return wasm, logs, nil
}

// buildSourceMap consults the on-disk cache before parsing DWARF, and
// stores a freshly-parsed mapper back to the cache on a miss. Cache
// errors are logged and otherwise ignored: source mapping is a
// best-effort diagnostic feature, never a reason to fail the request.
func buildSourceMap(cfg *simconfig.Config, logger *log.Entry, wasm []byte) *sourcemap.Mapper {
	wasmHash := sourcemapcache.ComputeWasmHash(wasm)
	freshHasSymbols, sectionsErr := sourcemap.HasDebugSections(wasm)
	if sectionsErr != nil {
		logger.Warnf("failed to inspect wasm debug sections: %v", sectionsErr)
	}

	if !cfg.NoCache && sectionsErr == nil {
		cache, err := sourcemapcache.New(cfg.CacheDir)
		if err == nil {
			if entry, ok := cache.Get(wasmHash, freshHasSymbols); ok {
				return sourcemap.FromCachedMappings(entry.HasSymbols, entry.Mappings)
			}
		}
	}

	mapper, err := sourcemap.Build(wasm)
	if err != nil {
		logger.Warnf("failed to build source map: %v", err)
		return nil
	}

	if !cfg.NoCache {
		cache, err := sourcemapcache.New(cfg.CacheDir)
		if err == nil {
			entry := sourcemapcache.Entry{
				WasmHash:   wasmHash,
				HasSymbols: mapper.HasDebugSymbols(),
				Mappings:   mapper.ExportFlatMappings(),
			}
			if err := cache.Store(entry); err != nil {
				logger.Warnf("failed to persist source map cache: %v", err)
			}
		}
	}

	return mapper
}
