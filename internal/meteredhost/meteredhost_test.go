package meteredhost

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erst-labs/simulate/internal/simtypes"
)

// noopInvokeModule is a hand-assembled minimal WASM module exporting a
// zero-argument, zero-result function "invoke" whose body is empty
// (just the implicit end opcode) — enough to exercise the metered
// host's compile/instantiate/call path without depending on an
// external toolchain to produce the bytes.
var noopInvokeModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic + version
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00, // type section: (func)
	0x03, 0x02, 0x01, 0x00, // function section: 1 func, type 0
	0x07, 0x0a, 0x01, 0x06, 'i', 'n', 'v', 'o', 'k', 'e', 0x00, 0x00, // export "invoke"
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b, // code section: empty body, end
}

func TestLoadModuleAndInvokeSuccess(t *testing.T) {
	h := New(0, nil)
	defer h.Close()

	_, err := h.LoadModule("contract", noopInvokeModule)
	require.NoError(t, err)

	_, err = h.InvokeFunction("contract", "invoke", HostFunctionCall{Label: "InvokeContract::\"noop\""})
	require.NoError(t, err)

	cpu, _ := h.BudgetCloned()
	require.Equal(t, baseInstructionsPerCall, cpu)

	events := h.GetEvents()
	require.Len(t, events, 1)
	require.True(t, events[0].InSuccessfulContractCall)
}

func TestLoadModuleIsCached(t *testing.T) {
	h := New(0, nil)
	defer h.Close()

	mod1, err := h.LoadModule("contract", noopInvokeModule)
	require.NoError(t, err)
	mod2, err := h.LoadModule("contract", noopInvokeModule)
	require.NoError(t, err)
	require.True(t, mod1 == mod2, "expected cached module instance to be reused")
}

func TestInvokeFunctionMissingModule(t *testing.T) {
	h := New(0, nil)
	defer h.Close()

	_, err := h.InvokeFunction("nonexistent", "invoke", HostFunctionCall{})
	require.Error(t, err)
}

func TestInvokeFunctionMissingExport(t *testing.T) {
	h := New(0, nil)
	defer h.Close()
	_, err := h.LoadModule("contract", noopInvokeModule)
	require.NoError(t, err)

	_, err = h.InvokeFunction("contract", "does_not_exist", HostFunctionCall{})
	require.Error(t, err)
}

func TestWipeLedgerStatePreservesModules(t *testing.T) {
	h := New(0, nil)
	defer h.Close()
	_, err := h.LoadModule("contract", noopInvokeModule)
	require.NoError(t, err)

	_, err = h.InvokeFunction("contract", "invoke", HostFunctionCall{Label: "x"})
	require.NoError(t, err)

	h.WipeLedgerStatePreservingModules()
	cpu, mem := h.BudgetCloned()
	require.Zero(t, cpu)
	require.Zero(t, mem)
	require.Empty(t, h.GetEvents())

	// Module is still loaded: a second invocation doesn't need reloading.
	_, err = h.InvokeFunction("contract", "invoke", HostFunctionCall{Label: "x"})
	require.NoError(t, err)
}

func TestChargeCallAppliesResourceCalibrationOverride(t *testing.T) {
	calibration := &simtypes.ResourceCalibration{
		Sha256: &simtypes.CostOverride{Const: 50, PerByte: 2},
	}
	h := New(0, calibration)
	defer h.Close()
	_, err := h.LoadModule("contract", noopInvokeModule)
	require.NoError(t, err)

	_, err = h.InvokeFunction("contract", "invoke", HostFunctionCall{
		Label: "InvokeContract::\"sha256_hash\"",
		Args:  [][]byte{{1, 2, 3, 4}},
	})
	require.NoError(t, err)

	cpu, _ := h.BudgetCloned()
	require.Equal(t, uint64(50+2*4), cpu)
}

// TestInvokeFunctionPreCallMemoryCeilingPanicsBeforeCallRuns covers
// SPEC_FULL.md's requirement that the memory ceiling is checked before
// and after every operation. trapModule declares one page (64KiB) of
// linear memory and a body that traps with "unreachable" the instant it
// runs. With a ceiling already below that single page's size, the
// pre-call check must panic before fn.Call ever executes the trap —
// if it didn't, InvokeFunction would instead return the trap as a plain
// error and the violation would go unreported.
func TestInvokeFunctionPreCallMemoryCeilingPanicsBeforeCallRuns(t *testing.T) {
	trapModule := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic + version
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00, // type section: (func)
		0x03, 0x02, 0x01, 0x00, // function section: 1 func, type 0
		0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 memory, min 1 page
		0x07, 0x0a, 0x01, 0x06, 'i', 'n', 'v', 'o', 'k', 'e', 0x00, 0x00, // export "invoke"
		0x0a, 0x05, 0x01, 0x03, 0x00, 0x00, 0x0b, // code: unreachable, end
	}

	h := New(1000, nil) // ceiling well below the one page the module declares
	defer h.Close()

	_, err := h.LoadModule("contract", trapModule)
	require.NoError(t, err)

	require.PanicsWithValue(t, simtypes.ErrMemoryLimitExceeded, func() {
		_, _ = h.InvokeFunction("contract", "invoke", HostFunctionCall{Label: "x"})
	})
}

func TestContainsFoldCaseInsensitive(t *testing.T) {
	require.True(t, containsFold("SHA256_HASH", "sha256"))
	require.True(t, containsFold("compute_keccak256", "KECCAK256"))
	require.False(t, containsFold("transfer", "sha256"))
}
