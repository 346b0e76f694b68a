package dispatch

import (
	"testing"

	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/require"

	"github.com/erst-labs/simulate/internal/coverage"
	"github.com/erst-labs/simulate/internal/meteredhost"
)

var noopInvokeModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x0a, 0x01, 0x06, 'i', 'n', 'v', 'o', 'k', 'e', 0x00, 0x00,
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b,
}

func invokeContractOp(contractID xdr.Hash, method string, args ...xdr.ScVal) xdr.Operation {
	return xdr.Operation{
		Body: xdr.OperationBody{
			Type: xdr.OperationTypeInvokeHostFunction,
			InvokeHostFunctionOp: &xdr.InvokeHostFunctionOp{
				HostFunction: xdr.HostFunction{
					Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
					InvokeContract: &xdr.InvokeContractArgs{
						ContractAddress: xdr.ScAddress{
							Type:       xdr.ScAddressTypeScAddressTypeContract,
							ContractId: &contractID,
						},
						FunctionName: xdr.ScSymbol(method),
						Args:         args,
					},
				},
			},
		},
	}
}

func nonInvokeOp() xdr.Operation {
	return xdr.Operation{Body: xdr.OperationBody{Type: xdr.OperationTypeBumpSequence}}
}

func TestExecuteRunsInvokeContractOperations(t *testing.T) {
	host := meteredhost.New(0, nil)
	defer host.Close()
	_, err := host.LoadModule("contract", noopInvokeModule)
	require.NoError(t, err)

	cov := coverage.New(true)
	var contractID xdr.Hash
	outcomes, err := Execute(host, cov, []xdr.Operation{invokeContractOp(contractID, "transfer")})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.False(t, outcomes[0].Skipped)
	require.Contains(t, outcomes[0].Label, "transfer")

	cpu, _ := host.BudgetCloned()
	require.Greater(t, cpu, uint64(0))
}

func TestExecuteSkipsNonInvokeOperations(t *testing.T) {
	host := meteredhost.New(0, nil)
	defer host.Close()
	cov := coverage.New(false)

	outcomes, err := Execute(host, cov, []xdr.Operation{nonInvokeOp()})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].Skipped)
	require.Equal(t, "skipping non-invocation operation", outcomes[0].Note)
}

func TestExecuteStopsOnFirstHostError(t *testing.T) {
	// No module loaded: the dispatcher's "contract" module lookup fails
	// on the very first InvokeContract operation.
	host := meteredhost.New(0, nil)
	defer host.Close()

	cov := coverage.New(false)
	var contractID xdr.Hash
	ops := []xdr.Operation{invokeContractOp(contractID, "any_call")}

	outcomes, err := Execute(host, cov, ops)
	require.Error(t, err)
	require.Empty(t, outcomes, "the failing operation itself isn't recorded as an outcome")
}

func TestExecuteSkipsNonInvokeContractHostFunctions(t *testing.T) {
	host := meteredhost.New(0, nil)
	defer host.Close()
	cov := coverage.New(false)

	wasmBytes := []byte{1, 2, 3}
	op := xdr.Operation{
		Body: xdr.OperationBody{
			Type: xdr.OperationTypeInvokeHostFunction,
			InvokeHostFunctionOp: &xdr.InvokeHostFunctionOp{
				HostFunction: xdr.HostFunction{
					Type: xdr.HostFunctionTypeHostFunctionTypeUploadContractWasm,
					Wasm: &wasmBytes,
				},
			},
		},
	}

	outcomes, err := Execute(host, cov, []xdr.Operation{op})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].Skipped)
}
