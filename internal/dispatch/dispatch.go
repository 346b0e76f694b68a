// Package dispatch iterates a transaction envelope's operations and
// drives the metered host for every InvokeHostFunction it finds, the
// way the teacher's simulate_transaction.go walks an envelope's
// operations before handing one off to preflight.
package dispatch

import (
	"fmt"

	"github.com/stellar/go/xdr"

	"github.com/erst-labs/simulate/internal/coverage"
	"github.com/erst-labs/simulate/internal/meteredhost"
)

const moduleName = "contract"

// Outcome is the per-operation record the caller logs and folds into the
// response.
type Outcome struct {
	Label   string
	Skipped bool
	Note    string
}

// Execute walks operations in order, invoking the contract host function
// for each InvokeHostFunction operation and recording a coverage sample
// for every one of them. It panics (for the trap boundary to catch) if
// the host's memory ceiling check trips, and returns immediately on the
// first host error.
func Execute(host *meteredhost.Host, cov *coverage.Tracker, operations []xdr.Operation) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(operations))

	for _, op := range operations {
		if op.Body.Type != xdr.OperationTypeInvokeHostFunction {
			outcomes = append(outcomes, Outcome{
				Label:   op.Body.Type.String(),
				Skipped: true,
				Note:    "skipping non-invocation operation",
			})
			continue
		}

		invokeOp := op.Body.MustInvokeHostFunctionOp()
		label := invokeLabel(invokeOp.HostFunction)
		cov.Sample(label)

		if invokeOp.HostFunction.Type != xdr.HostFunctionTypeHostFunctionTypeInvokeContract {
			outcomes = append(outcomes, Outcome{
				Label:   label,
				Skipped: true,
				Note:    "skipping non-InvokeContract host function",
			})
			continue
		}

		invoke := invokeOp.HostFunction.MustInvokeContract()
		call := meteredhost.HostFunctionCall{
			Label: string(invoke.FunctionName),
			Args:  argBytes(invoke.Args),
		}

		if _, err := host.InvokeFunction(moduleName, "invoke", call); err != nil {
			return outcomes, fmt.Errorf("InvokeHostFunction failed: %w", err)
		}

		outcomes = append(outcomes, Outcome{Label: label})
	}

	return outcomes, nil
}

func invokeLabel(fn xdr.HostFunction) string {
	if fn.Type == xdr.HostFunctionTypeHostFunctionTypeInvokeContract {
		invoke := fn.MustInvokeContract()
		return fmt.Sprintf("InvokeContract::%q", string(invoke.FunctionName))
	}
	return fn.Type.String()
}

func argBytes(args []xdr.ScVal) [][]byte {
	out := make([][]byte, 0, len(args))
	for _, a := range args {
		b, err := a.MarshalBinary()
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	return out
}
