// Package budget turns the metered host's raw counters into the
// response's usage percentages and runs the optional mocked-fee check.
package budget

import (
	"fmt"
	"math"

	"github.com/erst-labs/simulate/internal/simtypes"
)

// Usage computes a BudgetUsage from raw counters against the protocol
// constants.
func Usage(cpuConsumed, memoryConsumed uint64, operationsCount int) simtypes.BudgetUsage {
	return simtypes.BudgetUsage{
		CPUInstructionsConsumed: cpuConsumed,
		MemoryBytesConsumed:     memoryConsumed,
		CPUUsagePercent:         float64(cpuConsumed) / float64(simtypes.CPULimit) * 100.0,
		MemoryUsagePercent:      float64(memoryConsumed) / float64(simtypes.MemoryLimit) * 100.0,
		OperationsCount:         operationsCount,
	}
}

// CheckMockFee runs the synthetic fee formula when either mock fee field
// is present on the request (an absent one counts as zero) and a declared
// fee is given. Returns ("", true) when no check applies or the declared
// fee covers the requirement, and (message, false) when the declared fee
// falls short.
func CheckMockFee(req *simtypes.Request, usage simtypes.BudgetUsage) (string, bool) {
	if (req.MockBaseFee == nil && req.MockGasPrice == nil) || req.DeclaredFee == nil {
		return "", true
	}

	var baseFee, gasPrice uint64
	if req.MockBaseFee != nil {
		baseFee = uint64(*req.MockBaseFee)
	}
	if req.MockGasPrice != nil {
		gasPrice = *req.MockGasPrice
	}
	opsCount := uint64(usage.OperationsCount)

	cpuUnits := uint64(math.Ceil(float64(usage.CPUInstructionsConsumed) / 10_000))
	memUnits := uint64(math.Ceil(float64(usage.MemoryBytesConsumed) / 1_024))
	units := cpuUnits + memUnits
	if units < 1 {
		units = 1
	}

	required := baseFee*opsCount + gasPrice*units
	if *req.DeclaredFee < required {
		return fmt.Sprintf("insufficient fee (mocked): declared %d, required %d", *req.DeclaredFee, required), false
	}
	return "", true
}
