package budget

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erst-labs/simulate/internal/simtypes"
)

func TestUsageComputesPercentages(t *testing.T) {
	usage := Usage(1_000_000, 500_000, 3)
	require.Equal(t, uint64(1_000_000), usage.CPUInstructionsConsumed)
	require.Equal(t, uint64(500_000), usage.MemoryBytesConsumed)
	require.Equal(t, 3, usage.OperationsCount)
	require.InDelta(t, 1.0, usage.CPUUsagePercent, 0.001)
	require.InDelta(t, 1.0, usage.MemoryUsagePercent, 0.001)
}

func TestCheckMockFeeSkippedWhenFieldsAbsent(t *testing.T) {
	req := &simtypes.Request{}
	msg, ok := CheckMockFee(req, simtypes.BudgetUsage{})
	require.True(t, ok)
	require.Empty(t, msg)
}

func TestCheckMockFeeSufficient(t *testing.T) {
	baseFee := uint32(100)
	gasPrice := uint64(10)
	declared := uint64(100_000)
	req := &simtypes.Request{MockBaseFee: &baseFee, MockGasPrice: &gasPrice, DeclaredFee: &declared}
	usage := simtypes.BudgetUsage{CPUInstructionsConsumed: 10_000, MemoryBytesConsumed: 1_024, OperationsCount: 2}

	msg, ok := CheckMockFee(req, usage)
	require.True(t, ok)
	require.Empty(t, msg)
}

func TestCheckMockFeeInsufficient(t *testing.T) {
	baseFee := uint32(100)
	gasPrice := uint64(10)
	declared := uint64(1)
	req := &simtypes.Request{MockBaseFee: &baseFee, MockGasPrice: &gasPrice, DeclaredFee: &declared}
	usage := simtypes.BudgetUsage{CPUInstructionsConsumed: 10_000, MemoryBytesConsumed: 1_024, OperationsCount: 2}

	msg, ok := CheckMockFee(req, usage)
	require.False(t, ok)
	require.Contains(t, msg, "insufficient fee (mocked)")
}

func TestCheckMockFeeMinimumUnitsFloor(t *testing.T) {
	baseFee := uint32(1)
	gasPrice := uint64(5)
	declared := uint64(10)
	req := &simtypes.Request{MockBaseFee: &baseFee, MockGasPrice: &gasPrice, DeclaredFee: &declared}
	// Zero consumption still charges for at least one unit.
	usage := simtypes.BudgetUsage{OperationsCount: 1}

	msg, ok := CheckMockFee(req, usage)
	require.True(t, ok)
	require.Empty(t, msg)
}
