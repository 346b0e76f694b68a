package advisor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnalyzeEfficientRunProducesGeneralTip(t *testing.T) {
	report := Analyze(500, 200, 1)
	require.Len(t, report.Tips, 1)
	require.Equal(t, "General", report.Tips[0].Category)
	require.Equal(t, 100.0, report.EfficiencyScore)
	require.Equal(t, "Excellent - performing within best practice guidelines", report.Comparison)
}

func TestAnalyzeHighCPUProducesHighSeverityTip(t *testing.T) {
	report := Analyze(3000, 100, 1)
	found := false
	for _, tip := range report.Tips {
		if tip.Category == "CPU Usage" && tip.Severity == "high" {
			found = true
			require.NotNil(t, tip.CodeLocationHint)
			require.Equal(t, "Loop operations", *tip.CodeLocationHint)
		}
	}
	require.True(t, found)
}

func TestAnalyzeHighBudgetPercentageProducesTip(t *testing.T) {
	report := Analyze(45_000_000, 100, 1)
	found := false
	for _, tip := range report.Tips {
		if tip.Category == "Budget Allocation" {
			found = true
		}
	}
	require.True(t, found)
}

func TestAnalyzeOperationPatternLoop(t *testing.T) {
	tip := AnalyzeOperationPattern("loop", 150, 5000)
	require.NotNil(t, tip)
	require.Equal(t, "Loop Optimization", tip.Category)
}

func TestAnalyzeOperationPatternBelowThreshold(t *testing.T) {
	require.Nil(t, AnalyzeOperationPattern("loop", 10, 100))
	require.Nil(t, AnalyzeOperationPattern("storage_read", 5, 100))
	require.Nil(t, AnalyzeOperationPattern("unknown_kind", 1000, 100))
}

func TestAnalyzeOperationPatternStorage(t *testing.T) {
	require.NotNil(t, AnalyzeOperationPattern("storage_read", 51, 100))
	require.NotNil(t, AnalyzeOperationPattern("storage_write", 21, 100))
}
