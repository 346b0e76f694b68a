// Package advisor scores a completed invocation's resource profile
// against fixed baselines and emits heuristic optimization tips, the
// same shape the grounding source's GasOptimizationAdvisor produces.
package advisor

import (
	"fmt"

	"github.com/erst-labs/simulate/internal/simtypes"
)

const (
	baselineCPUPerOp    uint64 = 1000
	baselineMemoryPerOp uint64 = 500
)

// Analyze scores (cpu, memory, opsCount) against the baselines and
// returns a full OptimizationReport. It never reads source or mutates
// state — a pure function over the three numbers.
func Analyze(cpuInstructions, memoryBytes uint64, opsCount int) simtypes.OptimizationReport {
	var cpuPerOp, memPerOp uint64
	if opsCount > 0 {
		cpuPerOp = cpuInstructions / uint64(opsCount)
		memPerOp = memoryBytes / uint64(opsCount)
	}

	cpuPercent := float64(cpuInstructions) / float64(simtypes.CPULimit) * 100.0
	memPercent := float64(memoryBytes) / float64(simtypes.MemoryLimit) * 100.0

	var tips []simtypes.OptimizationTip

	if cpuPerOp > baselineCPUPerOp*2 {
		tips = append(tips, tip("CPU Usage", "high",
			fmt.Sprintf("CPU consumption is %dx higher than baseline. Consider optimizing loops and reducing computational complexity.", cpuPerOp/baselineCPUPerOp),
			savingsPercent(cpuPerOp, baselineCPUPerOp), "Loop operations"))
	} else if cpuPerOp > baselineCPUPerOp {
		tips = append(tips, tip("CPU Usage", "medium",
			fmt.Sprintf("CPU usage is %dx baseline. Review computational operations for optimization opportunities.", cpuPerOp/baselineCPUPerOp),
			savingsPercent(cpuPerOp, baselineCPUPerOp), ""))
	}

	if memPerOp > baselineMemoryPerOp*2 {
		tips = append(tips, tip("Memory Usage", "high",
			fmt.Sprintf("Memory consumption is %dx higher than baseline. Consider using more efficient data structures or reducing allocations.", memPerOp/baselineMemoryPerOp),
			savingsPercent(memPerOp, baselineMemoryPerOp), "Data storage operations"))
	} else if memPerOp > baselineMemoryPerOp {
		tips = append(tips, tip("Memory Usage", "medium",
			"Memory usage is above baseline. Review data structure choices.",
			savingsPercent(memPerOp, baselineMemoryPerOp), ""))
	}

	if cpuPercent > 40.0 {
		tips = append(tips, tip("Budget Allocation", "high",
			fmt.Sprintf("This operation consumes %.1f%% of the CPU budget; consider batching multiple operations or caching results.", cpuPercent),
			"20-40% with batching", "Contract invocation"))
	}

	if memPercent > 30.0 {
		tips = append(tips, tip("Memory Efficiency", "medium",
			fmt.Sprintf("Memory usage is %.1f%% of budget. Consider using references instead of cloning data.", memPercent),
			"10-25% with better memory management", ""))
	}

	if len(tips) == 0 {
		tips = append(tips, tip("General", "low",
			"Contract execution is efficient. Consider testing with larger datasets to ensure scalability.",
			"N/A", ""))
	}

	cpuEfficiency := efficiency(baselineCPUPerOp, cpuPerOp)
	memEfficiency := efficiency(baselineMemoryPerOp, memPerOp)
	overall := (cpuEfficiency + memEfficiency) / 2.0

	return simtypes.OptimizationReport{
		Tips:             tips,
		EfficiencyScore:  overall,
		CPUEfficiency:    cpuEfficiency,
		MemoryEfficiency: memEfficiency,
		Comparison:       comparison(overall),
	}
}

// AnalyzeOperationPattern produces a single targeted tip for a named
// operation pattern (loop/storage_read/storage_write) crossing its
// heuristic threshold, a feature carried over from the grounding
// source's later lineage though absent from the distilled spec.
func AnalyzeOperationPattern(operationType string, count int, cpuCost uint64) *simtypes.OptimizationTip {
	switch operationType {
	case "loop":
		if count > 100 {
			t := tip("Loop Optimization", "high",
				fmt.Sprintf("Loop executes %d times consuming %d CPU instructions. Consider batching or reducing iterations.", count, cpuCost),
				"30-50% with batching", "Loop body")
			return &t
		}
	case "storage_read":
		if count > 50 {
			t := tip("Storage Access", "medium",
				fmt.Sprintf("%d storage reads detected. Cache frequently accessed values.", count),
				"15-30% with caching", "Storage operations")
			return &t
		}
	case "storage_write":
		if count > 20 {
			t := tip("Storage Access", "high",
				fmt.Sprintf("%d storage writes detected. Batch writes or use temporary variables.", count),
				"25-40% with batching", "Storage operations")
			return &t
		}
	}
	return nil
}

func tip(category, severity, message, savings, location string) simtypes.OptimizationTip {
	t := simtypes.OptimizationTip{
		Category:         category,
		Severity:         severity,
		Message:          message,
		EstimatedSavings: savings,
	}
	if location != "" {
		loc := location
		t.CodeLocationHint = &loc
	}
	return t
}

func savingsPercent(actual, baseline uint64) string {
	if actual == 0 {
		return "0% reduction possible"
	}
	pct := float64(actual-baseline) / float64(actual) * 100.0
	return fmt.Sprintf("~%d%% reduction possible", int(pct))
}

func efficiency(baseline, actual uint64) float64 {
	if actual == 0 {
		return 100.0
	}
	pct := float64(baseline) / float64(actual) * 100.0
	if pct > 100.0 {
		pct = 100.0
	}
	return pct
}

func comparison(overall float64) string {
	switch {
	case overall >= 90.0:
		return "Excellent - performing within best practice guidelines"
	case overall >= 70.0:
		return "Good - minor optimizations possible"
	case overall >= 50.0:
		return "Fair - significant optimization opportunities exist"
	default:
		return "Poor - contract requires substantial optimization"
	}
}
