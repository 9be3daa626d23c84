package coordinator

import (
	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	runs          metric.Int64Counter
	runsCompleted metric.Int64Counter
	runsFailed    metric.Int64Counter
	iterations    metric.Int64Counter
	toolCalls     metric.Int64Counter
	fallbacks     metric.Int64Counter
	runDuration   metric.Float64Histogram
	llmLatency    metric.Float64Histogram
}

// newInstruments creates the coordinator metrics. Instrument creation only fails on
// invalid names, in which case the no-op instrument returned alongside the error is used.
func newInstruments(meter metric.Meter) *instruments {
	runs, _ := meter.Int64Counter("coordinator_runs_total",
		metric.WithDescription("Total number of coordination runs started"))
	runsCompleted, _ := meter.Int64Counter("coordinator_runs_completed_total",
		metric.WithDescription("Total number of coordination runs that reached a terminal state"))
	runsFailed, _ := meter.Int64Counter("coordinator_runs_failed_total",
		metric.WithDescription("Total number of coordination runs aborted by an error"))
	iterations, _ := meter.Int64Counter("coordinator_iterations_total",
		metric.WithDescription("Total number of model invocations"))
	toolCalls, _ := meter.Int64Counter("tool_calls_total",
		metric.WithDescription("Total number of tool calls by outcome"))
	fallbacks, _ := meter.Int64Counter("fallback_parses_total",
		metric.WithDescription("Attempts to recover a tool call from reply text, by status"))
	runDuration, _ := meter.Float64Histogram("coordination_duration_seconds",
		metric.WithDescription("Total duration of coordination process in seconds"))
	llmLatency, _ := meter.Float64Histogram("llm_response_time_seconds",
		metric.WithDescription("Time taken to receive response from LLM in seconds"))

	return &instruments{
		runs:          runs,
		runsCompleted: runsCompleted,
		runsFailed:    runsFailed,
		iterations:    iterations,
		toolCalls:     toolCalls,
		fallbacks:     fallbacks,
		runDuration:   runDuration,
		llmLatency:    llmLatency,
	}
}
