package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"recipeagent"
	"recipeagent/tools"
)

const (
	DefaultMaxIterations   = 5
	BudgetExhaustedMessage = "Agent loop limit reached without a final answer."
)

// Coordinator drives one question through the model and the recipe tool until the model
// answers in plain text or the iteration budget runs out.
type Coordinator struct {
	llm           recipeagent.LLMClient
	toolProvider  recipeagent.ToolProvider
	maxIterations int
	logger        recipeagent.CoordinationLogger
	tracer        trace.Tracer
	metrics       *instruments
}

// NewCoordinator initializes a new coordinator. A nil tracer or meter falls back to the
// global OpenTelemetry providers, which are no-ops unless InitOtel was called.
func NewCoordinator(llm recipeagent.LLMClient, tp recipeagent.ToolProvider, maxIter int, log recipeagent.CoordinationLogger, tracer trace.Tracer, meter metric.Meter) *Coordinator {
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	if log == nil {
		log = recipeagent.NewNoOpCoordinationLogger()
	}
	if tracer == nil {
		tracer = otel.Tracer(recipeagent.TracerNameCoordinator)
	}
	if meter == nil {
		meter = otel.Meter(recipeagent.TracerNameCoordinator)
	}
	return &Coordinator{
		llm:           llm,
		toolProvider:  tp,
		maxIterations: maxIter,
		logger:        log,
		tracer:        tracer,
		metrics:       newInstruments(meter),
	}
}

// CallRecord is what happened to one tool call during a run.
type CallRecord struct {
	Iteration int        `json:"iteration"`
	Call      tools.Call `json:"call"`
	Outcome   Outcome    `json:"outcome"`
	Output    string     `json:"output,omitempty"`
}

// Result is the outcome of a run. Answer is the model's final text, or
// BudgetExhaustedMessage when State is StateBudgetExhausted.
type Result struct {
	Answer     string           `json:"answer"`
	State      State            `json:"state"`
	Iterations int              `json:"iterations"`
	Calls      []CallRecord     `json:"calls,omitempty"`
	Fallbacks  []FallbackStatus `json:"fallbacks,omitempty"`
}

// Run answers a single user question. Model and search failures abort the run and are
// returned together with the partial result.
func (c *Coordinator) Run(ctx context.Context, question string) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "Coordinator.Run")
	defer span.End()

	slog.Info("COORDINATOR: Starting run", "question", question)
	c.metrics.runs.Add(ctx, 1)
	start := time.Now()

	prompt := NewPrompt(question, c.toolProvider)
	result := Result{State: StateAwaitingModel}

	for iter := 0; iter < c.maxIterations; iter++ {
		result.Iterations = iter + 1

		done, err := c.iterate(ctx, iter+1, &prompt, &result)
		if err != nil {
			c.metrics.runsFailed.Add(ctx, 1)
			span.SetStatus(codes.Error, "run failed")
			span.RecordError(err)
			return result, err
		}
		if done {
			c.finish(ctx, span, start, result)
			return result, nil
		}
	}

	slog.Warn("COORDINATOR: Iteration budget exhausted", "max_iterations", c.maxIterations)
	result.State = StateBudgetExhausted
	result.Answer = BudgetExhaustedMessage
	c.finish(ctx, span, start, result)
	return result, nil
}

func (c *Coordinator) finish(ctx context.Context, span trace.Span, start time.Time, result Result) {
	c.metrics.runsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("state", result.State.String())))
	c.metrics.runDuration.Record(ctx, time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("coordinator.state", result.State.String()),
		attribute.Int("coordinator.iterations", result.Iterations),
	)
	slog.Info("COORDINATOR: Run finished", "state", result.State, "iterations", result.Iterations)
}

// iterate performs one model invocation and handles whatever tool calls it produced.
// It reports true once the model has given its final answer.
func (c *Coordinator) iterate(ctx context.Context, iteration int, prompt *recipeagent.Prompt, result *Result) (bool, error) {
	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("Coordinator.Run.Iteration.%d", iteration))
	defer span.End()

	c.metrics.iterations.Add(ctx, 1)
	iterLog := recipeagent.IterationLog{Iteration: iteration, Timestamp: time.Now(), State: StateAwaitingModel.String()}

	if b, err := json.Marshal(prompt); err == nil {
		iterLog.LLMInput = string(b)
		slog.Info("COORDINATOR: Sending prompt to LLM",
			"iteration", iteration,
			"messages_count", len(prompt.Messages),
			"tools_count", len(prompt.Tools),
			"prompt_size_bytes", len(b),
		)
	}

	llmStart := time.Now()
	res, err := c.llm.Invoke(ctx, *prompt)
	c.metrics.llmLatency.Record(ctx, time.Since(llmStart).Seconds())
	if err != nil {
		iterLog.Error = err.Error()
		c.logIteration(iterLog)
		return false, fmt.Errorf("failed to invoke LLM: %w", err)
	}
	iterLog.LLMOutput = res

	slog.Info("COORDINATOR: LLM response received",
		"iteration", iteration,
		"content_length", len(res.Content),
		"tool_calls", len(res.ToolCalls),
	)

	calls := append([]tools.Call(nil), res.ToolCalls...)
	if len(calls) == 0 {
		call, status := ParseFallbackCall(res.Content)
		result.Fallbacks = append(result.Fallbacks, status)
		iterLog.Fallback = status.String()
		c.metrics.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status.String())))
		if status == FallbackParsed {
			slog.Info("COORDINATOR: Recovered tool call from reply text", "iteration", iteration, "name", call.Name)
			calls = []tools.Call{call}
		}
	}

	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = fmt.Sprintf("call-%d-%d", iteration, i)
		}
	}

	prompt.Messages = append(prompt.Messages, recipeagent.Message{
		Role:      recipeagent.RoleAssistant,
		Content:   res.Content,
		ToolCalls: calls,
	})

	if len(calls) == 0 {
		result.State = StateDone
		result.Answer = res.Content
		iterLog.State = StateDone.String()
		c.logIteration(iterLog)
		return true, nil
	}

	result.State = StateHandlingToolCall
	iterLog.State = StateHandlingToolCall.String()

	for _, call := range calls {
		record, toolLog, err := c.handleToolCall(ctx, prompt, call)
		record.Iteration = iteration
		result.Calls = append(result.Calls, record)
		iterLog.ToolCalls = append(iterLog.ToolCalls, toolLog)
		c.metrics.toolCalls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", call.Name),
			attribute.String("outcome", record.Outcome.String()),
		))
		if err != nil {
			iterLog.Error = err.Error()
			c.logIteration(iterLog)
			return false, err
		}
	}

	result.State = StateAwaitingModel
	c.logIteration(iterLog)
	return false, nil
}

// handleToolCall runs one call and appends its result to the conversation. Unknown tools
// are skipped without a message. Invalid arguments are reported back to the model so it
// can correct them; any other tool error ends the run.
func (c *Coordinator) handleToolCall(ctx context.Context, prompt *recipeagent.Prompt, call tools.Call) (CallRecord, recipeagent.ToolCallLog, error) {
	record := CallRecord{Call: call}
	toolLog := recipeagent.ToolCallLog{ID: call.ID, Name: call.Name, Input: call.Args}

	tool, err := c.toolProvider.GetTool(call.Name)
	if err != nil {
		slog.Warn("COORDINATOR: Skipping call to unknown tool", "name", call.Name, "id", call.ID)
		record.Outcome = OutcomeSkippedUnknownTool
		toolLog.Outcome = record.Outcome.String()
		toolLog.Error = err.Error()
		return record, toolLog, nil
	}

	slog.Info("COORDINATOR: Handling tool call", "name", call.Name, "id", call.ID)

	output, err := tool.Run(ctx, call.Args)
	if err != nil {
		var verr *tools.ValidationError
		if !errors.As(err, &verr) {
			record.Outcome = OutcomeFailed
			toolLog.Outcome = record.Outcome.String()
			toolLog.Error = err.Error()
			return record, toolLog, fmt.Errorf("failed to run tool %q: %w", call.Name, err)
		}

		slog.Warn("COORDINATOR: Tool arguments rejected", "name", call.Name, "error", verr)
		record.Outcome = OutcomeInvalidArguments
		toolLog.Error = verr.Error()
		output = "Error: " + verr.Error()
	} else {
		record.Outcome = OutcomeOK
	}

	record.Output = output
	toolLog.Output = output
	toolLog.Outcome = record.Outcome.String()

	prompt.Messages = append(prompt.Messages, recipeagent.Message{
		Role:       recipeagent.RoleTool,
		Content:    output,
		ToolCallID: call.ID,
		ToolName:   call.Name,
	})
	return record, toolLog, nil
}

// logIteration logs a step using the configured logger, handling errors gracefully
func (c *Coordinator) logIteration(iteration recipeagent.IterationLog) {
	if err := c.logger.LogIteration(iteration); err != nil {
		slog.Error("COORDINATOR: Failed to log coordination iteration", "error", err, "iteration", iteration.Iteration)
	}
}
