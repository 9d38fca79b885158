package research

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/alexwday/web-research/internal/telemetry"
	"github.com/alexwday/web-research/models"
	"github.com/alexwday/web-research/provider"
	"github.com/alexwday/web-research/session"
)

const systemPrompt = `You are a helpful research assistant with access to web search and browsing capabilities. When answering questions:
1. For complex multi-part questions, use decompose_query first to plan sub-questions
2. Search for relevant information if needed
3. Fetch detailed content from promising sources
4. Take notes on important findings with source URLs
5. Use search_notes to recall material you already gathered this session
6. Provide comprehensive answers with citations
7. Format citations as [1], [2], etc. in your response, numbered by the order sources were found
8. Always cite your sources when using web information`

// Engine drives one user turn: it feeds the transcript and tool menu to
// the model, services tool calls through the executor and streams the
// final answer. Tool rounds run sequentially and the turn fails closed
// once the configured step limit is exceeded.
type Engine struct {
	provider provider.Provider
	registry *Registry
	executor *Executor
	maxSteps int
	logger   *log.Logger
}

func NewEngine(p provider.Provider, registry *Registry, executor *Executor, maxSteps int, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	if maxSteps <= 0 {
		maxSteps = 5
	}
	return &Engine{provider: p, registry: registry, executor: executor, maxSteps: maxSteps, logger: logger}
}

// ProcessMessage runs one full turn for sess. Turn-level failures are
// reported through a single error event and leave the session usable; the
// returned error is non-nil only when the event sink itself fails, which
// means the client is gone.
func (e *Engine) ProcessMessage(ctx context.Context, sess *session.Session, message string, sink EventSink) error {
	h := sess.BeginTurn()
	h.Record(models.UserTurn(message))

	if err := sink.Emit(statusEvent("thinking")); err != nil {
		return fmt.Errorf("emit status: %w", err)
	}

	for {
		completion, err := e.modelRound(ctx, h, sink)
		if err != nil {
			return err
		}
		if completion == nil {
			// turn-level failure already reported, or session cleared
			return nil
		}

		if len(completion.ToolCalls) == 0 {
			return e.finalize(h, completion.Content, sink)
		}

		step, ok := h.NextStep()
		if !ok {
			return nil
		}
		if step > e.maxSteps {
			e.logger.Printf("[ORCH] step limit reached after %d tool rounds", e.maxSteps)
			telemetry.TurnsTotal.WithLabelValues("error").Inc()
			return sink.Emit(errorEvent("I was unable to complete the research within the allowed number of steps. Please try a more specific question."))
		}

		h.Record(models.AssistantTurn(completion.Content, completion.ToolCalls))
		for _, call := range completion.ToolCalls {
			turn, err := e.executor.Execute(ctx, h, call, sink)
			if err != nil {
				return err
			}
			if !h.Record(turn) {
				return nil
			}
		}
	}
}

// modelRound performs one chat completion, forwarding content deltas to
// the sink as stream events. A nil completion with nil error means the
// round failed at turn level and an error event was already emitted.
func (e *Engine) modelRound(ctx context.Context, h *session.TurnHandle, sink EventSink) (*models.Completion, error) {
	turns := make([]models.Turn, 0, len(h.History())+1)
	turns = append(turns, models.Turn{Role: models.RoleSystem, Content: systemPrompt})
	turns = append(turns, h.History()...)

	var sinkErr error
	start := time.Now()
	completion, err := e.provider.ChatStream(ctx, turns, e.registry.Specs(), func(chunk string) {
		if sinkErr != nil || h.Stale() {
			return
		}
		telemetry.StreamChunksTotal.Inc()
		sinkErr = sink.Emit(streamEvent(chunk))
	})
	telemetry.LLMRoundSeconds.Observe(time.Since(start).Seconds())

	if sinkErr != nil {
		return nil, fmt.Errorf("emit stream: %w", sinkErr)
	}
	if err != nil {
		if ctx.Err() != nil {
			// connection is gone; nothing left to report to
			return nil, ctx.Err()
		}
		e.logger.Printf("[ORCH] model round failed: %v", err)
		telemetry.TurnsTotal.WithLabelValues("error").Inc()
		if emitErr := sink.Emit(errorEvent("The language model request failed. Please try again.")); emitErr != nil {
			return nil, fmt.Errorf("emit error: %w", emitErr)
		}
		return nil, nil
	}
	if h.Stale() {
		return nil, nil
	}
	return &completion, nil
}

// finalize resolves citations on the accumulated answer, records it and
// emits the complete event. The answer text itself is never rewritten;
// only the source list is filtered.
func (e *Engine) finalize(h *session.TurnHandle, answer string, sink EventSink) error {
	sources := ResolveCitations(answer, h.Sources())
	if !h.Record(models.AssistantTurn(answer, nil)) {
		return nil
	}
	telemetry.TurnsTotal.WithLabelValues("complete").Inc()
	if err := sink.Emit(completeEvent(answer, sources)); err != nil {
		return fmt.Errorf("emit complete: %w", err)
	}
	return nil
}
