package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/alexwday/web-research/internal/helpers"
	"github.com/alexwday/web-research/internal/telemetry"
	"github.com/alexwday/web-research/models"
	"github.com/alexwday/web-research/session"
	"github.com/alexwday/web-research/tools/web_fetch"
	"github.com/alexwday/web-research/tools/web_search"
)

// Executor services one tool call at a time: it announces the call with a
// tool_use event, routes by name, applies session side effects through the
// turn handle and packages the outcome as a tool-result payload for the
// model. Tool failures are swallowed into the payload so the model can
// adapt; only transport problems (a dead event sink) surface as errors.
type Executor struct {
	registry   *Registry
	searcher   web_search.WebSearcher
	fetcher    web_fetch.WebFetcher
	maxResults int
	logger     *log.Logger
}

func NewExecutor(registry *Registry, searcher web_search.WebSearcher, fetcher web_fetch.WebFetcher, maxResults int, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.Default()
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Executor{
		registry:   registry,
		searcher:   searcher,
		fetcher:    fetcher,
		maxResults: maxResults,
		logger:     logger,
	}
}

// Execute runs one tool call and returns the transcript turn carrying its
// result. The tool_use event is emitted before any collaborator work so
// slow calls still render progress.
func (x *Executor) Execute(ctx context.Context, h *session.TurnHandle, call models.ToolCall, sink EventSink) (models.Turn, error) {
	args := map[string]any{}
	argErr := json.Unmarshal(call.Arguments, &args)

	if err := sink.Emit(toolUseEvent(call.Name, args)); err != nil {
		return models.Turn{}, fmt.Errorf("emit tool_use: %w", err)
	}

	var payload any
	switch {
	case argErr != nil:
		payload = toolError(fmt.Sprintf("invalid tool arguments: %v", argErr))
	case !x.registry.Known(call.Name):
		payload = toolError(fmt.Sprintf("unknown tool: %s", call.Name))
	default:
		payload = x.dispatch(ctx, h, call.Name, args)
	}

	status := "ok"
	if m, ok := payload.(map[string]any); ok {
		if success, _ := m["success"].(bool); !success {
			status = "error"
			x.logger.Printf("[TOOL] %s failed: %v", call.Name, m["error"])
		}
	}
	telemetry.ToolCallsTotal.WithLabelValues(call.Name, status).Inc()

	turn, err := models.ToolTurn(call.ID, payload)
	if err != nil {
		return models.Turn{}, fmt.Errorf("encode tool result: %w", err)
	}
	return turn, nil
}

func (x *Executor) dispatch(ctx context.Context, h *session.TurnHandle, name string, args map[string]any) any {
	switch name {
	case ToolDecomposeQuery:
		return x.decomposeQuery(args)
	case ToolSearchWeb:
		return x.searchWeb(ctx, h, args)
	case ToolFetchPage:
		return x.fetchPage(ctx, h, args)
	case ToolTakeNote:
		return x.takeNote(h, args)
	case ToolSearchNotes:
		return x.searchNotes(h, args)
	}
	return toolError(fmt.Sprintf("unknown tool: %s", name))
}

// decomposeQuery is reasoning-only: it echoes the decomposition back as a
// tool result so it lands in the transcript, without touching any
// collaborator.
func (x *Executor) decomposeQuery(args map[string]any) any {
	query := stringArg(args, "query")
	subs := stringListArg(args, "sub_queries")
	if len(subs) == 0 {
		return toolError("sub_queries must be a non-empty list of strings")
	}
	return map[string]any{
		"success":     true,
		"query":       query,
		"sub_queries": subs,
	}
}

func (x *Executor) searchWeb(ctx context.Context, h *session.TurnHandle, args map[string]any) any {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return map[string]any{"success": false, "error": "query must not be empty", "query": query}
	}
	results, err := x.searcher.Search(ctx, query, x.maxResults)
	if err != nil {
		return map[string]any{"success": false, "error": err.Error(), "query": query}
	}

	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		h.AddSource(r.URL, r.Title)
		out = append(out, map[string]any{
			"url":     r.URL,
			"title":   r.Title,
			"snippet": r.Snippet,
		})
	}
	return map[string]any{
		"success": true,
		"results": out,
		"query":   query,
	}
}

func (x *Executor) fetchPage(ctx context.Context, h *session.TurnHandle, args map[string]any) any {
	url := strings.TrimSpace(stringArg(args, "url"))
	if !helpers.IsCitableURL(url) {
		return map[string]any{"success": false, "url": url, "error": "url must be a well-formed http(s) address"}
	}
	res, err := x.fetcher.Exec(ctx, url)
	if err != nil {
		return map[string]any{"success": false, "url": url, "error": err.Error()}
	}

	h.AddSource(url, res.Title)
	if _, _, err := h.IndexDocument(url, res.Title, res.Text); err != nil {
		x.logger.Printf("[TOOL] indexing %s: %v", url, err)
	}
	return map[string]any{
		"success": true,
		"url":     url,
		"title":   res.Title,
		"content": res.Text,
	}
}

func (x *Executor) takeNote(h *session.TurnHandle, args map[string]any) any {
	content := strings.TrimSpace(stringArg(args, "note"))
	if content == "" {
		return toolError("note must not be empty")
	}
	sourceURL := stringArg(args, "source_url")
	note, ok := h.AddNote(content, sourceURL)
	if !ok {
		return toolError("session was cleared")
	}
	if _, _, err := h.IndexDocument(sourceURL, "note", content); err != nil {
		x.logger.Printf("[TOOL] indexing note: %v", err)
	}
	return map[string]any{
		"success": true,
		"note_id": note.ID,
		"message": "Note saved successfully",
	}
}

func (x *Executor) searchNotes(h *session.TurnHandle, args map[string]any) any {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return toolError("query must not be empty")
	}
	k := x.maxResults
	if v, ok := args["k"].(float64); ok && int(v) > 0 {
		k = int(v)
	}
	hits, err := h.SearchCorpus(query, k)
	if err != nil {
		return map[string]any{"success": false, "error": err.Error(), "query": query}
	}
	out := make([]map[string]any, 0, len(hits))
	for _, hit := range hits {
		out = append(out, map[string]any{
			"url":     hit.URL,
			"title":   hit.Title,
			"snippet": hit.Snippet,
			"score":   hit.Score,
		})
	}
	return map[string]any{
		"success": true,
		"results": out,
		"query":   query,
	}
}

func toolError(msg string) map[string]any {
	return map[string]any{"success": false, "error": msg}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func stringListArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
