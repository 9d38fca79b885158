package research

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alexwday/web-research/models"
	"github.com/alexwday/web-research/session"
	fetchmodels "github.com/alexwday/web-research/tools/web_fetch/models"
	searchmodels "github.com/alexwday/web-research/tools/web_search/models"
)

type fakeSearcher struct {
	results []searchmodels.Result
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, q string, k int) ([]searchmodels.Result, error) {
	return f.results, f.err
}

type fakeFetcher struct {
	result fetchmodels.Result
	err    error
}

func (f *fakeFetcher) Exec(ctx context.Context, url string) (fetchmodels.Result, error) {
	return f.result, f.err
}

type collectSink struct {
	events []Event
}

func (c *collectSink) Emit(ev Event) error {
	c.events = append(c.events, ev)
	return nil
}

func newTestExecutor(searcher *fakeSearcher, fetcher *fakeFetcher) *Executor {
	return NewExecutor(NewRegistry(), searcher, fetcher, 5, nil)
}

func newTurnHandle(t *testing.T) *session.TurnHandle {
	t.Helper()
	sess, err := session.NewSession("", time.Hour)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return sess.BeginTurn()
}

func decodePayload(t *testing.T, turn models.Turn) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(turn.Content), &out); err != nil {
		t.Fatalf("tool result is not JSON: %v", err)
	}
	return out
}

func call(name, args string) models.ToolCall {
	return models.ToolCall{ID: "call_1", Name: name, Arguments: json.RawMessage(args)}
}

func TestExecute_EmitsToolUseFirst(t *testing.T) {
	x := newTestExecutor(&fakeSearcher{err: errors.New("down")}, &fakeFetcher{})
	sink := &collectSink{}

	_, err := x.Execute(context.Background(), newTurnHandle(t), call("search_web", `{"query":"go"}`), sink)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].Type != EventToolUse {
		t.Fatalf("expected one tool_use event, got %+v", sink.events)
	}
	if sink.events[0].Tool != "search_web" {
		t.Errorf("unexpected tool name: %s", sink.events[0].Tool)
	}
}

func TestExecute_SearchRegistersSources(t *testing.T) {
	x := newTestExecutor(&fakeSearcher{results: []searchmodels.Result{
		{URL: "https://a.example.com", Title: "A", Snippet: "aaa"},
		{URL: "https://b.example.com", Title: "B", Snippet: "bbb"},
	}}, &fakeFetcher{})
	h := newTurnHandle(t)

	turn, err := x.Execute(context.Background(), h, call("search_web", `{"query":"go"}`), &collectSink{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	payload := decodePayload(t, turn)
	if payload["success"] != true {
		t.Fatalf("expected success, got %+v", payload)
	}
	if got := len(h.Sources()); got != 2 {
		t.Errorf("expected 2 registered sources, got %d", got)
	}
}

func TestExecute_SearchFailureIsToolLevel(t *testing.T) {
	x := newTestExecutor(&fakeSearcher{err: errors.New("provider down")}, &fakeFetcher{})

	turn, err := x.Execute(context.Background(), newTurnHandle(t), call("search_web", `{"query":"go"}`), &collectSink{})
	if err != nil {
		t.Fatalf("collaborator failure must not surface as an error: %v", err)
	}
	payload := decodePayload(t, turn)
	if payload["success"] != false {
		t.Errorf("expected failed payload, got %+v", payload)
	}
	if !strings.Contains(payload["error"].(string), "provider down") {
		t.Errorf("payload should carry the cause: %+v", payload)
	}
}

func TestExecute_FetchRejectsMalformedURL(t *testing.T) {
	x := newTestExecutor(&fakeSearcher{}, &fakeFetcher{result: fetchmodels.Result{Text: "never reached"}})

	for _, url := range []string{"", "not a url", "ftp://example.com/x"} {
		turn, err := x.Execute(context.Background(), newTurnHandle(t), call("fetch_page_content", `{"url":"`+url+`"}`), &collectSink{})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if payload := decodePayload(t, turn); payload["success"] != false {
			t.Errorf("url %q should be rejected, got %+v", url, payload)
		}
	}
}

func TestExecute_FetchRegistersAndIndexes(t *testing.T) {
	x := newTestExecutor(&fakeSearcher{}, &fakeFetcher{result: fetchmodels.Result{
		URL:   "https://example.com/page",
		Title: "Example Page",
		Text:  "Boltzmann brains appear in thermodynamic fluctuation arguments.",
	}})
	h := newTurnHandle(t)

	turn, err := x.Execute(context.Background(), h, call("fetch_page_content", `{"url":"https://example.com/page"}`), &collectSink{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if payload := decodePayload(t, turn); payload["success"] != true {
		t.Fatalf("expected success, got %+v", payload)
	}
	if got := len(h.Sources()); got != 1 {
		t.Errorf("fetched page should be a source, got %d", got)
	}
	hits, err := h.SearchCorpus("Boltzmann", 5)
	if err != nil || len(hits) == 0 {
		t.Errorf("fetched content should be searchable, hits=%v err=%v", hits, err)
	}
}

func TestExecute_EmptyNoteIsToolLevelError(t *testing.T) {
	x := newTestExecutor(&fakeSearcher{}, &fakeFetcher{})

	turn, err := x.Execute(context.Background(), newTurnHandle(t), call("take_note", `{"note":"   "}`), &collectSink{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if payload := decodePayload(t, turn); payload["success"] != false {
		t.Errorf("empty note should fail at tool level, got %+v", payload)
	}
}

func TestExecute_TakeNoteStoresNote(t *testing.T) {
	x := newTestExecutor(&fakeSearcher{}, &fakeFetcher{})
	sess, err := session.NewSession("", time.Hour)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	h := sess.BeginTurn()

	turn, err := x.Execute(context.Background(), h, call("take_note", `{"note":"GC pauses are sub-millisecond","source_url":"https://go.dev/blog"}`), &collectSink{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	payload := decodePayload(t, turn)
	if payload["success"] != true || payload["note_id"] == "" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	notes := sess.Notes()
	if len(notes) != 1 || notes[0].SourceURL != "https://go.dev/blog" {
		t.Errorf("note not stored: %+v", notes)
	}
}

func TestExecute_DecomposeQuery(t *testing.T) {
	x := newTestExecutor(&fakeSearcher{}, &fakeFetcher{})

	turn, err := x.Execute(context.Background(), newTurnHandle(t),
		call("decompose_query", `{"query":"compare A and B","sub_queries":["what is A","what is B"]}`), &collectSink{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	payload := decodePayload(t, turn)
	if payload["success"] != true {
		t.Fatalf("expected success, got %+v", payload)
	}
	if subs := payload["sub_queries"].([]any); len(subs) != 2 {
		t.Errorf("expected 2 sub queries, got %+v", subs)
	}
}

func TestExecute_UnknownToolFedBackToModel(t *testing.T) {
	x := newTestExecutor(&fakeSearcher{}, &fakeFetcher{})

	turn, err := x.Execute(context.Background(), newTurnHandle(t), call("conjure_answer", `{}`), &collectSink{})
	if err != nil {
		t.Fatalf("unknown tool must not abort the loop: %v", err)
	}
	payload := decodePayload(t, turn)
	if payload["success"] != false || !strings.Contains(payload["error"].(string), "unknown tool") {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestExecute_MalformedArguments(t *testing.T) {
	x := newTestExecutor(&fakeSearcher{}, &fakeFetcher{})

	turn, err := x.Execute(context.Background(), newTurnHandle(t), call("search_web", `{"query":`), &collectSink{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if payload := decodePayload(t, turn); payload["success"] != false {
		t.Errorf("malformed arguments should fail at tool level, got %+v", payload)
	}
}
