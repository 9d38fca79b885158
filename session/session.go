package session

import (
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"

	"github.com/alexwday/web-research/internal/helpers"
	"github.com/alexwday/web-research/models"
)

// Source is one registered reference: a URL/title pair with a stable
// 1-based insertion index used for citation numbering.
type Source struct {
	Index int    `json:"-"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Note is one research note recorded via the take_note tool.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	SourceURL string    `json:"source_url,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}

// Session is the per-connection research state: transcript, notes, sources
// and the per-turn step counter, plus a mem-only search index over fetched
// content and notes. Mutation happens through a TurnHandle so work belonging
// to a cleared generation is dropped rather than applied.
type Session struct {
	id        string
	expiresAt time.Time

	mu          sync.RWMutex
	generation  uint64
	turns       []models.Turn
	notes       []Note
	sources     []Source
	sourceIndex map[string]int // canonical URL -> 1-based insertion index
	steps       int
	corpus      bleve.Index
	corpusMeta  map[string]corpusDoc
}

// TurnHandle scopes mutations to one user turn within one session
// generation. After Clear, handles from the old generation go stale and
// their mutations are silently dropped.
type TurnHandle struct {
	s   *Session
	gen uint64
}

// NewSession creates an empty session with a fresh corpus index.
func NewSession(id string, ttl time.Duration) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Session{
		id:          id,
		expiresAt:   time.Now().Add(ttl),
		sourceIndex: make(map[string]int),
		corpus:      idx,
		corpusMeta:  make(map[string]corpusDoc),
	}, nil
}

func (s *Session) ID() string               { return s.id }
func (s *Session) Expire(ttl time.Duration) { s.expiresAt = time.Now().Add(ttl) }
func (s *Session) Expired() bool            { return time.Now().After(s.expiresAt) }

// BeginTurn resets the step counter and returns a handle bound to the
// current generation.
func (s *Session) BeginTurn() *TurnHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = 0
	return &TurnHandle{s: s, gen: s.generation}
}

// Clear atomically resets transcript, notes, sources and the step counter,
// and replaces the corpus index. Outstanding turn handles go stale.
func (s *Session) Clear() error {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.turns = nil
	s.notes = nil
	s.sources = nil
	s.sourceIndex = make(map[string]int)
	s.steps = 0
	old := s.corpus
	s.corpus = idx
	s.corpusMeta = make(map[string]corpusDoc)
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// History returns a copy of the transcript.
func (s *Session) History() []models.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Notes returns a copy of recorded notes in insertion order.
func (s *Session) Notes() []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Sources returns the insertion-ordered source list with original indices.
func (s *Session) Sources() []Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Source, len(s.sources))
	copy(out, s.sources)
	return out
}

// Stale reports whether the session has been cleared since the handle was
// created.
func (h *TurnHandle) Stale() bool {
	h.s.mu.RLock()
	defer h.s.mu.RUnlock()
	return h.gen != h.s.generation
}

// NextStep bumps the tool-dispatch round counter. ok is false when the
// handle is stale; the step is not applied.
func (h *TurnHandle) NextStep() (int, bool) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if h.gen != h.s.generation {
		return 0, false
	}
	h.s.steps++
	return h.s.steps, true
}

// Record appends a transcript turn. Stale handles drop the turn.
func (h *TurnHandle) Record(t models.Turn) bool {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if h.gen != h.s.generation {
		return false
	}
	h.s.turns = append(h.s.turns, t)
	return true
}

// AddSource inserts a source keyed by canonical URL, or reuses the existing
// index when the URL was registered before. The returned index is 1-based
// and stable for the life of the session generation.
func (h *TurnHandle) AddSource(rawURL, title string) (int, bool) {
	key, err := helpers.CanonicalURL(rawURL)
	if err != nil {
		key = rawURL
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if h.gen != h.s.generation {
		return 0, false
	}
	if idx, ok := h.s.sourceIndex[key]; ok {
		return idx, true
	}
	idx := len(h.s.sources) + 1
	h.s.sourceIndex[key] = idx
	h.s.sources = append(h.s.sources, Source{Index: idx, URL: rawURL, Title: title})
	return idx, true
}

// AddNote appends a research note. Empty content is the caller's problem;
// the session stores whatever it is given.
func (h *TurnHandle) AddNote(content, sourceURL string) (Note, bool) {
	note := Note{
		ID:        uuid.NewString(),
		Content:   content,
		SourceURL: sourceURL,
		CreatedAt: time.Now(),
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if h.gen != h.s.generation {
		return Note{}, false
	}
	h.s.notes = append(h.s.notes, note)
	return note, true
}

// Sources snapshots the source list, for citation resolution at the end of
// the turn.
func (h *TurnHandle) Sources() []Source {
	return h.s.Sources()
}

// History snapshots the transcript.
func (h *TurnHandle) History() []models.Turn {
	return h.s.History()
}
