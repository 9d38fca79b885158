package session

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve"
)

// corpusDoc is one indexed chunk of fetched page text or a note.
type corpusDoc struct {
	DocID      string `json:"doc_id"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	ChunkIndex int    `json:"chunk_index"`
}

// CorpusHit is one BM25 search result over the session corpus.
type CorpusHit struct {
	URL     string  `json:"url,omitempty"`
	Title   string  `json:"title,omitempty"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// IndexDocument chunks text and adds it to the session corpus so later
// search_notes calls can recall it. Stale handles drop the document.
func (h *TurnHandle) IndexDocument(url, title, text string) (int, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, true, nil
	}
	parts := makeChunks(text, 1000, 200)

	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if h.gen != h.s.generation {
		return 0, false, nil
	}
	base := fmt.Sprintf("%08x", len(h.s.corpusMeta))
	for i, part := range parts {
		doc := corpusDoc{
			DocID:      fmt.Sprintf("%s#%03d", base, i),
			URL:        url,
			Title:      title,
			Text:       part,
			ChunkIndex: i,
		}
		h.s.corpusMeta[doc.DocID] = doc
		if err := h.s.corpus.Index(doc.DocID, doc); err != nil {
			return i, true, fmt.Errorf("failed to index chunk: %w", err)
		}
	}
	return len(parts), true, nil
}

// SearchCorpus runs a BM25 query over everything indexed this generation.
func (h *TurnHandle) SearchCorpus(q string, k int) ([]CorpusHit, error) {
	if k <= 0 {
		k = 5
	}
	h.s.mu.RLock()
	defer h.s.mu.RUnlock()
	if h.gen != h.s.generation {
		return nil, nil
	}
	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	res, err := h.s.corpus.Search(searchReq)
	if err != nil {
		return nil, err
	}
	var out []CorpusHit
	for _, hit := range res.Hits {
		doc, ok := h.s.corpusMeta[hit.ID]
		if !ok {
			continue
		}
		out = append(out, CorpusHit{
			URL:     doc.URL,
			Title:   doc.Title,
			Snippet: snippet(doc.Text),
			Score:   hit.Score,
		})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func snippet(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}

func makeChunks(text string, approx, overlap int) []string {
	if len(text) <= approx {
		return []string{text}
	}
	var chunks []string
	for start := 0; start < len(text); {
		end := start + approx
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
		start = end - overlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}
