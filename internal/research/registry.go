package research

import "github.com/alexwday/web-research/models"

// Tool names exposed to the model.
const (
	ToolDecomposeQuery = "decompose_query"
	ToolSearchWeb      = "search_web"
	ToolFetchPage      = "fetch_page_content"
	ToolTakeNote       = "take_note"
	ToolSearchNotes    = "search_notes"
)

// Registry declares the callable tool set: names, descriptions and
// argument schemas. It is pure metadata; dispatch lives in the executor,
// which routes by name.
type Registry struct {
	specs []models.ToolSpec
}

// NewRegistry builds the default tool menu.
func NewRegistry() *Registry {
	return &Registry{specs: []models.ToolSpec{
		{
			Name:        ToolDecomposeQuery,
			Description: "Break a complex research question into smaller sub-questions before searching. Use this first for multi-part questions.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "The user's question to decompose."},
					"sub_queries": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "The ordered sub-questions to research.",
					},
				},
				"required": []string{"query", "sub_queries"},
			},
		},
		{
			Name:        ToolSearchWeb,
			Description: "Search the web and return result URLs with titles and snippets.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "The search query."},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        ToolFetchPage,
			Description: "Fetch a web page and return its readable text content.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{"type": "string", "description": "The http(s) URL to fetch."},
				},
				"required": []string{"url"},
			},
		},
		{
			Name:        ToolTakeNote,
			Description: "Record an important fact found during research, optionally tied to its source URL.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"note":       map[string]any{"type": "string", "description": "The fact to remember."},
					"source_url": map[string]any{"type": "string", "description": "URL the fact came from."},
				},
				"required": []string{"note"},
			},
		},
		{
			Name:        ToolSearchNotes,
			Description: "Search previously fetched pages and recorded notes from this session.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "Keywords to look up."},
					"k":     map[string]any{"type": "integer", "minimum": 1, "maximum": 20},
				},
				"required": []string{"query"},
			},
		},
	}}
}

// Specs returns the tool menu handed to the model on every round.
func (r *Registry) Specs() []models.ToolSpec {
	return r.specs
}

// Known reports whether name is a registered tool.
func (r *Registry) Known(name string) bool {
	for _, s := range r.specs {
		if s.Name == name {
			return true
		}
	}
	return false
}
