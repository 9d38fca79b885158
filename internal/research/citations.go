package research

import (
	"regexp"
	"strconv"

	"github.com/alexwday/web-research/internal/helpers"
	"github.com/alexwday/web-research/session"
)

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// ResolveCitations produces the source list for a finalized answer. A
// source is emitted when its insertion index is referenced by a [n] marker
// in the answer and its URL is a usable http/https address. Indices are the
// original insertion numbers; filtered entries leave gaps rather than
// shifting the survivors, and marker text is never rewritten.
func ResolveCitations(answer string, sources []session.Source) []session.Source {
	referenced := make(map[int]bool)
	for _, m := range citationMarker.FindAllStringSubmatch(answer, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			referenced[n] = true
		}
	}

	out := make([]session.Source, 0, len(sources))
	for _, src := range sources {
		if !referenced[src.Index] {
			continue
		}
		if !helpers.IsCitableURL(src.URL) {
			continue
		}
		out = append(out, src)
	}
	return out
}
