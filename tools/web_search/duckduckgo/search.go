package duckduckgo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/alexwday/web-research/tools/web_search/models"
)

const defaultEndpoint = "https://html.duckduckgo.com/html/"

// Search scrapes the DuckDuckGo HTML interface. No API key required, which
// makes it the default provider.
type Search struct {
	Timeout time.Duration
	BaseURL string // override for tests
}

func (s Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	endpoint := s.BaseURL
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint+"?q="+url.QueryEscape(q), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	client := &http.Client{Timeout: s.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status: %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page: %w", err)
	}
	results := parseResults(doc, k)
	return results, nil
}

// parseResults walks the document collecting up to k entries shaped like
// DuckDuckGo's .result blocks (.result__a link, .result__snippet text).
func parseResults(doc *html.Node, k int) []models.Result {
	var out []models.Result
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(out) >= k {
			return
		}
		if n.Type == html.ElementNode && hasClass(n, "result") && !hasClass(n, "result__a") {
			if r, ok := extractResult(n); ok {
				out = append(out, r)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func extractResult(n *html.Node) (models.Result, bool) {
	var r models.Result
	var visit func(c *html.Node)
	visit = func(c *html.Node) {
		if c.Type == html.ElementNode && c.Data == "a" {
			switch {
			case hasClass(c, "result__a") && r.URL == "":
				r.URL = resolveRedirect(attr(c, "href"))
				r.Title = strings.TrimSpace(text(c))
			case hasClass(c, "result__snippet") && r.Snippet == "":
				r.Snippet = strings.TrimSpace(text(c))
			}
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			visit(cc)
		}
	}
	visit(n)
	if r.URL == "" {
		return models.Result{}, false
	}
	if !strings.HasPrefix(r.URL, "http") {
		r.URL = "https://" + strings.TrimPrefix(r.URL, "//")
	}
	return r, true
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg=<url> redirect links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(c *html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			walk(cc)
		}
	}
	walk(n)
	return b.String()
}
