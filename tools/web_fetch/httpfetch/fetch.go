package httpfetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/alexwday/web-research/tools/web_fetch/models"
	"github.com/alexwday/web-research/utils"
)

// Fetch retrieves pages over plain HTTP and extracts readable article text.
// It is the default fetcher; JavaScript-heavy sites need the chromedp one.
type Fetch struct {
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
}

func (f *Fetch) Exec(ctx context.Context, rawURL string) (models.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return models.Result{}, fmt.Errorf("invalid url: %w", err)
	}
	ua := f.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0"
	}
	req.Header.Set("User-Agent", ua)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return models.Result{}, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return models.Result{}, fmt.Errorf("fetch returned status: %d", resp.StatusCode)
	}

	parsed, _ := url.Parse(rawURL)
	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return models.Result{}, fmt.Errorf("content extraction failed: %w", err)
	}

	text := utils.Truncate(strings.TrimSpace(article.TextContent), f.MaxChars)
	title := strings.TrimSpace(article.Title)
	if title == "" && parsed != nil {
		title = parsed.Host
	}

	return models.Result{
		URL:     rawURL,
		Title:   title,
		Text:    text,
		Status:  resp.StatusCode,
		FetchMS: int(time.Since(t0) / time.Millisecond),
	}, nil
}
