package websearch

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Bing searches bing.com result pages.
type Bing struct {
	cfg *config
}

// NewBing creates a Bing engine.
func NewBing(opts ...Option) *Bing {
	return &Bing{cfg: newConfig("https://www.bing.com", opts)}
}

// Name returns "bing".
func (*Bing) Name() string { return "bing" }

// Search returns up to n results for query.
func (b *Bing) Search(ctx context.Context, query string, n int) ([]Result, error) {
	endpoint := b.cfg.baseURL + "/search?" + url.Values{"q": {query}, "count": {strconv.Itoa(n)}}.Encode()
	doc, err := b.cfg.fetchDocument(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return parseBing(doc, n), nil
}

func parseBing(doc *goquery.Document, n int) []Result {
	var out []Result
	doc.Find("li.b_algo").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find("h2 a").First()
		href, ok := link.Attr("href")
		if !ok || !strings.HasPrefix(href, "http") {
			return true
		}
		snippet := s.Find(".b_caption p").First().Text()
		if snippet == "" {
			snippet = s.Find("p.b_algoSlug").First().Text()
		}
		out = append(out, Result{
			Title:   cleanText(link.Text()),
			URL:     href,
			Snippet: cleanText(snippet),
			Rank:    len(out) + 1,
			Engine:  "bing",
		})
		return len(out) < n
	})
	return out
}
