package websearch

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DuckDuckGo searches the JavaScript-free DuckDuckGo HTML endpoint.
type DuckDuckGo struct {
	cfg *config
}

// NewDuckDuckGo creates a DuckDuckGo engine.
func NewDuckDuckGo(opts ...Option) *DuckDuckGo {
	return &DuckDuckGo{cfg: newConfig("https://html.duckduckgo.com", opts)}
}

// Name returns "duckduckgo".
func (*DuckDuckGo) Name() string { return "duckduckgo" }

// Search returns up to n results for query.
func (d *DuckDuckGo) Search(ctx context.Context, query string, n int) ([]Result, error) {
	endpoint := d.cfg.baseURL + "/html/?" + url.Values{"q": {query}}.Encode()
	doc, err := d.cfg.fetchDocument(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return parseDuckDuckGo(doc, n), nil
}

func parseDuckDuckGo(doc *goquery.Document, n int) []Result {
	var out []Result
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		target := decodeDuckDuckGoHref(href)
		if target == "" {
			return true
		}
		out = append(out, Result{
			Title:   cleanText(link.Text()),
			URL:     target,
			Snippet: cleanText(s.Find(".result__snippet").First().Text()),
			Rank:    len(out) + 1,
			Engine:  "duckduckgo",
		})
		return len(out) < n
	})
	return out
}

// decodeDuckDuckGoHref unwraps //duckduckgo.com/l/?uddg=<target> redirect links.
func decodeDuckDuckGoHref(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}
