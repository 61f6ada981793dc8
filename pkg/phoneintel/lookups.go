package phoneintel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/codeGROOVE-dev/dossier/pkg/httpcache"
)

// telegramLink is the public t.me contact link for an E.164 number.
func telegramLink(e164 string) string {
	return "https://t.me/+" + strings.TrimPrefix(e164, "+")
}

// telegramRegistered checks the t.me/+<digits> page, which shows a contact card
// only for numbers whose owners allow discovery.
func (c *Client) telegramRegistered(ctx context.Context, e164 string) (bool, error) {
	digits := strings.TrimPrefix(e164, "+")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.telegramBaseURL+"/+"+digits, http.NoBody)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", httpcache.UserAgent)

	body, err := httpcache.FetchURL(ctx, c.cache, c.httpClient, req, c.logger)
	if err != nil {
		if httpcache.StatusCode(err) == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}

	page := string(body)
	return strings.Contains(page, "tgme_page_title") && !strings.Contains(page, "tgme_page_description_empty"), nil
}

// lookupName asks NumLookupAPI who a number is registered to.
func (c *Client) lookupName(ctx context.Context, e164 string) (string, error) {
	endpoint := c.numLookupBaseURL + "/validate/" + url.PathEscape(e164) + "?" + url.Values{"apikey": {c.numLookupKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "dossier/1.0")
	req.Header.Set("Accept", "application/json")

	body, err := httpcache.FetchURL(ctx, c.cache, c.httpClient, req, c.logger)
	if err != nil {
		return "", err
	}

	var data struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("parse numlookup response: %w", err)
	}
	return strings.TrimSpace(data.Name), nil
}
