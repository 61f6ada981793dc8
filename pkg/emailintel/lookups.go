package emailintel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/codeGROOVE-dev/dossier/pkg/httpcache"
)

// errNoHIBPKey marks a skipped breach lookup.
var errNoHIBPKey = errors.New("no HIBP API key configured")

// breaches returns the names of known breaches containing email.
// A 404 from Have I Been Pwned means the address is clean.
func (c *Client) breaches(ctx context.Context, email string) ([]string, error) {
	if c.hibpKey == "" {
		return nil, errNoHIBPKey
	}

	endpoint := c.hibpBaseURL + "/breachedaccount/" + url.PathEscape(email) + "?truncateResponse=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("hibp-api-key", c.hibpKey)
	req.Header.Set("User-Agent", "dossier/1.0")

	body, err := httpcache.FetchURL(ctx, c.cache, c.httpClient, req, c.logger)
	if err != nil {
		if httpcache.StatusCode(err) == http.StatusNotFound {
			return []string{}, nil
		}
		return nil, err
	}

	var items []struct {
		Name string `json:"Name"`
	}
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("parse breach response: %w", err)
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	return names, nil
}

// githubByEmail searches GitHub users by public email, falling back to commit authorship.
// It returns the profile URL of the first match, or "" when none is found.
func (c *Client) githubByEmail(ctx context.Context, email string) (string, error) {
	q := url.Values{"q": {email + " in:email"}}
	var users struct {
		Items []struct {
			Login   string `json:"login"`
			HTMLURL string `json:"html_url"`
		} `json:"items"`
		TotalCount int `json:"total_count"`
	}
	if err := c.githubGet(ctx, "/search/users?"+q.Encode(), &users); err != nil {
		return "", err
	}
	if users.TotalCount > 0 && len(users.Items) > 0 {
		return profileURL(users.Items[0].HTMLURL, users.Items[0].Login), nil
	}

	q = url.Values{"q": {"author-email:" + email}, "sort": {"author-date"}, "per_page": {"1"}}
	var commits struct {
		Items []struct {
			Author struct {
				Login   string `json:"login"`
				HTMLURL string `json:"html_url"`
			} `json:"author"`
		} `json:"items"`
		TotalCount int `json:"total_count"`
	}
	if err := c.githubGet(ctx, "/search/commits?"+q.Encode(), &commits); err != nil {
		return "", err
	}
	if commits.TotalCount > 0 && len(commits.Items) > 0 && commits.Items[0].Author.Login != "" {
		a := commits.Items[0].Author
		c.logger.DebugContext(ctx, "found GitHub user by commit email", "email", email, "username", a.Login)
		return profileURL(a.HTMLURL, a.Login), nil
	}
	return "", nil
}

func profileURL(htmlURL, login string) string {
	if htmlURL != "" {
		return htmlURL
	}
	return "https://github.com/" + login
}

func (c *Client) githubGet(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.githubBaseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "dossier/1.0")
	if c.githubToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.githubToken)
	}

	body, err := httpcache.FetchURL(ctx, c.cache, c.httpClient, req, c.logger)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parse github response: %w", err)
	}
	return nil
}
