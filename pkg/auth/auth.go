// Package auth supplies session cookies for platforms that hide profiles behind a login wall.
package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"
)

// Source yields the session cookies for a platform. A source with nothing to offer
// returns nil, nil.
type Source interface {
	Cookies(ctx context.Context, platform string) (map[string]string, error)
}

// session names the cookie domain of a platform and the cookies that carry a login.
type session struct {
	domain  string
	cookies []string
}

var sessions = map[string]session{
	"facebook":  {domain: "facebook.com", cookies: []string{"c_user", "xs"}},
	"instagram": {domain: "instagram.com", cookies: []string{"sessionid", "csrftoken"}},
	"linkedin":  {domain: "linkedin.com", cookies: []string{"li_at", "JSESSIONID"}},
	"threads":   {domain: "threads.net", cookies: []string{"sessionid"}},
	"tiktok":    {domain: "tiktok.com", cookies: []string{"sessionid"}},
	"twitter":   {domain: "x.com", cookies: []string{"auth_token", "ct0"}},
}

// Chain tries sources in order and returns the first non-empty cookie set.
type Chain []Source

// Cookies implements Source.
func (c Chain) Cookies(ctx context.Context, platform string) (map[string]string, error) {
	return ChainSources(ctx, platform, c...)
}

// ChainSources returns cookies from the first source that has any. An error from a
// source stops the walk.
func ChainSources(ctx context.Context, platform string, sources ...Source) (map[string]string, error) {
	for _, src := range sources {
		cookies, err := src.Cookies(ctx, platform)
		if err != nil {
			return nil, err
		}
		if len(cookies) > 0 {
			return cookies, nil
		}
	}
	return nil, nil //nolint:nilnil // absent cookies are not an error
}

// SetCookieHeader writes cookies onto req as a single Cookie header, in name order.
func SetCookieHeader(req *http.Request, cookies map[string]string) {
	names := make([]string, 0, len(cookies))
	for name, value := range cookies {
		if value != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return
	}
	slices.Sort(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, (&http.Cookie{Name: name, Value: cookies[name]}).String())
	}
	req.Header.Set("Cookie", strings.Join(parts, "; "))
}
