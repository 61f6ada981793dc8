package dossier

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/dossier/pkg/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{name: "no cache", opts: []Option{WithoutCache()}},
		{name: "disk cache", opts: []Option{WithCache(DefaultCacheTTL, t.TempDir())}},
		{name: "memory store", opts: []Option{WithoutCache(), WithStore(store.NewMemory())}},
		{name: "selected platforms and engines", opts: []Option{WithoutCache(), WithPlatforms("github", "reddit"), WithEngines("bing")}},
		{name: "unknown platform", opts: []Option{WithoutCache(), WithPlatforms("myspace")}, wantErr: true},
		{name: "unknown engine", opts: []Option{WithoutCache(), WithEngines("altavista")}, wantErr: true},
		{name: "bad concurrency", opts: []Option{WithCache(DefaultCacheTTL, t.TempDir()), WithConcurrency(-1)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := New(context.Background(), append(tt.opts, WithLogger(quietLogger()))...)
			if tt.wantErr {
				if err == nil {
					_ = svc.Close()
					t.Fatal("New succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if err := svc.Close(); err != nil {
				t.Errorf("Close: %v", err)
			}
		})
	}
}

func TestCookieSourcePrecedence(t *testing.T) {
	t.Setenv("LINKEDIN_LI_AT", "from-env")
	t.Setenv("LINKEDIN_JSESSIONID", "")
	t.Setenv("INSTAGRAM_SESSIONID", "")
	t.Setenv("INSTAGRAM_CSRFTOKEN", "")
	cfg := &config{
		logger:  quietLogger(),
		cookies: map[string]map[string]string{"twitter": {"auth_token": "explicit"}},
	}
	src := cookieSource(cfg)

	got, err := src.Cookies(context.Background(), "twitter")
	if err != nil {
		t.Fatalf("Cookies: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"auth_token": "explicit"}, got); diff != "" {
		t.Errorf("twitter cookies mismatch (-want +got):\n%s", diff)
	}

	got, err = src.Cookies(context.Background(), "linkedin")
	if err != nil {
		t.Fatalf("Cookies: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"li_at": "from-env"}, got); diff != "" {
		t.Errorf("linkedin cookies mismatch (-want +got):\n%s", diff)
	}

	got, err = src.Cookies(context.Background(), "instagram")
	if err != nil {
		t.Fatalf("Cookies: %v", err)
	}
	if got != nil {
		t.Errorf("instagram cookies = %v, want none", got)
	}
}

func TestBuildEngines(t *testing.T) {
	cfg := &config{logger: quietLogger()}
	var names []string
	for _, e := range buildEngines(cfg, nil) {
		names = append(names, e.Name())
	}
	if diff := cmp.Diff([]string{"duckduckgo", "bing"}, names); diff != "" {
		t.Errorf("default engines mismatch (-want +got):\n%s", diff)
	}
}
