package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefault(t *testing.T) {
	c := Default()
	if c.Database.Driver != "memory" || c.Server.Listen != ":8080" {
		t.Errorf("unexpected defaults: %+v", c)
	}
	if !c.Cache.On() || !c.Email.Profiles() {
		t.Error("cache and email profile search should default to on")
	}
	if c.Cache.TTL.D() != 75*24*time.Hour {
		t.Errorf("cache ttl = %v", c.Cache.TTL.D())
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("DOSSIER_TEST_HIBP", "secret")
	yml := `
logging:
  level: debug
cache:
  enabled: false
  ttl: 2d
search:
  timeout: 45s
  web_results: 5
  exclude_nsfw: true
email:
  hibp_api_key: ${DOSSIER_TEST_HIBP}
  github_token: ${DOSSIER_TEST_UNSET:-fallback}
  search_profiles: false
phone:
  default_region: GB
usernames:
  platforms: [github, reddit]
database:
  driver: postgres
  dsn: postgres://localhost/dossier
`
	path := filepath.Join(t.TempDir(), "dossier.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Cache.On() {
		t.Error("cache should be disabled")
	}
	if c.Email.Profiles() {
		t.Error("email profile search should be disabled")
	}
	if got, want := c.Cache.TTL.D(), 48*time.Hour; got != want {
		t.Errorf("cache ttl = %v, want %v", got, want)
	}
	if got := c.Search.Timeout.D(); got != 45*time.Second {
		t.Errorf("search timeout = %v", got)
	}
	if c.Email.HIBPAPIKey != "secret" || c.Email.GitHubToken != "fallback" {
		t.Errorf("env expansion failed: %+v", c.Email)
	}
	if diff := cmp.Diff([]string{"github", "reddit"}, c.Usernames.Platforms); diff != "" {
		t.Errorf("platforms mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"duckduckgo", "bing"}, c.WebSearch.Engines); diff != "" {
		t.Errorf("engines mismatch (-want +got):\n%s", diff)
	}
	if c.Search.MaxConcurrency != 8 || c.Search.WebResults != 5 || !c.Search.ExcludeNSFW {
		t.Errorf("search = %+v", c.Search)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), c); diff != "" {
		t.Errorf("Load(\"\") mismatch (-want +got):\n%s", diff)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{name: "bad level", yml: "logging:\n  level: loud\n"},
		{name: "postgres without dsn", yml: "database:\n  driver: postgres\n"},
		{name: "unknown driver", yml: "database:\n  driver: sqlite\n"},
		{name: "unknown engine", yml: "websearch:\n  engines: [altavista]\n"},
		{name: "long region", yml: "phone:\n  default_region: USA\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yml)); !errors.Is(err, ErrInvalid) {
				t.Errorf("Parse err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestParseBadDuration(t *testing.T) {
	_, err := Parse([]byte("http:\n  timeout: soon\n"))
	if err == nil || errors.Is(err, ErrInvalid) {
		t.Errorf("Parse err = %v, want a decode error", err)
	}
}
