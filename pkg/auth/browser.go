package auth

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // register every browser cookie store
	"github.com/browserutils/kooky/browser/firefox"
)

// firefoxStores are Firefox-family cookie databases, relative to the home directory,
// that kooky's store discovery misses.
var firefoxStores = []string{
	filepath.Join(".mozilla", "firefox", "*", "cookies.sqlite"),
	filepath.Join("Library", "Application Support", "Firefox", "Profiles", "*", "cookies.sqlite"),
	filepath.Join("Library", "Application Support", "zen", "Profiles", "*", "cookies.sqlite"),
}

// BrowserSource reads session cookies out of the local browsers' cookie stores.
type BrowserSource struct {
	logger *slog.Logger
	home   string
}

// NewBrowserSource creates a BrowserSource that searches under $HOME.
func NewBrowserSource(logger *slog.Logger) *BrowserSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserSource{logger: logger, home: os.Getenv("HOME")}
}

// Cookies implements Source. Unreadable stores are logged and yield nothing.
func (b *BrowserSource) Cookies(ctx context.Context, platform string) (map[string]string, error) {
	s, ok := sessions[platform]
	if !ok {
		return nil, nil //nolint:nilnil // unknown platform
	}
	filters := []kooky.Filter{kooky.Valid, kooky.DomainHasSuffix(s.domain)}

	for _, path := range b.firefoxPaths() {
		found, err := firefox.ReadCookies(ctx, path, filters...)
		if err != nil {
			continue
		}
		if got := s.pick(found); len(got) > 0 {
			b.logger.DebugContext(ctx, "using firefox session",
				"platform", platform, "profile", filepath.Base(filepath.Dir(path)))
			return got, nil
		}
	}

	found, err := kooky.ReadCookies(ctx, filters...)
	if err != nil {
		b.logger.DebugContext(ctx, "browser cookie stores unreadable", "platform", platform, "error", err)
		return nil, nil //nolint:nilnil // a locked or missing store is not fatal
	}
	got := s.pick(found)
	b.logger.DebugContext(ctx, "browser cookies read", "platform", platform, "count", len(got))
	return got, nil
}

func (b *BrowserSource) firefoxPaths() []string {
	if b.home == "" {
		return nil
	}
	var paths []string
	for _, pattern := range firefoxStores {
		m, err := filepath.Glob(filepath.Join(b.home, pattern))
		if err == nil {
			paths = append(paths, m...)
		}
	}
	return paths
}

// pick keeps the login cookies of s, and returns nil unless at least one is present.
func (s session) pick(found []*kooky.Cookie) map[string]string {
	var out map[string]string
	for _, c := range found {
		if c.Value == "" || !slices.Contains(s.cookies, c.Name) {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(s.cookies))
		}
		out[c.Name] = c.Value
	}
	return out
}
