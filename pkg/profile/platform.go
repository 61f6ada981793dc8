// Platform registration and interface definitions.

package profile

import (
	"fmt"
	"strings"
	"sync"
)

// Category indicates what kind of content a platform hosts.
type Category string

// Platform categories.
const (
	CategorySocial  Category = "social"
	CategoryCode    Category = "code"
	CategoryMedia   Category = "media"
	CategoryGaming  Category = "gaming"
	CategoryForum   Category = "forum"
	CategoryDating  Category = "dating"
	CategoryAdult   Category = "adult"
	CategoryOther   Category = "other"
	CategoryUnknown Category = ""
)

// Platform is a site that can be checked for a username.
type Platform interface {
	// Name returns the platform identifier (e.g., "github", "twitter").
	Name() string

	// Category returns the kind of content this platform hosts.
	Category() Category

	// ProfileURL returns the URL a profile for username would live at.
	ProfileURL(username string) string

	// ValidUsername reports whether the platform accepts username at all.
	ValidUsername(username string) bool

	// AuthRequired returns true if session cookies are needed to tell profiles apart from login walls.
	AuthRequired() bool

	// NSFW reports whether the platform hosts adult content.
	NSFW() bool
}

// Site is a Platform described by a URL template.
type Site struct {
	ID       string
	URL      string // %s is replaced by the username
	Kind     Category
	Adult    bool
	Auth     bool
	Validate func(username string) bool // nil accepts any username
	// NotFound holds extra body markers that mean "no such user" on this site.
	NotFound []string
}

func (s Site) Name() string       { return s.ID }
func (s Site) Category() Category { return s.Kind }
func (s Site) AuthRequired() bool { return s.Auth }
func (s Site) NSFW() bool         { return s.Adult }

func (s Site) ProfileURL(username string) string {
	return strings.Replace(s.URL, "%s", username, 1)
}

func (s Site) ValidUsername(username string) bool {
	if s.Validate == nil {
		return username != ""
	}
	return s.Validate(username)
}

// NotFoundMarkers returns the site-specific "no such user" markers.
func (s Site) NotFoundMarkers() []string { return s.NotFound }

// registry holds all registered platforms.
var (
	registryMu sync.RWMutex
	registry   []Platform
	byName     = make(map[string]Platform)
)

// Register adds a platform to the global registry.
// It panics if a platform with the same name is already registered.
func Register(p Platform) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := p.Name()
	if _, exists := byName[name]; exists {
		panic("platform already registered: " + name)
	}

	registry = append(registry, p)
	byName[name] = p
}

// Platforms returns all registered platforms in registration order.
func Platforms() []Platform {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Platform, len(registry))
	copy(result, registry)
	return result
}

// LookupPlatform returns the platform with the given name, or nil if not found.
func LookupPlatform(name string) Platform {
	registryMu.RLock()
	defer registryMu.RUnlock()

	return byName[name]
}

// Select returns the registered platforms with the given names.
// An empty list selects every platform.
func Select(names []string) ([]Platform, error) {
	if len(names) == 0 {
		return Platforms(), nil
	}
	out := make([]Platform, 0, len(names))
	for _, n := range names {
		p := LookupPlatform(n)
		if p == nil {
			return nil, fmt.Errorf("unknown platform %q", n)
		}
		out = append(out, p)
	}
	return out, nil
}

// CategoryOf returns the category for a platform name, or CategoryOther for unknown platforms.
func CategoryOf(name string) Category {
	if p := LookupPlatform(name); p != nil {
		return p.Category()
	}
	return CategoryOther
}
