package auth

import (
	"context"
	"maps"
)

// StaticSource serves fixed per-platform cookies, typically from configuration.
type StaticSource struct {
	cookies map[string]map[string]string
}

// NewStaticSource creates a cookie source from platform -> cookie name -> value.
func NewStaticSource(cookies map[string]map[string]string) *StaticSource {
	return &StaticSource{cookies: cookies}
}

// Cookies returns a copy of the configured cookies for platform.
func (s *StaticSource) Cookies(_ context.Context, platform string) (map[string]string, error) {
	c := s.cookies[platform]
	if len(c) == 0 {
		return nil, nil //nolint:nilnil // nothing configured is not an error
	}
	return maps.Clone(c), nil
}
