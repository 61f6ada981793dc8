package auth

import (
	"context"
	"os"
	"strings"
)

// EnvSource reads cookies from variables named <PLATFORM>_<COOKIE>, upper-cased,
// such as LINKEDIN_LI_AT.
type EnvSource struct {
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// EnvVar returns the variable EnvSource reads for one cookie.
func EnvVar(platform, cookie string) string {
	return strings.ToUpper(platform + "_" + cookie)
}

// Cookies implements Source.
func (e EnvSource) Cookies(_ context.Context, platform string) (map[string]string, error) {
	s, ok := sessions[platform]
	if !ok {
		return nil, nil //nolint:nilnil // unknown platform
	}
	getenv := e.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	var cookies map[string]string
	for _, name := range s.cookies {
		v := getenv(EnvVar(platform, name))
		if v == "" {
			continue
		}
		if cookies == nil {
			cookies = make(map[string]string, len(s.cookies))
		}
		cookies[name] = v
	}
	return cookies, nil
}
