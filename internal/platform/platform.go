package platform

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/exp/slices"
)

// Platform defines how links of one video site are recognised and resolved
type Platform interface {
	// GetName returns the platform name
	GetName() string

	// MatchHost reports whether a URL host belongs to the platform
	MatchHost(host string) bool

	// ExtractID returns the content id embedded in the URL, or "" when the
	// URL carries none
	ExtractID(u *url.URL) string

	// ValidID reports whether id matches the platform's id grammar
	ValidID(id string) bool

	// GetTimestampParams returns the query/fragment keys that carry a start
	// offset, in priority order
	GetTimestampParams(u *url.URL) []string

	// GetWatchURL returns the canonical URL the fetcher downloads from
	GetWatchURL(id string) string
}

var platforms = make(map[string]Platform)

// Register adds a platform to the registry
func Register(p Platform) {
	platforms[p.GetName()] = p
}

// Get returns a platform by name
func Get(name string) (Platform, error) {
	p, ok := platforms[name]
	if !ok {
		return nil, fmt.Errorf("unsupported platform: %s", name)
	}
	return p, nil
}

// ForHost returns the platform serving host, if any
func ForHost(host string) (Platform, bool) {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	for _, name := range GetSupportedPlatforms() {
		if p := platforms[name]; p.MatchHost(host) {
			return p, true
		}
	}
	return nil, false
}

// GetSupportedPlatforms returns a sorted list of supported platform names
func GetSupportedPlatforms() []string {
	names := make([]string, 0, len(platforms))
	for name := range platforms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
