package platform

import (
	"net/url"
	"regexp"
	"strings"
)

var youtubeID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// path prefixes that carry the id as the next path element
var youtubePathPrefixes = []string{"embed", "v", "shorts", "live"}

type YouTube struct{}

func init() {
	Register(&YouTube{})
}

func (p *YouTube) GetName() string {
	return "youtube"
}

func (p *YouTube) MatchHost(host string) bool {
	host = strings.TrimPrefix(host, "www.")
	switch host {
	case "youtu.be", "youtube.com", "m.youtube.com", "music.youtube.com",
		"youtube-nocookie.com":
		return true
	}
	return false
}

func (p *YouTube) ExtractID(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })

	if host == "youtu.be" {
		if len(parts) == 0 {
			return ""
		}
		return parts[0]
	}

	if len(parts) == 1 && parts[0] == "watch" {
		return u.Query().Get("v")
	}

	if len(parts) >= 2 {
		for _, prefix := range youtubePathPrefixes {
			if parts[0] == prefix {
				return parts[1]
			}
		}
	}

	return ""
}

func (p *YouTube) ValidID(id string) bool {
	return youtubeID.MatchString(id)
}

func (p *YouTube) GetTimestampParams(u *url.URL) []string {
	if strings.HasPrefix(u.Path, "/embed/") {
		return []string{"start", "t"}
	}
	return []string{"t", "start"}
}

func (p *YouTube) GetWatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
