package videoref

import (
	"net/url"
	"regexp"
	"strings"
)

var youtubeIdRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// ParseYouTubeId extracts a YouTube video id from a watch, short, embed or youtu.be URL,
// or accepts a bare 11 character id.
func ParseYouTubeId(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host := strings.ToLower(u.Hostname())
		switch {
		case strings.HasSuffix(host, "youtu.be"):
			id := strings.Trim(u.Path, "/")
			return id, youtubeIdRe.MatchString(id)
		case strings.HasSuffix(host, "youtube.com"), strings.HasSuffix(host, "youtube-nocookie.com"):
			if v := u.Query().Get("v"); v != "" {
				return v, youtubeIdRe.MatchString(v)
			}

			parts := strings.Split(u.Path, "/")
			for i, p := range parts {
				if (p == "shorts" || p == "embed" || p == "live") && i+1 < len(parts) {
					return parts[i+1], youtubeIdRe.MatchString(parts[i+1])
				}
			}
		}

		return "", false
	}

	return raw, youtubeIdRe.MatchString(raw)
}

// Normalize returns the canonical form of a video reference: a bare id for YouTube refs,
// the trimmed input otherwise. An empty ref normalizes to nil.
func Normalize(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if id, ok := ParseYouTubeId(raw); ok {
		return &id
	}

	return &raw
}
