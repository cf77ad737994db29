package tv

import (
	"net/url"
	"strings"
)

// IsYouTube reports whether the foreground app is YouTube, by name or URL.
func IsYouTube(app AppStatus) bool {
	for _, s := range []string{app.Title, app.Name} {
		if strings.Contains(strings.ToLower(s), "youtube") {
			return true
		}
	}
	return ExtractVideoID(app.URL) != ""
}

// ExtractVideoID pulls the video id out of the common YouTube URL shapes:
// youtube.com/watch?v=ID, youtu.be/ID, youtube.com/shorts/ID and
// youtube.com/embed/ID. Anything else yields "".
func ExtractVideoID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	path := strings.Trim(u.Path, "/")

	switch host {
	case "youtu.be":
		return validID(firstSegment(path))
	case "youtube.com", "music.youtube.com":
		if path == "watch" {
			return validID(u.Query().Get("v"))
		}
		for _, prefix := range []string{"shorts/", "embed/", "live/", "v/"} {
			if strings.HasPrefix(path, prefix) {
				return validID(firstSegment(strings.TrimPrefix(path, prefix)))
			}
		}
	}
	return ""
}

func firstSegment(path string) string {
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}

// validID accepts the URL-safe base64 alphabet YouTube ids are drawn from.
func validID(id string) string {
	if id == "" || len(id) > 64 {
		return ""
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return ""
		}
	}
	return id
}
