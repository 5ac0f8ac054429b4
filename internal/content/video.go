package content

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// VideoRef is a canonical video identifier plus an optional start
// offset in seconds.
type VideoRef struct {
	ID    string
	Start int
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var ErrInvalidVideoRef = errors.New("invalid video reference")

// ParseVideoRef extracts a canonical video id and optional start offset
// from a free-form URL or bare id string. Accepted forms: a bare 11-char
// id, youtu.be short links, and youtube.com watch/embed/shorts URLs,
// each with an optional t= or start= query parameter.
func ParseVideoRef(s string) (VideoRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return VideoRef{}, fmt.Errorf("%w: empty string", ErrInvalidVideoRef)
	}

	if videoIDPattern.MatchString(s) {
		return VideoRef{ID: s}, nil
	}

	raw := s
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return VideoRef{}, fmt.Errorf("%w: %v", ErrInvalidVideoRef, err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "m.youtube.com", "youtube-nocookie.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"):
			id = strings.TrimPrefix(u.Path, "/embed/")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.TrimPrefix(u.Path, "/shorts/")
		case strings.HasPrefix(u.Path, "/live/"):
			id = strings.TrimPrefix(u.Path, "/live/")
		default:
			return VideoRef{}, fmt.Errorf("%w: unsupported youtube path %q", ErrInvalidVideoRef, u.Path)
		}
	default:
		return VideoRef{}, fmt.Errorf("%w: unsupported host %q", ErrInvalidVideoRef, u.Hostname())
	}

	id = strings.Trim(id, "/")
	if !videoIDPattern.MatchString(id) {
		return VideoRef{}, fmt.Errorf("%w: %q is not a video id", ErrInvalidVideoRef, id)
	}

	ref := VideoRef{ID: id}
	offset := u.Query().Get("t")
	if offset == "" {
		offset = u.Query().Get("start")
	}
	if offset != "" {
		seconds, err := parseStartOffset(offset)
		if err != nil {
			return VideoRef{}, fmt.Errorf("%w: bad start offset %q: %v", ErrInvalidVideoRef, offset, err)
		}
		ref.Start = seconds
	}
	return ref, nil
}

var offsetPattern = regexp.MustCompile(`^(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s?)?$`)

// parseStartOffset accepts "90", "90s", "1m30s" and "1h2m3s" forms.
func parseStartOffset(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty offset")
	}
	m := offsetPattern.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "") {
		return 0, errors.New("unrecognized offset format")
	}
	total := 0
	units := []int{3600, 60, 1}
	for i, part := range m[1:] {
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, err
		}
		total += n * units[i]
	}
	return total, nil
}

// WatchURL renders the canonical watch URL for the reference.
func (r VideoRef) WatchURL() string {
	if r.Start > 0 {
		return fmt.Sprintf("https://www.youtube.com/watch?v=%s&t=%ds", r.ID, r.Start)
	}
	return "https://www.youtube.com/watch?v=" + r.ID
}
