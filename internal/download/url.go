package download

import "regexp"

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[?&]v=([\w-]{6,})`),
	regexp.MustCompile(`youtu\.be/([\w-]{6,})`),
	regexp.MustCompile(`/shorts/([\w-]{6,})`),
	regexp.MustCompile(`/embed/([\w-]{6,})`),
	regexp.MustCompile(`/v/([\w-]{6,})`),
}

var validURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/watch\?v=[\w-]+`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtu\.be/[\w-]+`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/embed/[\w-]+`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/v/[\w-]+`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/shorts/[\w-]+`),
}

// ExtractVideoID pulls the video identifier out of watch, short, shorts,
// embed, and legacy URL forms. Returns "" when no identifier is present.
func ExtractVideoID(url string) string {
	for _, pattern := range videoIDPatterns {
		if m := pattern.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	return ""
}

// IsValidURL reports whether the URL is a supported video URL.
func IsValidURL(url string) bool {
	for _, pattern := range validURLPatterns {
		if pattern.MatchString(url) {
			return true
		}
	}
	return false
}

// NormalizeWatchURL rewrites any supported URL form to watch?v=. Shorts
// URLs occasionally fail on headless hosts; the watch form does not.
func NormalizeWatchURL(url string) string {
	if id := ExtractVideoID(url); id != "" {
		return "https://www.youtube.com/watch?v=" + id
	}
	return url
}
