package agent

import (
	"net/url"
)

// ResolveSourceImage picks the image a generation should edit. The model's
// proposed URL is untrusted (models hallucinate and echo stale URLs), so the
// conversation's own history wins: the newest valid image URL actually seen
// in the conversation is used when one exists. The proposal is only a
// fallback. Either way the result must parse as an absolute http(s) URL;
// otherwise the generation proceeds from the prompt alone.
func ResolveSourceImage(historyURLs []string, proposedURL string) string {
	for _, candidate := range historyURLs {
		if isHTTPURL(candidate) {
			return candidate
		}
	}

	if isHTTPURL(proposedURL) {
		return proposedURL
	}

	return ""
}

func isHTTPURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}
