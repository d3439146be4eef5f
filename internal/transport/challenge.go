package transport

import "strings"

// Markers seen on anti-automation interstitials. A 200 whose body
// contains one of these is a failed fetch, not content.
var challengeMarkers = []string{
	"checking your browser",
	"verify you are a human",
	"just a moment...",
	"cf-browser-verification",
	"cf-challenge",
	"attention required! | cloudflare",
	"pardon our interruption",
	"access denied",
	"px-captcha",
	"/_incapsula_",
}

// minUsableBody is the smallest payload accepted as a real page.
// Challenge shells and error stubs come in well under this.
const minUsableBody = 2048

// LooksLikeChallenge reports whether markup is an anti-automation
// interstitial rather than real page content.
func LooksLikeChallenge(markup string) bool {
	lower := strings.ToLower(markup)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// UsableMarkup validates a body as real content: non-trivial size and
// not a challenge page.
func UsableMarkup(markup string) error {
	if len(markup) < minUsableBody {
		return ErrEmptyBody
	}
	if LooksLikeChallenge(markup) {
		return ErrChallenge
	}
	return nil
}
