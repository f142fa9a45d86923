// Package trigger decides whether and when a tour starts on a page.
package trigger

import (
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/tourflow/tourflow/pkg/embed"
)

// Signals are the page facts supplied by the host.
type Signals struct {
	URL       string
	Mobile    bool
	NewUser   bool
	UserAgent string
}

// Eligible applies targeting rules. A nil targeting block or an empty
// URLPatterns list allows every page.
// The returned reason names the rule that blocked the tour.
func Eligible(t *embed.Targeting, s Signals) (bool, string) {
	if t == nil {
		return true, ""
	}
	if t.HideOnMobile && s.Mobile {
		return false, "hidden on mobile"
	}
	if t.NewUsersOnly && !s.NewUser {
		return false, "returning user"
	}
	if len(t.URLPatterns) == 0 {
		return true, ""
	}
	for _, p := range t.URLPatterns {
		if MatchURL(p, s.URL) {
			return true, ""
		}
	}
	return false, "url not targeted"
}

var (
	patternMu    sync.Mutex
	patternCache = make(map[string]*regexp.Regexp)
)

// MatchURL reports whether rawURL matches a glob pattern in which "*"
// matches any run of characters, slashes included. Patterns starting with
// "/" are matched against the URL path only.
func MatchURL(pattern, rawURL string) bool {
	if pattern == "*" {
		return true
	}

	subject := rawURL
	if strings.HasPrefix(pattern, "/") {
		if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
			subject = u.Path
		}
	}
	return compile(pattern).MatchString(subject)
}

func compile(pattern string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patternCache[pattern]; ok {
		return re
	}

	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re := regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")
	patternCache[pattern] = re
	return re
}

var mobileMarkers = []string{"Mobi", "Android", "iPhone", "iPad", "iPod", "Windows Phone"}

// DetectMobile guesses the device class from a User-Agent header.
func DetectMobile(userAgent string) bool {
	for _, m := range mobileMarkers {
		if strings.Contains(userAgent, m) {
			return true
		}
	}
	return false
}
