package trigger

import (
	"testing"

	"github.com/tourflow/tourflow/pkg/embed"
)

func TestMatchURL(t *testing.T) {
	tests := []struct {
		pattern string
		url     string
		want    bool
	}{
		{"*", "https://example.com/anything", true},
		{"/dashboard/*", "/dashboard/settings", true},
		{"/dashboard/*", "/dashboard/a/b/c", true},
		{"/dashboard/*", "https://app.example.com/dashboard/projects?x=1", true},
		{"/dashboard/*", "/pricing", false},
		{"/dashboard/*", "/dashboard", false},
		{"/pricing", "/pricing", true},
		{"/pricing", "/pricing/enterprise", false},
		{"https://*.example.com/*", "https://app.example.com/home", true},
		{"https://*.example.com/*", "https://example.org/home", false},
		{"/a.b/*", "/aXb/c", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.url, func(t *testing.T) {
			if got := MatchURL(tt.pattern, tt.url); got != tt.want {
				t.Errorf("MatchURL(%q, %q) = %v, want %v", tt.pattern, tt.url, got, tt.want)
			}
		})
	}
}

func TestEligible(t *testing.T) {
	tests := []struct {
		name string
		t    *embed.Targeting
		s    Signals
		want bool
	}{
		{"no targeting", nil, Signals{URL: "/x"}, true},
		{"all urls", &embed.Targeting{URLPatterns: []string{"*"}}, Signals{URL: "/x"}, true},
		{"url miss", &embed.Targeting{URLPatterns: []string{"/dashboard/*"}}, Signals{URL: "/pricing"}, false},
		{"second pattern hits", &embed.Targeting{URLPatterns: []string{"/dashboard/*", "/pricing"}}, Signals{URL: "/pricing"}, true},
		{"no patterns allows every url", &embed.Targeting{}, Signals{URL: "https://app.example.com/anything"}, true},
		{"empty patterns allows every url", &embed.Targeting{URLPatterns: []string{}}, Signals{URL: "/billing"}, true},
		{"no patterns still hides on mobile", &embed.Targeting{HideOnMobile: true}, Signals{URL: "/", Mobile: true}, false},
		{"mobile hidden", &embed.Targeting{URLPatterns: []string{"*"}, HideOnMobile: true}, Signals{URL: "/", Mobile: true}, false},
		{"desktop shown", &embed.Targeting{URLPatterns: []string{"*"}, HideOnMobile: true}, Signals{URL: "/"}, true},
		{"returning user", &embed.Targeting{URLPatterns: []string{"*"}, NewUsersOnly: true}, Signals{URL: "/"}, false},
		{"new user", &embed.Targeting{URLPatterns: []string{"*"}, NewUsersOnly: true}, Signals{URL: "/", NewUser: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := Eligible(tt.t, tt.s)
			if got != tt.want {
				t.Errorf("Eligible = %v (%s), want %v", got, reason, tt.want)
			}
			if !got && reason == "" {
				t.Error("blocked without reason")
			}
		})
	}
}

func TestDetectMobile(t *testing.T) {
	if !DetectMobile("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)") {
		t.Error("iPhone not mobile")
	}
	if DetectMobile("Mozilla/5.0 (X11; Linux x86_64) Gecko/20100101 Firefox/120.0") {
		t.Error("desktop detected as mobile")
	}
}
