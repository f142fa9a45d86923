package embed

// Theme selects the widget colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

// Position anchors the widget when a step has no target element.
type Position string

const (
	PositionBottomRight Position = "bottom-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionCenter      Position = "center"
	PositionTopRight    Position = "top-right"
	PositionTopLeft     Position = "top-left"
)

// Config is the per-integration customization handed to the widget by the
// hosting page. The JSON shape is the one produced by the dashboard's
// configuration download and embed-code generator.
type Config struct {
	ID        string     `json:"id,omitempty"     yaml:"id,omitempty"`
	Name      string     `json:"name"             yaml:"name"`
	TourID    string     `json:"tourId"           yaml:"tour_id"`
	Theme     Theme      `json:"theme"            yaml:"theme"`
	Position  Position   `json:"position"         yaml:"position"`
	Colors    Colors     `json:"colors"           yaml:"colors"`
	Features  Features   `json:"features"         yaml:"features"`
	Triggers  *Triggers  `json:"triggers,omitempty"  yaml:"triggers,omitempty"`
	Targeting *Targeting `json:"targeting,omitempty" yaml:"targeting,omitempty"`
	APIURL    string     `json:"apiUrl,omitempty" yaml:"api_url,omitempty"`
}

// Colors is the widget palette. Values are CSS hex colours.
type Colors struct {
	Primary    string `json:"primary"    yaml:"primary"`
	Background string `json:"background" yaml:"background"`
	Text       string `json:"text"       yaml:"text"`
	Progress   string `json:"progress"   yaml:"progress"`
}

// Features toggles optional widget behaviour.
type Features struct {
	ShowProgress        bool `json:"showProgress"        yaml:"show_progress"`
	AllowSkip           bool `json:"allowSkip"           yaml:"allow_skip"`
	ShowCounter         bool `json:"showCounter"         yaml:"show_counter"`
	AutoStart           bool `json:"autoStart"           yaml:"auto_start"`
	ShowControls        bool `json:"showControls"        yaml:"show_controls"`
	CloseOnClickOutside bool `json:"closeOnClickOutside" yaml:"close_on_click_outside"`
}

// Triggers lists the conditions that may start a tour. They are not
// mutually exclusive; the first one satisfied wins.
type Triggers struct {
	OnPageLoad     PageLoadTrigger     `json:"onPageLoad"     yaml:"on_page_load"`
	OnElementClick ElementClickTrigger `json:"onElementClick" yaml:"on_element_click"`
	OnScroll       ScrollTrigger       `json:"onScroll"       yaml:"on_scroll"`
}

// PageLoadTrigger fires DelayMs milliseconds after DOM ready.
type PageLoadTrigger struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	DelayMs int  `json:"delay"   yaml:"delay"`
}

// ElementClickTrigger fires on the first click landing inside Selector.
type ElementClickTrigger struct {
	Enabled  bool   `json:"enabled"  yaml:"enabled"`
	Selector string `json:"selector" yaml:"selector"`
}

// ScrollTrigger fires once vertical scroll reaches Percentage.
type ScrollTrigger struct {
	Enabled    bool    `json:"enabled"    yaml:"enabled"`
	Percentage float64 `json:"percentage" yaml:"percentage"`
}

// Targeting restricts which pages and visitors a tour may run for.
type Targeting struct {
	URLPatterns  []string `json:"urlPatterns"  yaml:"url_patterns"`
	NewUsersOnly bool     `json:"newUsersOnly" yaml:"new_users_only"`
	HideOnMobile bool     `json:"hideOnMobile" yaml:"hide_on_mobile"`
	// UserSegments is carried for the host; the engine does not evaluate it.
	UserSegments []string `json:"userSegments" yaml:"user_segments"`
}

// Default returns the configuration the dashboard starts from.
func Default() Config {
	return Config{
		Name:     "My Tour Configuration",
		Theme:    ThemeAuto,
		Position: PositionBottomRight,
		Colors: Colors{
			Primary:    "#3b82f6",
			Background: "#ffffff",
			Text:       "#1f2937",
			Progress:   "#10b981",
		},
		Features: Features{
			ShowProgress:        true,
			AllowSkip:           true,
			ShowCounter:         true,
			AutoStart:           false,
			ShowControls:        true,
			CloseOnClickOutside: true,
		},
		Triggers: &Triggers{
			OnPageLoad:     PageLoadTrigger{Enabled: true, DelayMs: 1000},
			OnElementClick: ElementClickTrigger{Enabled: false, Selector: "#start-tour"},
			OnScroll:       ScrollTrigger{Enabled: false, Percentage: 50},
		},
		Targeting: &Targeting{
			URLPatterns:  []string{"*"},
			UserSegments: []string{},
		},
	}
}

// ColorPreset is a named palette offered by the customizer.
type ColorPreset struct {
	Name       string `json:"name"`
	Primary    string `json:"primary"`
	Background string `json:"background"`
	Text       string `json:"text"`
}

// Presets returns the built-in colour presets.
func Presets() []ColorPreset {
	return []ColorPreset{
		{Name: "Blue", Primary: "#3b82f6", Background: "#ffffff", Text: "#1f2937"},
		{Name: "Purple", Primary: "#8b5cf6", Background: "#ffffff", Text: "#1f2937"},
		{Name: "Green", Primary: "#10b981", Background: "#ffffff", Text: "#1f2937"},
		{Name: "Dark", Primary: "#8b5cf6", Background: "#1f2937", Text: "#f9fafb"},
		{Name: "Light", Primary: "#3b82f6", Background: "#f9fafb", Text: "#111827"},
		{Name: "Sunset", Primary: "#f59e0b", Background: "#fef3c7", Text: "#78350f"},
	}
}

// ApplyPreset copies a preset palette onto the config, keeping the progress colour.
func (c *Config) ApplyPreset(p ColorPreset) {
	c.Colors.Primary = p.Primary
	c.Colors.Background = p.Background
	c.Colors.Text = p.Text
}
