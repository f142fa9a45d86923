package tour

import "github.com/tourflow/tourflow/pkg/embed"

// Definition is a YAML-mappable tour: an ordered list of steps plus the
// presentation settings stored with it.
type Definition struct {
	ID          string   `yaml:"id"          json:"id"`
	Name        string   `yaml:"name"        json:"name"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Published   bool     `yaml:"published"   json:"published"`
	Steps       []Step   `yaml:"steps"       json:"steps"`
	Settings    Settings `yaml:"settings"    json:"settings"`
}

// Step is one unit of a tour anchored to a target element.
type Step struct {
	ID          string `yaml:"id"          json:"id"`
	Title       string `yaml:"title"       json:"title"`
	Description string `yaml:"description" json:"description"`
	// Target is a CSS selector. Empty means the step floats at the widget position.
	Target   string `yaml:"target"   json:"target"`
	Position string `yaml:"position" json:"position,omitempty"`
	Order    int    `yaml:"order"    json:"order"`
}

// Settings holds the presentation stored alongside a tour.
type Settings struct {
	Theme    embed.Theme    `yaml:"theme"    json:"theme"`
	Position embed.Position `yaml:"position" json:"position"`
	Colors   embed.Colors   `yaml:"colors"   json:"colors"`
	Features embed.Features `yaml:"features" json:"features"`
}

// Len returns the number of steps.
func (d *Definition) Len() int { return len(d.Steps) }

// StepAt returns the step with the given zero-based order.
func (d *Definition) StepAt(i int) (Step, bool) {
	if i < 0 || i >= len(d.Steps) {
		return Step{}, false
	}
	return d.Steps[i], true
}
