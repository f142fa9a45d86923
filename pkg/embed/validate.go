package embed

import (
	"errors"
	"fmt"
	"regexp"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// ValidationError reports a config field that does not have a usable shape.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("embed config %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err carries a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks the config for shape errors. It returns the first problem found.
func (c *Config) Validate() error {
	if c.TourID == "" {
		return &ValidationError{Field: "tourId", Reason: "is required"}
	}

	switch c.Theme {
	case ThemeLight, ThemeDark, ThemeAuto:
	default:
		return &ValidationError{Field: "theme", Reason: fmt.Sprintf("unknown theme %q", c.Theme)}
	}

	switch c.Position {
	case PositionBottomRight, PositionBottomLeft, PositionCenter, PositionTopRight, PositionTopLeft:
	default:
		return &ValidationError{Field: "position", Reason: fmt.Sprintf("unknown position %q", c.Position)}
	}

	colors := []struct {
		field, value string
	}{
		{"colors.primary", c.Colors.Primary},
		{"colors.background", c.Colors.Background},
		{"colors.text", c.Colors.Text},
		{"colors.progress", c.Colors.Progress},
	}
	for _, col := range colors {
		if !hexColor.MatchString(col.value) {
			return &ValidationError{Field: col.field, Reason: fmt.Sprintf("%q is not a hex colour", col.value)}
		}
	}

	if t := c.Triggers; t != nil {
		if t.OnPageLoad.DelayMs < 0 {
			return &ValidationError{Field: "triggers.onPageLoad.delay", Reason: "must not be negative"}
		}
		if t.OnElementClick.Enabled && t.OnElementClick.Selector == "" {
			return &ValidationError{Field: "triggers.onElementClick.selector", Reason: "is required when enabled"}
		}
		if t.OnScroll.Percentage < 0 || t.OnScroll.Percentage > 100 {
			return &ValidationError{Field: "triggers.onScroll.percentage", Reason: "must be between 0 and 100"}
		}
	}

	if tg := c.Targeting; tg != nil {
		for i, p := range tg.URLPatterns {
			if p == "" {
				return &ValidationError{Field: fmt.Sprintf("targeting.urlPatterns[%d]", i), Reason: "must not be empty"}
			}
		}
	}

	return nil
}
