package embed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// Format selects the flavour of installation snippet.
type Format string

const (
	FormatHTML  Format = "html"
	FormatReact Format = "react"
	FormatVue   Format = "vue"
)

// ErrNoTour is returned when a snippet is requested before a tour is chosen.
var ErrNoTour = errors.New("embed: select a tour before generating a snippet")

// SnippetOptions controls snippet rendering.
type SnippetOptions struct {
	// Origin is the scheme://host serving embed.js. Falls back to the config's APIURL.
	Origin   string
	Minified bool
}

// widgetConfig is the subset of Config shipped to the browser.
type widgetConfig struct {
	TourID    string     `json:"tourId"`
	Theme     Theme      `json:"theme"`
	Position  Position   `json:"position"`
	Colors    Colors     `json:"colors"`
	Features  Features   `json:"features"`
	Triggers  *Triggers  `json:"triggers,omitempty"`
	Targeting *Targeting `json:"targeting,omitempty"`
	APIURL    string     `json:"apiUrl"`
}

type snippetCtx struct {
	Origin string
	Config string
}

var snippetTemplates = map[Format]*template.Template{
	FormatHTML: template.Must(template.New("html").Parse(`<!-- TourFlow Embed Code -->
<!-- Add this to your website's HTML -->
<script src="{{.Origin}}/embed.js"></script>
<script>
  var tourflow = TourFlow.init({{.Config}});
</script>
<!-- End TourFlow Embed Code -->
`)),
	FormatReact: template.Must(template.New("react").Parse(`import { useEffect } from 'react';

function App() {
  useEffect(() => {
    let handle;
    const script = document.createElement('script');
    script.src = '{{.Origin}}/embed.js';
    script.async = true;
    script.onload = () => {
      handle = window.TourFlow.init({{.Config}});
    };
    document.body.appendChild(script);

    return () => {
      if (handle) handle.destroy();
      document.body.removeChild(script);
    };
  }, []);

  return (
    <div>
      {/* Your app content */}
    </div>
  );
}
`)),
	FormatVue: template.Must(template.New("vue").Parse(`<template>
  <div>
    <!-- Your app content -->
  </div>
</template>

<script setup>
import { onMounted, onBeforeUnmount } from 'vue';

let handle;

onMounted(() => {
  const script = document.createElement('script');
  script.src = '{{.Origin}}/embed.js';
  script.async = true;
  script.onload = () => {
    handle = window.TourFlow.init({{.Config}});
  };
  document.body.appendChild(script);
});

onBeforeUnmount(() => {
  if (handle) handle.destroy();
});
</script>
`)),
}

var minifiedHTML = template.Must(template.New("html-min").Parse(
	`<script src="{{.Origin}}/embed.js"></script><script>TourFlow.init({{.Config}})</script>`))

// Snippet renders the code a host pastes into its site to install the widget.
func Snippet(cfg Config, format Format, opts SnippetOptions) (string, error) {
	if cfg.TourID == "" {
		return "", ErrNoTour
	}

	origin := strings.TrimSuffix(opts.Origin, "/")
	if origin == "" {
		origin = strings.TrimSuffix(cfg.APIURL, "/")
	}

	wc := widgetConfig{
		TourID:    cfg.TourID,
		Theme:     cfg.Theme,
		Position:  cfg.Position,
		Colors:    cfg.Colors,
		Features:  cfg.Features,
		Triggers:  cfg.Triggers,
		Targeting: cfg.Targeting,
		APIURL:    origin,
	}

	tmpl, ok := snippetTemplates[format]
	if !ok {
		return "", fmt.Errorf("embed: unknown snippet format %q", format)
	}

	var raw []byte
	var err error
	if opts.Minified {
		raw, err = json.Marshal(wc)
		if format == FormatHTML {
			tmpl = minifiedHTML
		}
	} else {
		raw, err = json.MarshalIndent(wc, "  ", "  ")
	}
	if err != nil {
		return "", fmt.Errorf("marshal widget config: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, snippetCtx{Origin: origin, Config: string(raw)}); err != nil {
		return "", fmt.Errorf("render %s snippet: %w", format, err)
	}
	return buf.String(), nil
}
