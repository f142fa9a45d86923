package embed

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Export writes the config as indented JSON, the format of the dashboard's
// "download config" file.
func Export(w io.Writer, cfg Config) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode embed config: %w", err)
	}
	return nil
}

// Import reads a config previously written by Export and validates it.
func Import(r io.Reader) (Config, error) {
	var cfg Config
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode embed config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Filename returns the download name used for an exported config.
func Filename(cfg Config) string {
	name := strings.Join(strings.Fields(strings.ToLower(cfg.Name)), "-")
	if name == "" {
		name = "untitled"
	}
	return "tourflow-config-" + name + ".json"
}
