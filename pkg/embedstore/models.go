// Package embedstore persists embed configurations.
package embedstore

import (
	"encoding/json"
	"fmt"

	"github.com/pitabwire/frame/data"

	"github.com/tourflow/tourflow/pkg/embed"
)

// Record is a saved embed configuration.
type Record struct {
	data.BaseModel

	TourID   string     `gorm:"type:varchar(255);not null;index:idx_ec_tour" json:"tour_id"`
	Name     string     `gorm:"type:varchar(255);not null"                   json:"name"`
	Config   ConfigJSON `gorm:"type:jsonb;not null"                          json:"config"`
	IsActive bool       `gorm:"default:true"                                 json:"is_active"`
}

func (Record) TableName() string { return "embed_configs" }

// Embed returns the stored configuration with its identity fields filled
// from the record.
func (r *Record) Embed() embed.Config {
	cfg := embed.Config(r.Config)
	cfg.ID = r.ID
	cfg.Name = r.Name
	cfg.TourID = r.TourID
	return cfg
}

// NewRecord builds a record from a validated configuration.
func NewRecord(cfg embed.Config) *Record {
	return &Record{
		TourID:   cfg.TourID,
		Name:     cfg.Name,
		Config:   ConfigJSON(cfg),
		IsActive: true,
	}
}

// ConfigJSON is a custom GORM type for JSONB storage of an embed config.
type ConfigJSON embed.Config

func (c ConfigJSON) Value() (any, error) {
	return json.Marshal(embed.Config(c))
}

func (c *ConfigJSON) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*c = ConfigJSON{}
		return nil
	default:
		return fmt.Errorf("embed config: unsupported column type %T", src)
	}
	var cfg embed.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}
	*c = ConfigJSON(cfg)
	return nil
}
