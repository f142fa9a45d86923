package config

import (
	"strings"
	"time"

	"github.com/pitabwire/frame/config"

	"github.com/tourflow/tourflow/pkg/analytics"
	"github.com/tourflow/tourflow/pkg/playback"
	"github.com/tourflow/tourflow/pkg/urlvalidation"
)

// TourflowConfig holds configuration for the tourflow service.
type TourflowConfig struct {
	config.ConfigurationDefault

	// Tours
	TourDir   string `envDefault:"./tours" env:"TOUR_DIR"`
	TourWatch bool   `envDefault:"true"    env:"TOUR_WATCH"`

	// Analytics relay
	AnalyticsSinkURL          string `envDefault:""      env:"ANALYTICS_SINK_URL"`
	AnalyticsSinkSecret       string `envDefault:""      env:"ANALYTICS_SINK_SECRET"`
	AnalyticsMaxAttempts      int    `envDefault:"3"     env:"ANALYTICS_MAX_ATTEMPTS"`
	AnalyticsBackoffInitialMs int    `envDefault:"200"   env:"ANALYTICS_BACKOFF_INITIAL_MS"`
	AnalyticsBackoffMaxMs     int    `envDefault:"2000"  env:"ANALYTICS_BACKOFF_MAX_MS"`
	AnalyticsTimeoutSec       int    `envDefault:"10"    env:"ANALYTICS_TIMEOUT_SEC"`
	CBFailThreshold           int    `envDefault:"5"     env:"CB_FAILURE_THRESHOLD"`
	CBResetTimeoutSec         int    `envDefault:"30"    env:"CB_RESET_TIMEOUT_SEC"`
	SinkAllowPrivateIPs       bool   `envDefault:"false" env:"SINK_ALLOW_PRIVATE_IPS"`

	// Playback
	ResolveTimeoutMs int    `envDefault:"5000"      env:"RESOLVE_TIMEOUT_MS"`
	IdleTimeoutSec   int    `envDefault:"0"         env:"IDLE_TIMEOUT_SEC"`
	TimeoutPolicy    string `envDefault:"skip_step" env:"RESOLVE_TIMEOUT_POLICY"`

	// Dashboard
	PreviewTTLMin  int    `envDefault:"30" env:"PREVIEW_TTL_MIN"`
	EmbedOrigin    string `envDefault:""   env:"EMBED_ORIGIN"`
	AllowedOrigins string `envDefault:""   env:"CORS_ALLOWED_ORIGINS"`
}

// EmitterConfig builds the analytics emitter settings.
func (c *TourflowConfig) EmitterConfig() analytics.EmitterConfig {
	return analytics.EmitterConfig{
		MaxAttempts:    c.AnalyticsMaxAttempts,
		BackoffInitial: time.Duration(c.AnalyticsBackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(c.AnalyticsBackoffMaxMs) * time.Millisecond,
	}
}

// SinkConfig builds the HTTP analytics sink settings.
func (c *TourflowConfig) SinkConfig() analytics.HTTPSinkConfig {
	return analytics.HTTPSinkConfig{
		URL:     c.AnalyticsSinkURL,
		Secret:  c.AnalyticsSinkSecret,
		Timeout: time.Duration(c.AnalyticsTimeoutSec) * time.Second,
		Breaker: analytics.BreakerConfig{
			FailureThreshold: c.CBFailThreshold,
			ResetTimeout:     time.Duration(c.CBResetTimeoutSec) * time.Second,
		},
	}
}

// SinkValidation returns the endpoint checks applied to ANALYTICS_SINK_URL.
func (c *TourflowConfig) SinkValidation() []urlvalidation.Option {
	if c.SinkAllowPrivateIPs {
		return []urlvalidation.Option{urlvalidation.AllowPrivateIPs()}
	}
	return nil
}

// Policy maps RESOLVE_TIMEOUT_POLICY to a playback policy. Unknown values
// fall back to skipping the step.
func (c *TourflowConfig) Policy() playback.TimeoutPolicy {
	if c.TimeoutPolicy == playback.PolicyEndSession.String() {
		return playback.PolicyEndSession
	}
	return playback.PolicySkipStep
}

// ResolveTimeout is the per-step target resolution budget.
func (c *TourflowConfig) ResolveTimeout() time.Duration {
	return time.Duration(c.ResolveTimeoutMs) * time.Millisecond
}

// IdleTimeout closes inactive sessions. Zero disables it.
func (c *TourflowConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSec) * time.Second
}

// PreviewTTL bounds the lifetime of dashboard previews.
func (c *TourflowConfig) PreviewTTL() time.Duration {
	return time.Duration(c.PreviewTTLMin) * time.Minute
}

// Origins splits CORS_ALLOWED_ORIGINS.
func (c *TourflowConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
