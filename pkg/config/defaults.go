package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/signalcontrol/internal/types"
)

const (
	DefaultFeedTimeout     = "3s"
	DefaultFallbackMin     = 5
	DefaultFallbackMax     = 40
	DefaultBaseSeconds     = 15
	DefaultBudgetSeconds   = 30
	DefaultRefreshInterval = "3s"
	DefaultListenAddr      = "0.0.0.0"
	DefaultRESTPort        = 8080
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// ApplyDefaults fills in every unset field
func (c *ConfigData) ApplyDefaults() {
	if c.Feed.Timeout == "" {
		c.Feed.Timeout = DefaultFeedTimeout
	}
	if c.Feed.FallbackMin == 0 && c.Feed.FallbackMax == 0 {
		c.Feed.FallbackMin = DefaultFallbackMin
		c.Feed.FallbackMax = DefaultFallbackMax
	}
	if c.Timing.BaseSeconds == 0 && c.Timing.BudgetSeconds == 0 {
		c.Timing.BaseSeconds = DefaultBaseSeconds
		c.Timing.BudgetSeconds = DefaultBudgetSeconds
	}
	if c.Controller.RefreshInterval == "" {
		c.Controller.RefreshInterval = DefaultRefreshInterval
	}
	if c.Controller.Mode == "" {
		c.Controller.Mode = string(types.ModeAI)
	}
	if c.Controller.ManualApproach == "" {
		c.Controller.ManualApproach = string(types.North)
	}
	if c.RESTServer.ListenAddr == "" {
		c.RESTServer.ListenAddr = DefaultListenAddr
	}
	if c.RESTServer.Port == 0 {
		c.RESTServer.Port = DefaultRESTPort
	}
}

// Validate checks the configuration for values the controller cannot run with
func (c *ConfigData) Validate() error {
	if _, err := c.Feed.TimeoutDuration(); err != nil {
		return err
	}
	if c.Feed.FallbackMin < 1 {
		return fmt.Errorf("%w: feed.fallback_min must be at least 1, got %d", ErrInvalidConfig, c.Feed.FallbackMin)
	}
	if c.Feed.FallbackMax < c.Feed.FallbackMin {
		return fmt.Errorf("%w: feed.fallback_max (%d) is below feed.fallback_min (%d)", ErrInvalidConfig, c.Feed.FallbackMax, c.Feed.FallbackMin)
	}
	if c.Timing.BaseSeconds < 0 || c.Timing.BudgetSeconds < 0 {
		return fmt.Errorf("%w: timing.base_seconds and timing.budget_seconds must not be negative", ErrInvalidConfig)
	}
	if c.Timing.BaseSeconds == 0 {
		return fmt.Errorf("%w: timing.base_seconds must be positive", ErrInvalidConfig)
	}
	if _, err := c.Controller.Interval(); err != nil {
		return err
	}
	if !types.Mode(c.Controller.Mode).Valid() {
		return fmt.Errorf("%w: controller.mode %q is not one of ai, manual", ErrInvalidConfig, c.Controller.Mode)
	}
	if !types.Approach(c.Controller.ManualApproach).Valid() {
		return fmt.Errorf("%w: controller.manual_approach %q is not one of North, South, East, West", ErrInvalidConfig, c.Controller.ManualApproach)
	}
	if c.RESTServer.Port < 1 || c.RESTServer.Port > 65535 {
		return fmt.Errorf("%w: rest.port %d out of range", ErrInvalidConfig, c.RESTServer.Port)
	}
	if (c.RESTServer.Cert == "") != (c.RESTServer.Key == "") {
		return fmt.Errorf("%w: rest.cert and rest.key must be set together", ErrInvalidConfig)
	}
	return nil
}

// TimeoutDuration parses the feed timeout
func (f FeedData) TimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(f.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: feed.timeout %q: %v", ErrInvalidConfig, f.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: feed.timeout must be positive", ErrInvalidConfig)
	}
	return d, nil
}

// Interval parses the refresh interval
func (c ControllerData) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil {
		return 0, fmt.Errorf("%w: controller.refresh_interval %q: %v", ErrInvalidConfig, c.RefreshInterval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: controller.refresh_interval must be positive", ErrInvalidConfig)
	}
	return d, nil
}

// Finalize applies defaults and validates, for use by providers after loading
func (c *ConfigData) Finalize() error {
	c.ApplyDefaults()
	return c.Validate()
}
