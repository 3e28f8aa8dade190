package clock

import "time"

// Config holds environment-driven interval clock settings.
//
// Example:
//
//	var cfg clock.Config
//	config.MustLoad(&cfg)
//	clk, err := clock.NewIntervalClockFromConfig(cfg)
type Config struct {
	Interval        time.Duration `env:"CLOCK_INTERVAL" envDefault:"1s"`
	Backpressure    string        `env:"CLOCK_BACKPRESSURE" envDefault:"block"`
	MaxCatchUpTicks int           `env:"CLOCK_MAX_CATCHUP_TICKS" envDefault:"3"`
}

// NewIntervalClockFromConfig creates an IntervalClock from configuration.
// Additional options override config values.
func NewIntervalClockFromConfig(cfg Config, opts ...IntervalOption) (*IntervalClock, error) {
	allOpts := append([]IntervalOption{
		WithBackpressure(BackpressurePolicy(cfg.Backpressure)),
		WithMaxCatchUpTicks(cfg.MaxCatchUpTicks),
	}, opts...)

	return NewIntervalClock(cfg.Interval, allOpts...)
}
