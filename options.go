package zwave

import (
	"context"
	"time"
)

// Option configures a Driver at construction time.
type Option func(*Config)

// Config holds every knob a Driver construction can be given. Most
// fields have sane defaults via defaultConfig; callers only need an
// Option for what they want to change.
type Config struct {
	ctx    context.Context
	cancel context.CancelFunc

	Logger Logger
	Stats  *DriverStats

	Cache ConfigCache

	ValueStore ValueStore

	PollMode     PollDispatchMode
	PollInterval time.Duration
	PollFast     time.Duration
	PollSteady   time.Duration

	AckTimeout     time.Duration
	OverallTimeout time.Duration
	MaxAttempts    int

	ReconnectFastInterval   time.Duration
	ReconnectSteadyInterval time.Duration

	RequestSUCNodeID bool

	NotificationBuffer int
}

// defaultConfig returns the baseline configuration every Driver starts
// from before Options are applied.
func defaultConfig() *Config {
	ctx, cancel := context.WithCancel(context.Background())
	return &Config{
		ctx:    ctx,
		cancel: cancel,

		Logger: NewNopLogger(),
		Stats:  &DriverStats{},

		ValueStore: NewMemValueStore(),

		PollMode:     DispatchIntervalBetweenPolls,
		PollInterval: 1 * time.Second,
		PollFast:     500 * time.Millisecond,
		PollSteady:   5 * time.Second,

		AckTimeout:     ackTimeout,
		OverallTimeout: overallTimeout,
		MaxAttempts:    maxAttempts,

		ReconnectFastInterval:   5 * time.Second,
		ReconnectSteadyInterval: 30 * time.Second,

		RequestSUCNodeID: true,

		NotificationBuffer: 64,
	}
}

// applyConfig builds a Config from defaults plus opts, in order.
func applyConfig(opts []Option) *Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithContext supplies the base context a Driver derives its lifetime
// from; cancelling it is equivalent to calling Driver.Close.
func WithContext(ctx context.Context) Option {
	return func(c *Config) {
		c.cancel()
		c.ctx, c.cancel = context.WithCancel(ctx)
	}
}

// WithLogger installs a structured logger.
func WithLogger(l Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithStats installs a caller-owned DriverStats instead of a fresh one,
// e.g. so multiple drivers can share one Prometheus exporter registry.
func WithStats(s *DriverStats) Option {
	return func(c *Config) { c.Stats = s }
}

// WithConfigCache installs a config-cache backend for persisting learned
// node interrogation results across restarts.
func WithConfigCache(cache ConfigCache) Option {
	return func(c *Config) { c.Cache = cache }
}

// WithValueStore installs a ValueStore other than the default in-memory
// one.
func WithValueStore(vs ValueStore) Option {
	return func(c *Config) { c.ValueStore = vs }
}

// WithPollDispatch selects the poll engine's dispatch mode and interval.
func WithPollDispatch(mode PollDispatchMode, interval time.Duration) Option {
	return func(c *Config) {
		c.PollMode = mode
		c.PollInterval = interval
	}
}

// WithPollBackoff sets the fast/steady bounds for the poll engine's
// adaptive pacer.
func WithPollBackoff(fast, steady time.Duration) Option {
	return func(c *Config) {
		c.PollFast = fast
		c.PollSteady = steady
	}
}

// WithRetryTimeouts overrides the ACK and overall timeout budgets, and
// the max attempt count, the expected-reply state machine uses.
func WithRetryTimeouts(ack, overall time.Duration, maxAttempts int) Option {
	return func(c *Config) {
		c.AckTimeout = ack
		c.OverallTimeout = overall
		c.MaxAttempts = maxAttempts
	}
}

// WithReconnectBackoff overrides the fast/steady retry intervals used
// while the driver's init handshake is still failing.
func WithReconnectBackoff(fast, steady time.Duration) Option {
	return func(c *Config) {
		c.ReconnectFastInterval = fast
		c.ReconnectSteadyInterval = steady
	}
}

// WithSUCNodeIDRequest toggles whether the init handshake requests the
// SUC node id (some controllers without SUC support reject it).
func WithSUCNodeIDRequest(enabled bool) Option {
	return func(c *Config) { c.RequestSUCNodeID = enabled }
}

// WithNotificationBuffer records n in Config.NotificationBuffer. The
// notification bus does not read this value; the bus has no fixed cap.
func WithNotificationBuffer(n int) Option {
	return func(c *Config) { c.NotificationBuffer = n }
}
