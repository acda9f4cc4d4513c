package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	DefaultPingInterval    = 3 * time.Second
	DefaultSweepInterval   = 10 * time.Second
	DefaultInactivityLimit = 30 * time.Second
)

type Pinger interface {
	PingAll()
}

type StaleSource interface {
	Stale(now time.Time, limit time.Duration) []string
}

type Evictor interface {
	Evict(connID string)
}

type LivenessOptions struct {
	PingInterval    time.Duration
	SweepInterval   time.Duration
	InactivityLimit time.Duration
}

// LivenessMonitor pings every connection on one schedule and evicts the ones
// that stopped answering on another.
type LivenessMonitor struct {
	pinger  Pinger
	stale   StaleSource
	evictor Evictor
	opts    LivenessOptions
	cron    *cron.Cron
	log     zerolog.Logger
	now     func() time.Time
}

func NewLivenessMonitor(p Pinger, s StaleSource, e Evictor, opts LivenessOptions, logger zerolog.Logger) *LivenessMonitor {
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.InactivityLimit <= 0 {
		opts.InactivityLimit = DefaultInactivityLimit
	}

	cl := cronLogger{log: logger}
	return &LivenessMonitor{
		pinger:  p,
		stale:   s,
		evictor: e,
		opts:    opts,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: logger,
		now: time.Now,
	}
}

func (m *LivenessMonitor) Start() error {
	if _, err := m.cron.AddFunc(every(m.opts.PingInterval), m.pinger.PingAll); err != nil {
		return fmt.Errorf("schedule ping: %w", err)
	}
	if _, err := m.cron.AddFunc(every(m.opts.SweepInterval), func() { m.Sweep(m.now()) }); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	m.cron.Start()
	m.log.Info().
		Dur("ping_interval", m.opts.PingInterval).
		Dur("sweep_interval", m.opts.SweepInterval).
		Dur("inactivity_limit", m.opts.InactivityLimit).
		Msg("liveness monitor started")
	return nil
}

// Stop halts scheduling. The returned context is done once running jobs
// finish.
func (m *LivenessMonitor) Stop() context.Context {
	return m.cron.Stop()
}

// Sweep evicts every connection inactive for longer than the limit at now and
// reports how many it evicted.
func (m *LivenessMonitor) Sweep(now time.Time) int {
	stale := m.stale.Stale(now, m.opts.InactivityLimit)
	for _, connID := range stale {
		m.evictor.Evict(connID)
	}
	if len(stale) > 0 {
		m.log.Info().Int("evicted", len(stale)).Msg("liveness sweep")
	}
	return len(stale)
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// cronLogger routes cron's own logging through zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
