package sched

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"pet-subscription-sync/internal/domain"
	ucport "pet-subscription-sync/internal/domain/ports/usecase"
)

const monitorLockKey = "lock:corruption_monitor"

// Locker leases the scan to one replica per interval.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// CorruptionMonitor runs the subscriber audit on a cron schedule.
type CorruptionMonitor struct {
	auditor    ucport.Auditor
	locker     Locker
	interval   time.Duration
	runOnStart bool
	log        *zerolog.Logger
}

// NewCorruptionMonitor schedules auditor every interval. locker may be nil
// when a single replica runs.
func NewCorruptionMonitor(auditor ucport.Auditor, locker Locker, interval time.Duration, runOnStart bool, logger *zerolog.Logger) *CorruptionMonitor {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	l := logger.With().Str("component", "CorruptionMonitor").Logger()
	return &CorruptionMonitor{
		auditor:    auditor,
		locker:     locker,
		interval:   interval,
		runOnStart: runOnStart,
		log:        &l,
	}
}

// Run blocks until ctx is canceled and waits for an in-flight scan to finish.
func (m *CorruptionMonitor) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{m.log})))
	if _, err := c.AddFunc("@every "+m.interval.String(), func() { m.tick(ctx) }); err != nil {
		return err
	}
	m.log.Info().Dur("interval", m.interval).Msg("corruption monitor started")
	if m.runOnStart {
		m.tick(ctx)
	}
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	m.log.Info().Msg("corruption monitor stopped")
	return nil
}

func (m *CorruptionMonitor) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	runCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	token, err := m.lease(runCtx)
	if errors.Is(err, domain.ErrLockHeld) {
		m.log.Debug().Msg("audit leased by another replica, skipping")
		return
	}

	report, err := m.auditor.Scan(runCtx)
	if err != nil {
		m.log.Error().Err(err).Msg("subscriber audit failed")
		m.release(token)
		return
	}
	m.log.Debug().Int("violations", len(report.Violations)).Msg("subscriber audit finished")
}

// lease takes the cross-replica lock. A broken lock store does not stop the scan.
func (m *CorruptionMonitor) lease(ctx context.Context) (string, error) {
	if m.locker == nil {
		return "", nil
	}
	token, err := m.locker.TryLock(ctx, monitorLockKey, m.interval*9/10)
	if err != nil && !errors.Is(err, domain.ErrLockHeld) {
		m.log.Warn().Err(err).Msg("audit lock unavailable, scanning anyway")
		return "", nil
	}
	return token, err
}

// release frees the lease early so another replica can retry a failed scan.
func (m *CorruptionMonitor) release(token string) {
	if m.locker == nil || token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.locker.Unlock(ctx, monitorLockKey, token); err != nil {
		m.log.Warn().Err(err).Msg("audit lock release failed")
	}
}

type cronLogger struct{ log *zerolog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
