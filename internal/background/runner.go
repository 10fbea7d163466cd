package background

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tenant-onboarding-service/internal/config"
	"tenant-onboarding-service/internal/metrics"
)

// SessionPurger removes expired onboarding sessions
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// SessionCounter reports how many sessions the store holds
type SessionCounter func(ctx context.Context) (int, error)

// LimiterCleaner drops idle rate limiter entries
type LimiterCleaner interface {
	Cleanup() int
}

// Runner manages background jobs for session expiry and housekeeping
type Runner struct {
	purger        SessionPurger
	counter       SessionCounter
	limiter       LimiterCleaner
	metrics       *metrics.Metrics
	config        config.WizardConfig
	logger        *logrus.Logger
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	cleanupTicker *time.Ticker
}

// NewRunner creates a new background runner
func NewRunner(purger SessionPurger, cfg config.WizardConfig, logger *logrus.Logger) *Runner {
	return &Runner{
		purger: purger,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// SetSessionCounter enables the active sessions gauge
func (r *Runner) SetSessionCounter(counter SessionCounter, m *metrics.Metrics) {
	r.counter = counter
	r.metrics = m
}

// SetLimiter sets the rate limiter cleaned on every cleanup tick
func (r *Runner) SetLimiter(limiter LimiterCleaner) {
	r.limiter = limiter
}

// Start begins the background job processing
func (r *Runner) Start() {
	interval := r.config.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	r.cleanupTicker = time.NewTicker(interval)
	r.logger.WithField("interval", interval.String()).Info("Session cleanup job scheduled")

	r.wg.Add(1)
	go r.runCleanupJob()
}

// Stop gracefully stops all background jobs
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.logger.Info("Stopping background job runner...")
		close(r.stopCh)
		if r.cleanupTicker != nil {
			r.cleanupTicker.Stop()
		}
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Background job runner stopped gracefully")
	case <-time.After(30 * time.Second):
		r.logger.Warn("Background job runner stop timeout - forcing shutdown")
	}
}

func (r *Runner) runCleanupJob() {
	defer r.wg.Done()

	r.RunOnce(context.Background())

	for {
		select {
		case <-r.stopCh:
			return
		case <-r.cleanupTicker.C:
			r.RunOnce(context.Background())
		}
	}
}

// RunOnce purges expired sessions, refreshes the gauge and trims the
// rate limiter
func (r *Runner) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	purged, err := r.purger.PurgeExpired(ctx)
	if err != nil {
		r.logger.WithError(err).Error("Session cleanup job failed")
	} else if purged > 0 {
		r.logger.WithField("purged", purged).Info("Expired onboarding sessions purged")
	}

	if r.counter != nil && r.metrics != nil {
		if n, err := r.counter(ctx); err != nil {
			r.logger.WithError(err).Warn("Failed to count active sessions")
		} else {
			r.metrics.ActiveSessions.Set(float64(n))
		}
	}

	if r.limiter != nil {
		if dropped := r.limiter.Cleanup(); dropped > 0 {
			r.logger.WithField("dropped", dropped).Debug("Idle rate limiters dropped")
		}
	}
}
