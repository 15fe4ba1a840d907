package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/peopledeskhq/peopledesk/internal/models"
	"github.com/peopledeskhq/peopledesk/internal/security"
	"github.com/peopledeskhq/peopledesk/pkg/logger"
)

const defaultSchedule = "@hourly"

// Cleaner coordinates background maintenance tasks: purging expired sessions,
// pruning stale failed-login rows, and clearing expired reset tokens.
type Cleaner struct {
	db       *gorm.DB
	security *security.Service
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	enabled  bool
	schedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the maintenance sweep.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil dependency
// results in the corresponding cleanup being skipped.
func NewCleaner(db *gorm.DB, securitySvc *security.Service, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:       db,
		security: securitySvc,
		now:      time.Now,
		schedule: defaultSchedule,
		log:      logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.security != nil || cleaner.db != nil

	return cleaner
}

// Start registers the maintenance sweep with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("maintenance sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Used by the
// scheduled job and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.security != nil {
		if removed, err := c.security.CleanupOldRecords(ctx); err != nil {
			errs = multierr.Append(errs, err)
		} else if removed > 0 {
			c.log.Info("purged security records", zap.Int64("rows", removed))
		}
	}

	if c.db != nil {
		if cleared, err := ClearExpiredResetTokens(ctx, c.db, c.now()); err != nil {
			errs = multierr.Append(errs, err)
		} else if cleared > 0 {
			c.log.Info("cleared expired reset tokens", zap.Int64("rows", cleared))
		}
	}

	return errs
}

// ClearExpiredResetTokens nulls out password-reset tokens whose expiry has
// passed, so stale tokens cannot linger on user rows indefinitely.
func ClearExpiredResetTokens(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("clear reset tokens: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).
		Model(&models.User{}).
		Where("reset_token IS NOT NULL AND reset_token_expiry < ?", now).
		Updates(map[string]any{
			"reset_token":        nil,
			"reset_token_expiry": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("clear reset tokens: %w", result.Error)
	}

	return result.RowsAffected, nil
}
