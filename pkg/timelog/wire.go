package timelog

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/timelog/pkg/browser"
	"github.com/entrhq/timelog/pkg/config"
	"github.com/entrhq/timelog/pkg/session"
	"github.com/entrhq/timelog/pkg/submit"
)

// NewStore opens the session store selected by cfg.
func NewStore(ctx context.Context, cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Backend {
	case config.SessionBackendRedis:
		store, err := session.NewRedisStore(ctx, session.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.SessionBackendFile, "":
		store, err := session.NewFileStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// New builds the production service for cfg: the configured session
// store, a playwright driver and an HTTP submitter. The returned cleanup
// releases the driver and the store.
func New(ctx context.Context, cfg *config.Config) (*Service, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, nil, err
	}

	store, err := NewStore(ctx, cfg.Session)
	if err != nil {
		return nil, nil, err
	}
	cache := session.NewCache(store, cfg.Session.Key)

	driver := browser.NewPlaywrightDriver(cfg.Browser.Install)
	manager, err := browser.NewManager(driver, cache, cfg)
	if err != nil {
		if closer, ok := store.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
		return nil, nil, err
	}

	client := submit.NewClient(nil, cfg.Target.URL(cfg.Target.SubmitPath), cfg.Submission.Timeout)

	cleanup := func() error {
		var errs []error
		errs = append(errs, driver.Close())
		if closer, ok := store.(interface{ Close() error }); ok {
			errs = append(errs, closer.Close())
		}
		return errors.Join(errs...)
	}

	return NewService(ManagerBrowser(manager), client, cache, cfg), cleanup, nil
}
