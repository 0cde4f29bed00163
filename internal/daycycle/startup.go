package daycycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/nightwatch/internal/observatory"
)

// startUp connects the mount, enables both axes, homes, opens the dome and
// slaves it to the mount. Any failure wraps ErrStartup.
func (c *Controller) startUp(ctx context.Context) error {
	mount := c.cfg.Session.Mount()
	dome := c.cfg.Session.Dome()
	if mount == nil || dome == nil {
		return fmt.Errorf("%w: %w", ErrStartup, observatory.ErrNoHandle)
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"connect mount", c.connectMount},
		{"enable axes", c.enableAxes},
		{"find home", c.findHome},
		{"open dome", c.openDome},
		{"slave dome", func(ctx context.Context) error { return dome.SetSlaveMode(ctx, true) }},
	}

	for _, step := range steps {
		c.logger.Info("startup step", "step", step.name)
		if err := step.fn(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %s: %w", ErrStartup, step.name, err)
		}
	}
	c.logger.Info("startup complete")
	return nil
}

func (c *Controller) connectMount(ctx context.Context) error {
	mount := c.cfg.Session.Mount()
	if err := mount.Connect(ctx); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadyTimeout)
	defer cancel()
	return c.pollUntil(waitCtx, "mount connected", mount.IsConnected)
}

func (c *Controller) enableAxes(ctx context.Context) error {
	mount := c.cfg.Session.Mount()
	for _, axis := range observatory.Axes {
		if err := mount.EnableAxis(ctx, axis); err != nil {
			return fmt.Errorf("axis %d: %w", axis, err)
		}
	}
	return nil
}

func (c *Controller) findHome(ctx context.Context) error {
	homeCtx, cancel := context.WithTimeout(ctx, c.cfg.HomeTimeout)
	defer cancel()
	return c.cfg.Session.Mount().FindHome(homeCtx)
}

// openDome opens the shutter, retrying up to DomeOpenAttempts times. The
// dome-open flag is set as soon as an open command has been sent, so the
// shutdown sequence checks the shutter even if verification then fails.
func (c *Controller) openDome(ctx context.Context) error {
	dome := c.cfg.Session.Dome()
	var lastErr error

	for attempt := 1; attempt <= c.cfg.DomeOpenAttempts; attempt++ {
		open, err := dome.IsShutterOpen(ctx)
		if err == nil && open {
			c.cfg.Session.SetDomeOpen(true)
			c.logger.Info("shutter already open", "attempt", attempt)
			return nil
		}

		lastErr = c.tryOpenShutter(ctx)
		if lastErr == nil {
			c.logger.Info("shutter opened", "attempt", attempt)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("shutter open attempt failed",
			"attempt", attempt,
			"max_attempts", c.cfg.DomeOpenAttempts,
			"error", lastErr,
		)
	}
	return fmt.Errorf("shutter not open after %d attempts: %w", c.cfg.DomeOpenAttempts, lastErr)
}

func (c *Controller) tryOpenShutter(ctx context.Context) error {
	dome := c.cfg.Session.Dome()

	idleCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadyTimeout)
	defer cancel()
	if err := c.pollUntil(idleCtx, "dome idle", func(ctx context.Context) (bool, error) {
		busy, err := dome.IsBusy(ctx)
		return !busy, err
	}); err != nil {
		return err
	}

	online, err := dome.IsOnline(ctx)
	if err != nil {
		return err
	}
	if !online {
		return errors.New("dome controller offline")
	}

	if err := dome.OpenShutter(ctx); err != nil {
		return err
	}
	c.cfg.Session.SetDomeOpen(true)

	if err := sleep(ctx, c.cfg.DomeSettle); err != nil {
		return err
	}
	open, err := dome.IsShutterOpen(ctx)
	if err != nil {
		return err
	}
	if !open {
		return errors.New("shutter still closed after open command")
	}
	return nil
}

// pollUntil calls cond every PollInterval until it reports true or ctx
// ends. Query errors are retried.
func (c *Controller) pollUntil(ctx context.Context, what string, cond func(context.Context) (bool, error)) error {
	var lastErr error
	for {
		ok, err := cond(ctx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
			c.logger.Debug("status query failed", "waiting_for", what, "error", err)
		}
		if err := sleep(ctx, c.cfg.PollInterval); err != nil {
			if lastErr != nil {
				return fmt.Errorf("waiting for %s: %w (last error: %w)", what, err, lastErr)
			}
			return fmt.Errorf("waiting for %s: %w", what, err)
		}
	}
}
