package sim

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nerrad567/nightwatch/internal/observatory"
)

// Camera is a simulated camera. An exposure becomes ready once its
// duration has elapsed and it has been polled more than ReadyAfter times.
type Camera struct {
	recorder

	readyAfter int
	neverReady bool
	polls      int
	exposing   bool
	readyAt    time.Time
	cooler     bool
	writeFiles bool
	saved      []string
}

var _ observatory.CameraController = (*Camera)(nil)

// NewCamera returns a camera whose frames are ready on the first poll.
// With writeFiles set, SaveImage creates an empty file at the path.
func NewCamera(writeFiles bool) *Camera {
	return &Camera{writeFiles: writeFiles}
}

// SetReadyAfter sets how many polls an exposure needs before it is ready.
func (c *Camera) SetReadyAfter(polls int) {
	c.mu.Lock()
	c.readyAfter = polls
	c.mu.Unlock()
}

// SetNeverReady makes every exposure hang.
func (c *Camera) SetNeverReady(v bool) {
	c.mu.Lock()
	c.neverReady = v
	c.mu.Unlock()
}

// Saved returns the paths passed to SaveImage.
func (c *Camera) Saved() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.saved...)
}

// CoolerEnabled reports the cooler state.
func (c *Camera) CoolerEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cooler
}

func (c *Camera) Expose(_ context.Context, seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("Expose", seconds); err != nil {
		return err
	}
	c.exposing = true
	c.polls = 0
	c.readyAt = time.Now().Add(time.Duration(seconds * float64(time.Second)))
	return nil
}

func (c *Camera) IsImageReady(_ context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("IsImageReady"); err != nil {
		return false, err
	}
	if !c.exposing || c.neverReady {
		return false, nil
	}
	c.polls++
	return c.polls > c.readyAfter && !time.Now().Before(c.readyAt), nil
}

func (c *Camera) SaveImage(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("SaveImage"); err != nil {
		return err
	}
	if c.writeFiles {
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			return fmt.Errorf("%w: saving %s: %w", observatory.ErrHardwareUnavailable, path, err)
		}
	}
	c.exposing = false
	c.saved = append(c.saved, path)
	return nil
}

func (c *Camera) SetCoolerEnabled(_ context.Context, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("SetCoolerEnabled", enabled); err != nil {
		return err
	}
	c.cooler = enabled
	return nil
}
