package driver

import (
	"context"
	"fmt"
	"time"
)

// WaitForReady polls the driver status until it reports ready, the timeout
// elapses, or ctx is done.
func (c *Client) WaitForReady(ctx context.Context, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		status, err := c.Status(ctx)
		switch {
		case err != nil:
			lastErr = err
		case status.Crashed:
			return fmt.Errorf("driver %s crashed while starting: %s", c.address, status.Message)
		case status.Ready:
			c.logger.Debug("driver ready", "address", c.address)
			return nil
		default:
			lastErr = fmt.Errorf("not ready: %s", status.Message)
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("driver %s not ready after %v: %w", c.address, timeout, lastErr)
			}
			return fmt.Errorf("driver %s not ready after %v", c.address, timeout)
		case <-ticker.C:
		}
	}
}
