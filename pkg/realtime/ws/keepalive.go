package ws

import (
	"context"
	"time"
)

// StartPing sends a ping frame every interval until ctx ends or a write fails.
// onFailure, when set, runs once after a failed write. The returned function stops the loop.
func (c *Conn) StartPing(ctx context.Context, interval time.Duration, onFailure func(error)) context.CancelFunc {
	if interval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.WriteFrame(OpPing, nil); err != nil {
					if onFailure != nil {
						onFailure(err)
					}
					return
				}
			}
		}
	}()

	return cancel
}
