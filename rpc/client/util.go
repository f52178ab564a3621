package client

import (
	"context"
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("client")
)

// offer hands a reply to a waiting call. Replies nobody waits for are dropped.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

// drain discards a stale reply left over from a call that gave up
func drain[T any](ch chan T) {
	select {
	case <-ch:
	default:
	}
}

// await blocks until a reply arrives or ctx is done
func await[T any](ctx context.Context, ch chan T) (T, error) {
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("no reply from server: %w", ctx.Err())
	}
}
