package gpu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
)

// Readback errors.
var (
	// ErrMapFailed is returned when the staging buffer cannot be mapped.
	ErrMapFailed = errors.New("gpu: staging buffer mapping failed")

	// ErrMapTimeout is returned when the map callback has not fired before
	// the context deadline.
	ErrMapTimeout = errors.New("gpu: staging buffer mapping timed out")
)

// pollInterval is the sleep between non-blocking polls while a deadline
// is pending.
const pollInterval = 200 * time.Microsecond

// Read maps staging for reading, waits for the map callback, copies the
// contents into a new slice and unmaps.
//
// Without a deadline on ctx, Read drives blocking device polls until the
// callback fires. With a deadline it polls without blocking so the
// deadline can be honored; expiry yields ErrMapTimeout.
func Read(ctx context.Context, dev Device, staging Buffer) ([]byte, error) {
	if err := requireUsage(staging, gputypes.BufferUsageMapRead, "readback"); err != nil {
		return nil, err
	}
	size := staging.Size()

	// Buffered so the callback never blocks the polling goroutine.
	done := make(chan BufferMapAsyncStatus, 1)
	err := staging.MapAsync(gputypes.MapModeRead, 0, size, func(s BufferMapAsyncStatus) {
		done <- s
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMapFailed, err)
	}

	status, err := awaitMap(ctx, dev, done)
	if err != nil {
		// Cancel the pending map; the buffer is released by the caller.
		_ = staging.Unmap()
		return nil, err
	}
	if status != BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("%w: status %s", ErrMapFailed, status)
	}

	view, err := staging.MappedRange(0, size)
	if err != nil {
		_ = staging.Unmap()
		return nil, fmt.Errorf("%w: %w", ErrMapFailed, err)
	}
	out := make([]byte, len(view))
	copy(out, view)
	if err := staging.Unmap(); err != nil {
		return nil, fmt.Errorf("unmap staging: %w", err)
	}
	return out, nil
}

func awaitMap(ctx context.Context, dev Device, done <-chan BufferMapAsyncStatus) (BufferMapAsyncStatus, error) {
	_, hasDeadline := ctx.Deadline()
	var timer *time.Timer
	for {
		select {
		case s := <-done:
			return s, nil
		default:
		}
		if err := ctx.Err(); err != nil {
			return 0, ctxErr(err)
		}

		if !hasDeadline {
			dev.Poll(true)
			continue
		}
		dev.Poll(false)
		if timer == nil {
			timer = time.NewTimer(pollInterval)
			defer timer.Stop()
		} else {
			timer.Reset(pollInterval)
		}
		select {
		case s := <-done:
			return s, nil
		case <-ctx.Done():
			return 0, ctxErr(ctx.Err())
		case <-timer.C:
		}
	}
}

func ctxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrMapTimeout, err)
	}
	return fmt.Errorf("readback: %w", err)
}
