// Package listener refreshes the rule catalog when Postgres signals a change
// on the configured NOTIFY channel.
package listener

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"version-gate/internal/storage"
)

// debounceWindow is how long a burst of notifications (one per touched table
// and transaction) is gathered before the single refresh it triggers.
const debounceWindow = 200 * time.Millisecond

type Refresher interface {
	Refresh(ctx context.Context) error
}

// ListenAndRefresh blocks until ctx is done. A lost connection is
// re-acquired after a jittered backoff.
func ListenAndRefresh(ctx context.Context, pool *pgxpool.Pool, r Refresher, channel string, baseBackoff time.Duration) {
	for {
		err := listen(ctx, pool, r, channel)
		if ctx.Err() != nil {
			log.Info().Msg("listener stopped")
			return
		}
		backoff := jitter(baseBackoff)
		log.Error().Err(err).Dur("retry_in", backoff).Msg("listen connection lost")
		if !sleep(ctx, backoff) {
			log.Info().Msg("listener stopped")
			return
		}
	}
}

func listen(ctx context.Context, pool *pgxpool.Pool, r Refresher, channel string) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, storage.ListenStatement(channel)); err != nil {
		return err
	}
	log.Info().Str("channel", channel).Msg("listening for DB changes")

	// A change may have landed while we were disconnected.
	if err := r.Refresh(ctx); err != nil {
		log.Error().Err(err).Msg("refresh catalog error")
	}

	notes := make(chan *pgconn.Notification)
	waitErr := make(chan error, 1)
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		for {
			ntf, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				waitErr <- err
				return
			}
			select {
			case notes <- ntf:
			case <-ctx.Done():
				waitErr <- ctx.Err()
				return
			}
		}
	}()

	err = refreshLoop(ctx, notes, waitErr, r, debounceWindow)
	// the reader must be off the connection before it is released
	<-exited
	if ctx.Err() != nil {
		return ctx.Err()
	}
	// the connection is unusable; drop it rather than return it to the pool
	_ = conn.Conn().Close(context.Background())
	return err
}

// refreshLoop refreshes once per burst of notifications, window after the
// first one, so every commit inside the burst is visible to the reload.
// Notifications arriving during a refresh start a new burst.
func refreshLoop(ctx context.Context, notes <-chan *pgconn.Notification, waitErr <-chan error, r Refresher, window time.Duration) error {
	var d debouncer
	defer d.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-waitErr:
			return err
		case ntf := <-notes:
			log.Debug().Str("channel", ntf.Channel).Str("table", ntf.Payload).Msg("db change")
			d.notify(window)
		case <-d.fire():
			d.done()
			log.Info().Msg("db change; refreshing catalog")
			if err := r.Refresh(ctx); err != nil {
				log.Error().Err(err).Msg("refresh catalog error")
			}
		}
	}
}

// debouncer is a trailing-edge timer: the first notification arms it and
// later ones are absorbed until it fires.
type debouncer struct {
	timer   *time.Timer
	pending bool
}

func (d *debouncer) notify(window time.Duration) {
	if d.pending {
		return
	}
	d.pending = true
	if d.timer == nil {
		d.timer = time.NewTimer(window)
		return
	}
	d.timer.Reset(window)
}

// fire returns nil (blocks forever in select) when nothing is pending.
func (d *debouncer) fire() <-chan time.Time {
	if !d.pending {
		return nil
	}
	return d.timer.C
}

func (d *debouncer) done() { d.pending = false }

func (d *debouncer) stop() {
	if d.timer != nil {
		d.timer.Stop()
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x-1.5x
	return time.Duration(float64(base) * factor)
}
