package listener

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRefresher struct {
	mu    sync.Mutex
	times []time.Time
}

func (r *recordingRefresher) Refresh(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.times = append(r.times, time.Now())
	return nil
}

func (r *recordingRefresher) Times() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.times...)
}

func note(table string) *pgconn.Notification {
	return &pgconn.Notification{Channel: "version_rules_changed", Payload: table}
}

func startLoop(t *testing.T, r Refresher, window time.Duration) (chan<- *pgconn.Notification, chan<- error, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	notes := make(chan *pgconn.Notification)
	waitErr := make(chan error, 1)
	done := make(chan error, 1)
	go func() { done <- refreshLoop(ctx, notes, waitErr, r, window) }()
	return notes, waitErr, done
}

func TestRefreshLoop_BurstRefreshesAfterLastNotification(t *testing.T) {
	r := &recordingRefresher{}
	notes, _, _ := startLoop(t, r, 200*time.Millisecond)

	notes <- note("version_rules")
	time.Sleep(50 * time.Millisecond)
	notes <- note("maintenance_modes")
	second := time.Now()

	require.Eventually(t, func() bool { return len(r.Times()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, r.Times()[0].After(second), "refresh must see the second commit")

	time.Sleep(300 * time.Millisecond)
	assert.Len(t, r.Times(), 1, "one refresh per burst")
}

func TestRefreshLoop_NewBurstAfterRefresh(t *testing.T) {
	r := &recordingRefresher{}
	notes, _, _ := startLoop(t, r, 20*time.Millisecond)

	notes <- note("version_rules")
	require.Eventually(t, func() bool { return len(r.Times()) == 1 }, time.Second, 2*time.Millisecond)

	notes <- note("app_platforms")
	require.Eventually(t, func() bool { return len(r.Times()) == 2 }, time.Second, 2*time.Millisecond)
}

func TestRefreshLoop_ReturnsWaitError(t *testing.T) {
	r := &recordingRefresher{}
	_, waitErr, done := startLoop(t, r, time.Second)

	boom := errors.New("conn reset")
	waitErr <- boom
	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("loop did not return")
	}
	assert.Empty(t, r.Times())
}

func TestJitter(t *testing.T) {
	for range 100 {
		d := jitter(2 * time.Second)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 3*time.Second)
	}
	d := jitter(0)
	assert.GreaterOrEqual(t, d, 500*time.Millisecond)
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, time.Hour))
	assert.True(t, sleep(context.Background(), time.Millisecond))
}
