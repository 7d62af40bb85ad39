package doctemplar_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nikitaxru/doctemplar"
)

func TestWatchFiresOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "case.json")
	other := filepath.Join(dir, "unrelated.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- doctemplar.Watch(ctx, []string{path}, 20*time.Millisecond, nil, func() error {
			fired <- struct{}{}
			return nil
		})
	}()

	// наблюдатель стартует асинхронно — пишем, пока не получим событие
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
loop:
	for {
		select {
		case <-fired:
			break loop
		case <-tick.C:
			require.NoError(t, os.WriteFile(other, []byte(`{}`), 0o644))
			require.NoError(t, os.WriteFile(path, []byte(`{"client":{"name":"Chen"}}`), 0o644))
		case <-deadline:
			t.Fatal("onChange was not called")
		}
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
}

func TestWatchRunsOnChangeSerially(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tpl.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var active, peak, calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- doctemplar.Watch(ctx, []string{path}, 5*time.Millisecond, nil, func() error {
			n := active.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(100 * time.Millisecond)
			active.Add(-1)
			calls.Add(1)
			return nil
		})
	}()

	// частые записи, пока идёт долгая перерисовка
	deadline := time.Now().Add(5 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		require.NoError(t, os.WriteFile(path, []byte(`{"n":1}`), 0o644))
		time.Sleep(10 * time.Millisecond)
	}
	require.GreaterOrEqual(t, calls.Load(), int32(3))
	require.Equal(t, int32(1), peak.Load())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
}
