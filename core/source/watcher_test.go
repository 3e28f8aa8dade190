package source_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/cadence/core/signal"
	"github.com/dmitrymomot/cadence/core/source"
)

func eventToSignal(ev fsnotify.Event) signal.Signal {
	return signal.New("file.changed", map[string]any{
		"path": ev.Name,
		"op":   ev.Op.String(),
	}, signal.WithSource("watch"))
}

func TestNewWatchSource_Validation(t *testing.T) {
	t.Parallel()

	_, err := source.NewWatchSource(nil, eventToSignal)
	require.ErrorIs(t, err, source.ErrNoPaths)

	_, err = source.NewWatchSource([]string{t.TempDir()}, nil)
	require.ErrorIs(t, err, source.ErrNilMapper)
}

func TestWatchSource_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	src, err := source.NewWatchSource([]string{dir}, eventToSignal,
		source.WithWatchSourceName("config"))
	require.NoError(t, err)
	assert.Equal(t, "config", src.Name())

	rec := &emitRecorder{}
	require.ErrorIs(t, src.Start(ctx, nil), source.ErrNilEmit)

	require.NoError(t, src.Start(ctx, rec.emit))
	require.ErrorIs(t, src.Start(ctx, rec.emit), source.ErrSourceRunning)

	require.NoError(t, src.Stop())
	require.NoError(t, src.Stop(), "stop is idempotent")
}

func TestWatchSource_MissingPathFailsStart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	src, err := source.NewWatchSource([]string{"/nonexistent/definitely/missing"}, eventToSignal)
	require.NoError(t, err)

	rec := &emitRecorder{}
	require.Error(t, src.Start(ctx, rec.emit))
}

func TestWatchSource_EmitsFileEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	src, err := source.NewWatchSource([]string{dir}, eventToSignal)
	require.NoError(t, err)
	assert.Equal(t, "watch", src.Name())

	rec := &emitRecorder{}
	require.NoError(t, src.Start(ctx, rec.emit))
	defer src.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("a: 1"), 0o644))

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) >= 1
	}, 3*time.Second, 20*time.Millisecond)

	sig := rec.snapshot()[0]
	assert.Equal(t, "file.changed", sig.Type)
	assert.Equal(t, "watch", sig.Source)

	payload, ok := sig.Payload.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, payload["path"], "config.yaml")
}
