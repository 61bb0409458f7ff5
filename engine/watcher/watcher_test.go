package watcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDeduplicates(t *testing.T) {
	q := NewQueue()
	q.Push(Event{Path: "/a.wgsl", Kind: KindShader})
	q.Push(Event{Path: "/b.yaml", Kind: KindChart})
	q.Push(Event{Path: "/a.wgsl", Kind: KindShader})
	q.Push(Event{Path: "/c.wgsl", Kind: KindShader})
	assert.Equal(t, 3, q.Len())

	assert.Equal(t, []Event{
		{Path: "/a.wgsl", Kind: KindShader},
		{Path: "/b.yaml", Kind: KindChart},
		{Path: "/c.wgsl", Kind: KindShader},
	}, q.Drain())
	assert.Nil(t, q.Drain())

	q.Push(Event{Path: "/a.wgsl", Kind: KindShader})
	assert.Len(t, q.Drain(), 1)
}

func TestQueueChartKindWins(t *testing.T) {
	q := NewQueue()
	q.Push(Event{Path: "/x", Kind: KindShader})
	q.Push(Event{Path: "/x", Kind: KindChart})
	assert.Equal(t, []Event{{Path: "/x", Kind: KindChart}}, q.Drain())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		kind Kind
		ok   bool
	}{
		{"shaders/sky.wgsl", KindShader, true},
		{"shaders/sky.GLSL", KindShader, true},
		{"chart.yaml", KindChart, true},
		{"chart.yml", KindChart, true},
		{"mesh.glb", 0, false},
		{"notes", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			kind, ok := Classify(tt.path)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.kind, kind)
			}
		})
	}
}

func TestPatterns(t *testing.T) {
	w := &watcher{}
	require.NoError(t, WithInclude("**/*.wgsl", "**/*.yaml")(w))
	require.NoError(t, WithExclude("**/tmp/**")(w))

	assert.True(t, w.matches("/work/shaders/sky.wgsl"))
	assert.True(t, w.matches("/work/chart.yaml"))
	assert.False(t, w.matches("/work/shaders/sky.glsl"))
	assert.False(t, w.matches("/work/tmp/sky.wgsl"))
}

func TestBadPattern(t *testing.T) {
	_, err := NewWatcher(nil, WithInclude("[unclosed"))
	assert.Error(t, err)
}

func TestMissingRoot(t *testing.T) {
	_, err := NewWatcher([]string{filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func startWatcher(t *testing.T, roots []string, opts ...WatcherBuilderOption) Watcher {
	t.Helper()
	common.SetLogOutput(io.Discard)
	w, err := NewWatcher(roots, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
		assert.NoError(t, w.Close())
	})
	return w
}

// waitFor rewrites path until the watcher reports it, since the watch may still be settling.
func waitFor(t *testing.T, w Watcher, path string) []Event {
	t.Helper()
	var got []Event
	require.Eventually(t, func() bool {
		if err := os.WriteFile(path, []byte("// edit\n"), 0o644); err != nil {
			return false
		}
		got = append(got, w.Queue().Drain()...)
		for _, e := range got {
			if e.Path == path {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
	return got
}

func TestWatcherReportsWrites(t *testing.T) {
	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err)
	w := startWatcher(t, []string{dir}, WithInclude("**/*.wgsl", "**/*.yaml"))

	shaderPath := filepath.Join(dir, "sky.wgsl")
	got := waitFor(t, w, shaderPath)
	for _, e := range got {
		if e.Path == shaderPath {
			assert.Equal(t, KindShader, e.Kind)
		}
	}

	chartPath := filepath.Join(dir, "chart.yaml")
	got = waitFor(t, w, chartPath)
	for _, e := range got {
		if e.Path == chartPath {
			assert.Equal(t, KindChart, e.Kind)
		}
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err)
	w := startWatcher(t, []string{dir})

	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	waitFor(t, w, filepath.Join(sub, "particles.wgsl"))
}

func TestWatcherIgnoresExcluded(t *testing.T) {
	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err)
	w := startWatcher(t, []string{dir}, WithExclude("**/*.glsl"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.glsl"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	got := waitFor(t, w, filepath.Join(dir, "keep.wgsl"))

	for _, e := range append(got, w.Queue().Drain()...) {
		assert.Equal(t, filepath.Join(dir, "keep.wgsl"), e.Path)
	}
}

func TestSharedQueue(t *testing.T) {
	q := NewQueue()
	w, err := NewWatcher(nil, WithQueue(q))
	require.NoError(t, err)
	defer w.Close()
	assert.Same(t, q, w.Queue())
}
