package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

type reload struct {
	file *File
	err  error
}

func startWatcher(t *testing.T, path string) <-chan reload {
	t.Helper()
	w, err := NewWatcher(path, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	reloads := make(chan reload, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Watch(ctx, func(f *File, err error) { reloads <- reload{f, err} })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	return reloads
}

func waitReload(t *testing.T, reloads <-chan reload) reload {
	t.Helper()
	select {
	case r := <-reloads:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("no reload")
		return reload{}
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeTable(t, "routes:\n  - path: /\n")
	reloads := startWatcher(t, path)

	if err := os.WriteFile(path, []byte("routes:\n  - path: /\n  - path: /new\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := waitReload(t, reloads)
	if r.err != nil {
		t.Fatalf("reload error: %v", r.err)
	}
	if len(r.file.Routes) != 2 {
		t.Errorf("got %d routes, want 2", len(r.file.Routes))
	}
}

func TestWatcherReportsInvalidFile(t *testing.T) {
	path := writeTable(t, "routes:\n  - path: /\n")
	reloads := startWatcher(t, path)

	if err := os.WriteFile(path, []byte("routes: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := waitReload(t, reloads)
	if r.err == nil || r.file != nil {
		t.Fatalf("reload = %+v, want an error", r)
	}
}

func TestWatcherFollowsRename(t *testing.T) {
	path := writeTable(t, "routes:\n  - path: /\n")
	reloads := startWatcher(t, path)

	// Editors save by renaming a temporary file over the original.
	tmp := filepath.Join(filepath.Dir(path), ".waypoint.yaml.swp")
	if err := os.WriteFile(tmp, []byte("routes:\n  - path: /renamed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	r := waitReload(t, reloads)
	if r.err != nil || r.file.Routes[0].Path != "/renamed" {
		t.Fatalf("reload = %+v", r)
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	path := writeTable(t, "routes:\n  - path: /\n")
	reloads := startWatcher(t, path)

	other := filepath.Join(filepath.Dir(path), "notes.yaml")
	if err := os.WriteFile(other, []byte("x: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case r := <-reloads:
		t.Fatalf("unexpected reload %+v", r)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherRejectsSecondWatch(t *testing.T) {
	path := writeTable(t, "routes:\n  - path: /\n")
	w, err := NewWatcher(path, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Watch(ctx, func(*File, error) {})
	}()
	time.Sleep(20 * time.Millisecond)

	if err := w.Watch(ctx, func(*File, error) {}); err == nil {
		t.Error("second Watch succeeded")
	}
	cancel()
	<-done
}

func TestDebouncerCoalesces(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)
	defer d.stop()

	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		d.trigger(func() { calls.Add(1) })
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}

	d.stop()
	d.trigger(func() { calls.Add(1) })
	time.Sleep(60 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("calls after stop = %d, want 1", n)
	}
}
