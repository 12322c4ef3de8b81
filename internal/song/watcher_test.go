package song

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

func TestLibrary_WatchInvalidatesOnChange(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "one", MainFile), 8000, 1, constant(0, 4))

	lib := NewLibrary(dir)
	if songs, _ := lib.List(); len(songs) != 1 {
		t.Fatalf("initial List() = %d songs, want 1", len(songs))
	}

	ctx, cancel := context.WithCancel(context.Background())
	changed := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- lib.Watch(ctx, nopLogger{}, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	// Give the watcher time to register before touching the directory.
	time.Sleep(100 * time.Millisecond)
	if err := os.MkdirAll(filepath.Join(dir, "two"), 0o755); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}

	writeWAV(t, filepath.Join(dir, "two", MainFile), 8000, 1, constant(0, 4))
	deadline := time.Now().Add(5 * time.Second)
	for {
		songs, err := lib.List()
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(songs) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("List() = %d songs after change, want 2", len(songs))
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}

func TestLibrary_WatchMissingDirectory(t *testing.T) {
	lib := NewLibrary(filepath.Join(t.TempDir(), "absent"))
	if err := lib.Watch(context.Background(), nopLogger{}, nil); err == nil {
		t.Error("Watch() on missing directory expected error")
	}
}
