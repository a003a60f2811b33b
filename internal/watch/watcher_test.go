package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherNotifiesOnCreate(t *testing.T) {
	dir := t.TempDir()

	dw, err := NewDirectoryWatcher(50)
	if err != nil {
		t.Fatalf("NewDirectoryWatcher: %v", err)
	}
	defer dw.Close()

	if err := dw.Watch(dir); err != nil {
		t.Fatalf("Watch(%q): %v", dir, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case got := <-dw.Notify():
		if got != dir {
			t.Errorf("notify: expected %q, got %q", dir, got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("expected notification, got none")
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()

	dw, err := NewDirectoryWatcher(100)
	if err != nil {
		t.Fatalf("NewDirectoryWatcher: %v", err)
	}
	defer dw.Close()

	if err := dw.Watch(dir); err != nil {
		t.Fatalf("Watch(%q): %v", dir, err)
	}

	// A burst of writes inside the debounce window should collapse
	// into a single notification.
	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, "burst.txt")
		if err := os.WriteFile(name, []byte{byte(i)}, 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	count := 0
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-dw.Notify():
			count++
		case <-deadline:
			if count != 1 {
				t.Errorf("debounce: expected 1 notification, got %d", count)
			}
			return
		}
	}
}

func TestUnwatchStopsNotifications(t *testing.T) {
	dir := t.TempDir()

	dw, err := NewDirectoryWatcher(50)
	if err != nil {
		t.Fatalf("NewDirectoryWatcher: %v", err)
	}
	defer dw.Close()

	if err := dw.Watch(dir); err != nil {
		t.Fatalf("Watch(%q): %v", dir, err)
	}
	dw.Unwatch(dir)

	if err := os.WriteFile(filepath.Join(dir, "after.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case got := <-dw.Notify():
		t.Errorf("expected no notification after Unwatch, got %q", got)
	case <-time.After(500 * time.Millisecond):
	}
}
