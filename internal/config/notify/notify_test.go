package notify

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestNew(t *testing.T) {
	n := New()
	if n == nil {
		t.Fatal("New() returned nil")
	}
	defer n.Close()
}

func TestChangeType_String(t *testing.T) {
	tests := []struct {
		ct   ChangeType
		want string
	}{
		{ChangeSet, "set"},
		{ChangeReload, "reload"},
		{ChangeType(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.ct.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.ct, got, tt.want)
		}
	}
}

func TestNotifier_Subscribe(t *testing.T) {
	n := New()
	defer n.Close()

	var received atomic.Bool

	sub := n.Subscribe(func(change Change) {
		received.Store(true)
	})

	n.Notify(Change{Path: "test", Type: ChangeSet})

	if !received.Load() {
		t.Error("observer did not receive notification")
	}

	// Unsubscribe
	sub.Unsubscribe()

	received.Store(false)
	n.Notify(Change{Path: "test2", Type: ChangeSet})

	if received.Load() {
		t.Error("unsubscribed observer received notification")
	}
}

func TestNotifier_SubscribePath(t *testing.T) {
	n := New()
	defer n.Close()

	var bigdocChanges, loggingChanges atomic.Int32

	n.SubscribePath("bigdoc", func(change Change) {
		bigdocChanges.Add(1)
	})
	n.SubscribePath("logging", func(change Change) {
		loggingChanges.Add(1)
	})

	// Send bigdoc.filesize change
	n.NotifySet("bigdoc.filesize", 2, 8, "user")
	// Send logging.level change
	n.NotifySet("logging.level", "info", "debug", "user")
	// Send bigdoc exact match
	n.NotifySet("bigdoc", nil, map[string]any{}, "user")

	if bigdocChanges.Load() != 2 {
		t.Errorf("bigdoc observer received %d changes, want 2", bigdocChanges.Load())
	}
	if loggingChanges.Load() != 1 {
		t.Errorf("logging observer received %d changes, want 1", loggingChanges.Load())
	}
}

func TestNotifier_NotifySet(t *testing.T) {
	n := New()
	defer n.Close()

	var receivedChange Change

	n.Subscribe(func(change Change) {
		receivedChange = change
	})

	n.NotifySet("bigdoc.filesize", 2, 8, "user")

	if receivedChange.Path != "bigdoc.filesize" {
		t.Errorf("Path = %q, want 'bigdoc.filesize'", receivedChange.Path)
	}
	if receivedChange.Type != ChangeSet {
		t.Errorf("Type = %v, want ChangeSet", receivedChange.Type)
	}
	if receivedChange.OldValue != 2 {
		t.Errorf("OldValue = %v, want 2", receivedChange.OldValue)
	}
	if receivedChange.NewValue != 8 {
		t.Errorf("NewValue = %v, want 8", receivedChange.NewValue)
	}
	if receivedChange.Source != "user" {
		t.Errorf("Source = %q, want 'user'", receivedChange.Source)
	}
}

func TestNotifier_NotifyReload(t *testing.T) {
	n := New()
	defer n.Close()

	var globalGot, pathGot atomic.Bool

	n.Subscribe(func(change Change) {
		if change.Type == ChangeReload {
			globalGot.Store(true)
		}
	})

	// Path observers receive reload events too
	n.SubscribePath("bigdoc", func(change Change) {
		if change.Type == ChangeReload {
			pathGot.Store(true)
		}
	})

	n.NotifyReload("/home/user/.config/heft/settings.toml")

	if !globalGot.Load() {
		t.Error("global observer did not receive reload")
	}
	if !pathGot.Load() {
		t.Error("path observer did not receive reload")
	}
}

func TestNotifier_CloseStopsDelivery(t *testing.T) {
	n := New()

	var count atomic.Int32
	n.Subscribe(func(change Change) {
		count.Add(1)
	})

	n.NotifySet("bigdoc.filesize", 2, 8, "user")
	n.Close()
	n.NotifySet("bigdoc.filesize", 8, 16, "user")

	if count.Load() != 1 {
		t.Errorf("received %d changes, want 1 (no delivery after Close)", count.Load())
	}

	// Close is idempotent
	n.Close()
}

func TestNotifier_ConcurrentNotify(t *testing.T) {
	n := New()
	defer n.Close()

	var count atomic.Int32
	n.Subscribe(func(change Change) {
		count.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				n.NotifySet("bigdoc.filesize", j, j+1, "test")
			}
		}()
	}
	wg.Wait()

	if count.Load() != 100 {
		t.Errorf("received %d changes, want 100", count.Load())
	}
}

func TestIsParentPath(t *testing.T) {
	tests := []struct {
		parent string
		child  string
		want   bool
	}{
		{"bigdoc", "bigdoc.filesize", true},
		{"bigdoc", "bigdoc.features", true},
		{"bigdoc", "bigdocs.filesize", false},
		{"bigdoc.filesize", "bigdoc", false},
		{"bigdoc", "bigdoc", false},
		{"", "anything", true},
	}

	for _, tt := range tests {
		got := isParentPath(tt.parent, tt.child)
		if got != tt.want {
			t.Errorf("isParentPath(%q, %q) = %v, want %v", tt.parent, tt.child, got, tt.want)
		}
	}
}
