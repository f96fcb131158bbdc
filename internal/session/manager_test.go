package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fpang/photo-restore/internal/filehandler"
)

func TestManagerCreateAndGet(t *testing.T) {
	m := NewManager(newFakeRestorer(), "instruction", nil, 0)

	s := m.Create()
	if _, err := uuid.Parse(s.ID()); err != nil {
		t.Errorf("ID %q is not a UUID: %v", s.ID(), err)
	}
	got, ok := m.Get(s.ID())
	if !ok || got != s {
		t.Fatal("Get did not return the created session")
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get found a session that was never created")
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestManagerObserverFactory(t *testing.T) {
	r := newRecorder()
	var seen string
	m := NewManager(newFakeRestorer(), "", func(id string) Observer {
		seen = id
		return r.observe
	}, 0)

	s := m.Create()
	if seen != s.ID() {
		t.Errorf("factory called with %q, want %q", seen, s.ID())
	}
	_ = s.AcquireImage(samplePNG(t, 2, 2), "image/png")
	if st := r.next(t); st.Status != StatusHasImage {
		t.Errorf("status = %v, want has_image", st.Status)
	}
}

func TestManagerDelete(t *testing.T) {
	m := NewManager(newFakeRestorer(), "", nil, 0)
	s := m.Create()

	if !m.Delete(s.ID()) {
		t.Fatal("Delete returned false for a live session")
	}
	if m.Delete(s.ID()) {
		t.Error("second Delete returned true")
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0", m.Len())
	}
}

func TestManagerSweep(t *testing.T) {
	m := NewManager(newFakeRestorer(), "", nil, time.Minute)
	old := m.Create()
	fresh := m.Create()

	now := time.Now()
	old.mu.Lock()
	old.lastUsed = now.Add(-2 * time.Minute)
	old.mu.Unlock()

	if n := m.Sweep(now); n != 1 {
		t.Fatalf("Sweep removed %d sessions, want 1", n)
	}
	if _, ok := m.Get(old.ID()); ok {
		t.Error("expired session still present")
	}
	if _, ok := m.Get(fresh.ID()); !ok {
		t.Error("fresh session was swept")
	}
}

func TestNewManagerDefaultTTL(t *testing.T) {
	m := NewManager(nil, "", nil, -1)
	if m.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", m.ttl, DefaultTTL)
	}
}

func TestManagerWaitCoversDeletedSessions(t *testing.T) {
	release := make(chan struct{})
	restorer := restorerFunc(func(ctx context.Context, img filehandler.SourceImage, instruction string) ([]byte, error) {
		<-release
		return img.Data, nil
	})
	m := NewManager(restorer, "", nil, 0)

	s := m.Create()
	if err := s.AcquireImage(samplePNG(t, 2, 2), "image/png"); err != nil {
		t.Fatal(err)
	}
	if !s.StartRestoration() {
		t.Fatal("start refused")
	}
	m.Delete(s.ID())

	waited := make(chan struct{})
	go func() {
		m.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned while a deleted session's restoration was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after the restoration finished")
	}
}
