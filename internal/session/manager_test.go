package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sequentialIDs() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("sess-%d", n)
	}
}

func TestManager_GetOrCreateIsIdempotent(t *testing.T) {
	m := NewManager(ManagerConfig{DefaultModel: "llama3-8b-8192", TTL: time.Hour})

	s, created := m.GetOrCreate("")
	if !created {
		t.Fatalf("expected new session")
	}
	if s.ID() == "" {
		t.Fatalf("expected generated id")
	}
	if s.Model() != "llama3-8b-8192" {
		t.Fatalf("expected default model, got: %s", s.Model())
	}
	if s.State() != Fresh {
		t.Fatalf("expected fresh session")
	}

	s.AppendExchange("hi", "hello")

	again, created := m.GetOrCreate(s.ID())
	if created {
		t.Fatalf("expected existing session")
	}
	if again != s {
		t.Fatalf("expected the same session handle")
	}
	if len(again.History()) != 2 {
		t.Fatalf("expected history to survive lookup")
	}
}

func TestManager_UnknownIDGetsFreshID(t *testing.T) {
	m := NewManager(ManagerConfig{DefaultModel: "a", NewID: sequentialIDs()})

	s, created := m.GetOrCreate("forged")
	if !created {
		t.Fatalf("expected new session")
	}
	if s.ID() != "sess-1" {
		t.Fatalf("expected generated id, got: %s", s.ID())
	}
	if _, ok := m.Get("forged"); ok {
		t.Fatalf("client supplied id must not be registered")
	}
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	m := NewManager(ManagerConfig{DefaultModel: "a"})

	s1, _ := m.GetOrCreate("")
	s2, _ := m.GetOrCreate("")

	s1.AppendExchange("hi", "hello")
	s2.ChangeModel("b")

	if len(s2.History()) != 0 {
		t.Fatalf("sessions must not share history")
	}
	if s1.Model() != "a" {
		t.Fatalf("sessions must not share model, got: %s", s1.Model())
	}
}

func TestManager_LazyExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(ManagerConfig{DefaultModel: "a", TTL: time.Hour, Now: clock.Now, NewID: sequentialIDs()})

	s, _ := m.GetOrCreate("")
	s.AppendExchange("hi", "hello")

	clock.Advance(30 * time.Minute)
	if _, created := m.GetOrCreate(s.ID()); created {
		t.Fatalf("session within TTL must be reused")
	}

	clock.Advance(61 * time.Minute)
	fresh, created := m.GetOrCreate(s.ID())
	if !created {
		t.Fatalf("expired session must be replaced")
	}
	if fresh.ID() == s.ID() {
		t.Fatalf("replacement must get a new id")
	}
	if _, ok := m.Get(s.ID()); ok {
		t.Fatalf("expired session must be removed")
	}
}

func TestManager_ClearExpired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(ManagerConfig{DefaultModel: "a", TTL: time.Hour, Now: clock.Now, NewID: sequentialIDs()})

	old, _ := m.GetOrCreate("")
	busy, _ := m.GetOrCreate("")
	release, err := busy.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer release()

	clock.Advance(2 * time.Hour)
	recent, _ := m.GetOrCreate("")

	deleted := m.ClearExpired(clock.Now())
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got: %d", deleted)
	}
	if _, ok := m.Get(old.ID()); ok {
		t.Fatalf("idle session must be removed")
	}
	if _, ok := m.Get(busy.ID()); !ok {
		t.Fatalf("session with request in flight must stay")
	}
	if _, ok := m.Get(recent.ID()); !ok {
		t.Fatalf("recent session must stay")
	}
}

func TestManager_ZeroTTLNeverExpires(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := NewManager(ManagerConfig{DefaultModel: "a", Now: clock.Now})

	s, _ := m.GetOrCreate("")
	clock.Advance(1000 * time.Hour)

	if n := m.ClearExpired(clock.Now()); n != 0 {
		t.Fatalf("expected nothing deleted with ttl=0, got: %d", n)
	}
	if _, created := m.GetOrCreate(s.ID()); created {
		t.Fatalf("session must survive with ttl=0")
	}
}

func TestManager_GetOrCreateWithID(t *testing.T) {
	m := NewManager(ManagerConfig{DefaultModel: "a"})

	s, created := m.GetOrCreateWithID("tg:42")
	if !created || s.ID() != "tg:42" {
		t.Fatalf("expected session tg:42 to be created, got: %s", s.ID())
	}
	again, created := m.GetOrCreateWithID("tg:42")
	if created || again != s {
		t.Fatalf("expected the same session")
	}

	m.Delete("tg:42")
	if m.Len() != 0 {
		t.Fatalf("expected empty manager, got: %d", m.Len())
	}
}

func TestManager_ConcurrentGetOrCreate(t *testing.T) {
	m := NewManager(ManagerConfig{DefaultModel: "a"})
	s, _ := m.GetOrCreate("")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, _ := m.GetOrCreate(s.ID())
			got.AppendExchange("q", "a")
		}()
	}
	wg.Wait()

	if len(s.History()) != 40 {
		t.Fatalf("expected 40 messages, got: %d", len(s.History()))
	}
}
