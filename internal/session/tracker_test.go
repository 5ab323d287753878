package session

import (
	"testing"
	"time"
)

func TestTrack_NewSession(t *testing.T) {
	tr := NewTracker()
	now := time.Unix(1700000000, 0)

	s := tr.Track("claude_code", "api.anthropic.com", "anthropic", "anthropic", now)
	if s.RequestCount != 1 {
		t.Errorf("RequestCount = %d, want 1", s.RequestCount)
	}
	if tr.Count() != 1 {
		t.Errorf("Count() = %d, want 1", tr.Count())
	}
}

func TestTrack_ReusesRecentSession(t *testing.T) {
	tr := NewTracker()
	now := time.Unix(1700000000, 0)

	first := tr.Track("claude_code", "api.anthropic.com", "", "", now)
	later := now.Add(5 * time.Minute)
	second := tr.Track("claude_code", "api.anthropic.com", "", "", later)

	if first.SessionID != second.SessionID {
		t.Errorf("expected same session id, got %q and %q", first.SessionID, second.SessionID)
	}
	if second.RequestCount != 2 {
		t.Errorf("RequestCount = %d, want 2", second.RequestCount)
	}
	if tr.Count() != 1 {
		t.Errorf("Count() = %d, want 1", tr.Count())
	}
}

func TestTrack_StartsNewSessionAfterWindowExpires(t *testing.T) {
	tr := NewTracker()
	now := time.Unix(1700000000, 0)

	first := tr.Track("agent", "host", "", "", now)
	later := now.Add(31 * time.Minute)
	second := tr.Track("agent", "host", "", "", later)

	if first.SessionID == second.SessionID {
		t.Error("expected a new session after the inactivity window elapsed")
	}
	if tr.Count() != 2 {
		t.Errorf("Count() = %d, want 2", tr.Count())
	}
}

func TestTrack_BackfillsProtocolOnce(t *testing.T) {
	tr := NewTracker()
	now := time.Unix(1700000000, 0)

	tr.Track("agent", "host", "", "", now)
	s := tr.Track("agent", "host", "mcp", "unknown-provider", now.Add(time.Minute))
	if s.Protocol != "mcp" {
		t.Errorf("Protocol = %q, want mcp", s.Protocol)
	}

	s2 := tr.Track("agent", "host", "anthropic", "anthropic", now.Add(2*time.Minute))
	if s2.Protocol != "mcp" {
		t.Errorf("Protocol should not be overwritten once set, got %q", s2.Protocol)
	}
}

func TestExpire_RemovesStaleSessionsAndIndex(t *testing.T) {
	tr := NewTracker()
	now := time.Unix(1700000000, 0)

	tr.Track("a", "host1", "", "", now)
	tr.Track("b", "host2", "", "", now)

	later := now.Add(31 * time.Minute)
	n := tr.Expire(later)
	if n != 2 {
		t.Errorf("Expire() = %d, want 2", n)
	}
	if tr.Count() != 0 {
		t.Errorf("Count() after expiry = %d, want 0", tr.Count())
	}

	// Index must be cleared too, or a later Track for the same key would
	// spuriously find phantom candidates.
	fresh := tr.Track("a", "host1", "", "", later)
	if fresh.RequestCount != 1 {
		t.Errorf("expected a fresh session after expiry, got RequestCount=%d", fresh.RequestCount)
	}
}

func TestActive_FiltersByWindow(t *testing.T) {
	tr := NewTracker()
	now := time.Unix(1700000000, 0)
	tr.Track("a", "host", "", "", now.Add(-40*time.Minute))
	tr.Track("b", "host", "", "", now)

	active := tr.Active(now)
	if len(active) != 1 {
		t.Fatalf("Active() returned %d sessions, want 1", len(active))
	}
	if active[0].Agent != "b" {
		t.Errorf("active session agent = %q, want b", active[0].Agent)
	}
}

func TestForAgent(t *testing.T) {
	tr := NewTracker()
	now := time.Unix(1700000000, 0)
	tr.Track("a", "host1", "", "", now)
	tr.Track("a", "host2", "", "", now)
	tr.Track("b", "host1", "", "", now)

	sessions := tr.ForAgent("a")
	if len(sessions) != 2 {
		t.Errorf("ForAgent(a) returned %d sessions, want 2", len(sessions))
	}
}
