// Package session groups requests from the same agent hitting the same
// host into sessions, using a sliding inactivity window. A Tracker is not
// safe for concurrent use on its own — see SafeTracker for a goroutine-safe
// wrapper.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// window is how long a session stays eligible to absorb a new request
// before it's considered expired.
const window = 30 * time.Minute

// Info describes one tracked session.
type Info struct {
	SessionID     string
	Agent         string
	Host          string
	StartedAt     time.Time
	LastActive    time.Time
	RequestCount  int
	Protocol      string
	APIProvider   string
}

// Tracker assigns requests to sessions and expires stale ones. Create one
// with NewTracker; the zero value has nil maps and is not ready to use.
type Tracker struct {
	sessions map[string]*Info
	index    map[string][]string // "agent:host" -> session ids, oldest first
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string]*Info),
		index:    make(map[string][]string),
	}
}

// Track finds the most recent still-active session for (agent, host) and
// records the request against it, or starts a new session if none
// qualifies. protocol and apiProvider backfill the session's fields only
// if it doesn't already have them — later requests never overwrite
// earlier, more specific classification.
func (t *Tracker) Track(agent, host, protocol, apiProvider string, now time.Time) *Info {
	key := indexKey(agent, host)

	candidates := t.index[key]
	for i := len(candidates) - 1; i >= 0; i-- {
		s, ok := t.sessions[candidates[i]]
		if !ok {
			continue
		}
		if now.Sub(s.LastActive) < window {
			s.LastActive = now
			s.RequestCount++
			if protocol != "" && s.Protocol == "" {
				s.Protocol = protocol
			}
			if apiProvider != "" && s.APIProvider == "" {
				s.APIProvider = apiProvider
			}
			return s
		}
	}

	id := generateSessionID(agent, host, now)
	s := &Info{
		SessionID:    id,
		Agent:        agent,
		Host:         host,
		StartedAt:    now,
		LastActive:   now,
		RequestCount: 1,
		Protocol:     protocol,
		APIProvider:  apiProvider,
	}
	t.sessions[id] = s
	t.index[key] = append(t.index[key], id)
	return s
}

// Get returns the session with the given id, or nil if unknown.
func (t *Tracker) Get(id string) *Info {
	return t.sessions[id]
}

// Active returns every session still within the window of now.
func (t *Tracker) Active(now time.Time) []*Info {
	var out []*Info
	for _, s := range t.sessions {
		if now.Sub(s.LastActive) < window {
			out = append(out, s)
		}
	}
	return out
}

// ForAgent returns every session (active or not) belonging to agent.
func (t *Tracker) ForAgent(agent string) []*Info {
	var out []*Info
	for _, s := range t.sessions {
		if s.Agent == agent {
			out = append(out, s)
		}
	}
	return out
}

// Expire removes every session whose last activity is older than the
// window and returns how many were removed.
func (t *Tracker) Expire(now time.Time) int {
	var expired []string
	for id, s := range t.sessions {
		if now.Sub(s.LastActive) >= window {
			expired = append(expired, id)
		}
	}

	for _, id := range expired {
		s := t.sessions[id]
		delete(t.sessions, id)

		key := indexKey(s.Agent, s.Host)
		ids := t.index[key]
		for i, candidate := range ids {
			if candidate == id {
				ids = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		if len(ids) == 0 {
			delete(t.index, key)
		} else {
			t.index[key] = ids
		}
	}

	return len(expired)
}

// Count returns the number of tracked sessions, active or expired.
func (t *Tracker) Count() int {
	return len(t.sessions)
}

func indexKey(agent, host string) string {
	return agent + ":" + host
}

func generateSessionID(agent, host string, now time.Time) string {
	raw := fmt.Sprintf("%s:%s:%d", agent, host, now.UnixNano())
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}
