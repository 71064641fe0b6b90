// Package attendance is the process-lifetime in-memory store of
// per-group, per-person attendance state. There is no persistence:
// everything here dies with the process, which is an accepted limitation
// of the current deployment.
package attendance

import (
	"sort"
	"sync"
	"time"

	"attendance.bot/internal/i18n"
)

// Store maps (group, person) to attendance state. All access goes
// through the store mutex so that webhook handlers and timer callbacks
// never interleave partial mutations of the same person.
type Store struct {
	mu          sync.Mutex
	groups      map[int64]map[int64]*PersonState
	nextSession uint64
}

// NewStore creates an empty store. It is constructed once at service
// start and passed to every collaborator that needs it.
func NewStore() *Store {
	return &Store{groups: make(map[int64]map[int64]*PersonState)}
}

// getOrCreateLocked returns the live entry, creating it with defaults if
// absent. Caller must hold s.mu.
func (s *Store) getOrCreateLocked(groupID, userID int64, name string) *PersonState {
	people, ok := s.groups[groupID]
	if !ok {
		people = make(map[int64]*PersonState)
		s.groups[groupID] = people
	}
	p, ok := people[userID]
	if !ok {
		p = &PersonState{ID: userID, Name: name, Lang: i18n.Default}
		people[userID] = p
	}
	if name != "" && p.Name == "" {
		p.Name = name
	}
	return p
}

// GetOrCreate returns a copy of the person's state, creating the entry
// with defaults if it does not exist. Creation always succeeds.
func (s *Store) GetOrCreate(groupID, userID int64, name string) PersonState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(groupID, userID, name).clone()
}

// Update runs fn against the live entry under the store lock, creating
// the entry first if needed. Compound read-modify-write mutations go
// through here so they stay linearizable.
func (s *Store) Update(groupID, userID int64, name string, fn func(p *PersonState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.getOrCreateLocked(groupID, userID, name))
}

// SetLanguage stores the person's interface language.
func (s *Store) SetLanguage(groupID, userID int64, name string, lang i18n.Lang) {
	s.Update(groupID, userID, name, func(p *PersonState) {
		p.Lang = lang
	})
}

// PushActivity opens a new break on top of the person's stack and
// returns it with a fresh session ID.
func (s *Store) PushActivity(groupID, userID int64, name string, kind Kind, start time.Time) Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.getOrCreateLocked(groupID, userID, name)
	s.nextSession++
	act := Activity{Kind: kind, Start: start, SessionID: s.nextSession}
	p.Activities = append(p.Activities, act)
	return act
}

// PopActivity closes and returns the most recently started open break.
// It reports false, without mutating, when the stack is empty.
func (s *Store) PopActivity(groupID, userID int64, name string) (Activity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.getOrCreateLocked(groupID, userID, name)
	if len(p.Activities) == 0 {
		return Activity{}, false
	}
	act := p.Activities[len(p.Activities)-1]
	p.Activities = p.Activities[:len(p.Activities)-1]
	return act, true
}

// SessionOpen reports whether the break identified by sessionID is still
// on the person's stack.
func (s *Store) SessionOpen(groupID, userID int64, sessionID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	people, ok := s.groups[groupID]
	if !ok {
		return false
	}
	p, ok := people[userID]
	if !ok {
		return false
	}
	for _, act := range p.Activities {
		if act.SessionID == sessionID {
			return true
		}
	}
	return false
}

// AddFine adds amount to both the daily and monthly totals. Amount may
// be negative for admin corrections.
func (s *Store) AddFine(groupID, userID int64, name string, amount int) {
	s.Update(groupID, userID, name, func(p *PersonState) {
		p.DailyFines += amount
		p.MonthlyFines += amount
	})
}

// FineIfOpen applies the fine only when the break is still open, in one
// critical section, so a timeout firing after "back" cannot charge a
// closed session.
func (s *Store) FineIfOpen(groupID, userID int64, name string, sessionID uint64, amount int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.getOrCreateLocked(groupID, userID, name)
	for _, act := range p.Activities {
		if act.SessionID == sessionID {
			p.DailyFines += amount
			p.MonthlyFines += amount
			return true
		}
	}
	return false
}

// GroupIDs returns every known group, sorted for deterministic
// notification order.
func (s *Store) GroupIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// People returns copies of every person in the group, sorted by ID for
// stable report ordering.
func (s *Store) People(groupID int64) []PersonState {
	s.mu.Lock()
	defer s.mu.Unlock()
	people := s.groups[groupID]
	out := make([]PersonState, 0, len(people))
	for _, p := range people {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ZeroDailyFines resets every person's daily total in every group and
// leaves monthly totals untouched.
func (s *Store) ZeroDailyFines() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, people := range s.groups {
		for _, p := range people {
			p.DailyFines = 0
		}
	}
}

// ZeroMonthlyFines resets every person's monthly total in one group and
// leaves daily totals untouched.
func (s *Store) ZeroMonthlyFines(groupID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.groups[groupID] {
		p.MonthlyFines = 0
	}
}
