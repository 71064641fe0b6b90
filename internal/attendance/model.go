package attendance

import (
	"time"

	"attendance.bot/internal/i18n"
)

// Kind is a timed break category.
type Kind string

const (
	KindEat     Kind = "eat"
	KindToilet  Kind = "toilet"
	KindSmoke   Kind = "smoke"
	KindMeeting Kind = "meeting"
)

// Kinds lists every break category in menu order.
var Kinds = []Kind{KindEat, KindToilet, KindSmoke, KindMeeting}

// ValidKind reports whether s names a break category.
func ValidKind(s string) bool {
	switch Kind(s) {
	case KindEat, KindToilet, KindSmoke, KindMeeting:
		return true
	}
	return false
}

// Activity is one open timed break. SessionID is unique per process and
// lets a timer callback detect that the break it was scheduled for has
// already been closed.
type Activity struct {
	Kind      Kind
	Start     time.Time
	SessionID uint64
}

// PersonState is everything tracked for one person in one group.
//
// Activities is a stack: "back" always pops the most recently started
// open break. Depth above one is allowed even though the menu
// discourages it.
type PersonState struct {
	ID           int64
	Name         string
	Lang         i18n.Lang
	WorkStart    *time.Time
	Activities   []Activity
	DailyFines   int
	MonthlyFines int

	// LateFinedOn is the local date (2006-01-02) on which the late-work
	// fine was last charged, so re-pressing "work" cannot double-fine.
	LateFinedOn string
}

// clone returns a deep copy safe to hand out after the store lock is
// released.
func (p *PersonState) clone() PersonState {
	out := *p
	if p.WorkStart != nil {
		t := *p.WorkStart
		out.WorkStart = &t
	}
	out.Activities = make([]Activity, len(p.Activities))
	copy(out.Activities, p.Activities)
	return out
}
