// Package engine holds the attendance business rules: work sessions,
// timed breaks, warning and timeout callbacks, fines and the periodic
// reports. It talks to the outside world only through the injected
// Notifier and TimerService ports.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"attendance.bot/internal/attendance"
	"attendance.bot/internal/config"
	"attendance.bot/internal/i18n"
	"attendance.bot/internal/report"
	"attendance.bot/pkg/telemetry"
	"github.com/rs/zerolog/log"
)

// Notifier delivers messages to groups and people. Implementations must
// not block the caller.
type Notifier interface {
	GroupMessage(ctx context.Context, chatID int64, text string)
	GroupHTML(ctx context.Context, chatID int64, text string)
	Menu(ctx context.Context, chatID int64, lang i18n.Lang)
	Direct(ctx context.Context, userID int64, text string)
	CallbackAnswer(ctx context.Context, callbackID, text string)
	Leave(ctx context.Context, chatID int64)
}

// TimerService schedules a one-shot callback after d. A non-positive d
// fires immediately.
type TimerService interface {
	Schedule(d time.Duration, fn func(ctx context.Context))
}

// MentionFunc renders a clickable reference to a person for HTML
// messages, keeping platform markup out of the engine.
type MentionFunc func(userID int64, label string) string

// Params wires an Engine together.
type Params struct {
	Store    *attendance.Store
	Notifier Notifier
	Timers   TimerService
	Mailer   report.Mailer // optional; nil disables the report email copy
	Mention  MentionFunc

	Limits map[string]config.ActivityLimit
	Admins map[int64]bool

	LateCutoffHour   int
	LateCutoffMinute int
	LateWorkFine     int

	Clock func() time.Time
}

// Engine is the activity engine.
type Engine struct {
	store    *attendance.Store
	notifier Notifier
	timers   TimerService
	mailer   report.Mailer
	mention  MentionFunc

	limits map[attendance.Kind]config.ActivityLimit
	admins map[int64]bool

	lateCutoffMinutes int
	lateWorkFine      int

	clock func() time.Time
}

// New creates the engine. Every transition is accepted unconditionally:
// there is no guard against re-pressing "work" or stacking the same
// break twice, matching the permissive state machine this service has
// always had.
func New(p Params) *Engine {
	limits := make(map[attendance.Kind]config.ActivityLimit, len(p.Limits))
	for k, v := range p.Limits {
		limits[attendance.Kind(k)] = v
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	mention := p.Mention
	if mention == nil {
		mention = func(userID int64, label string) string { return label }
	}
	return &Engine{
		store:             p.Store,
		notifier:          p.Notifier,
		timers:            p.Timers,
		mailer:            p.Mailer,
		mention:           mention,
		limits:            limits,
		admins:            p.Admins,
		lateCutoffMinutes: p.LateCutoffHour*60 + p.LateCutoffMinute,
		lateWorkFine:      p.LateWorkFine,
		clock:             clock,
	}
}

// Start handles /start: ensure the person exists and send the action
// menu in their language.
func (e *Engine) Start(ctx context.Context, groupID, userID int64, name string) {
	p := e.store.GetOrCreate(groupID, userID, name)
	e.notifier.Menu(ctx, groupID, p.Lang)
}

// SetLanguage stores the person's language and re-renders the menu.
func (e *Engine) SetLanguage(ctx context.Context, groupID, userID int64, name string, lang i18n.Lang) {
	if !lang.Valid() {
		return
	}
	e.store.SetLanguage(groupID, userID, name, lang)
	e.notifier.Menu(ctx, groupID, lang)
}

// StartWork opens a work session, silently resetting the clock if one
// was already running. Starting after the configured cutoff charges the
// late-work fine, once per day.
func (e *Engine) StartWork(ctx context.Context, groupID, userID int64, name, callbackID string) {
	now := e.clock()
	lateFine := 0
	e.store.Update(groupID, userID, name, func(p *attendance.PersonState) {
		t := now
		p.WorkStart = &t

		day := now.Format("2006-01-02")
		if e.lateWorkFine > 0 && now.Hour()*60+now.Minute() > e.lateCutoffMinutes && p.LateFinedOn != day {
			p.DailyFines += e.lateWorkFine
			p.MonthlyFines += e.lateWorkFine
			p.LateFinedOn = day
			lateFine = e.lateWorkFine
		}
	})

	ack := "✅ Work started"
	if lateFine > 0 {
		ack = fmt.Sprintf("✅ Work started. Late today, fine %d元", lateFine)
		log.Ctx(ctx).Info().Int64("user_id", userID).Int("fine", lateFine).Msg("Late work fine applied")
	}
	e.notifier.CallbackAnswer(ctx, callbackID, ack)
}

// EndWork closes the work session. No-op without error if none is open.
func (e *Engine) EndWork(ctx context.Context, groupID, userID int64, name, callbackID string) {
	e.store.Update(groupID, userID, name, func(p *attendance.PersonState) {
		p.WorkStart = nil
	})
	e.notifier.CallbackAnswer(ctx, callbackID, "✅ Work ended")
}

// StartActivity opens a timed break and schedules its warning and
// timeout callbacks. The payload each callback needs is captured here,
// at scheduling time, and never read back from the store.
func (e *Engine) StartActivity(ctx context.Context, groupID, userID int64, name, kindStr, callbackID string) {
	kind := attendance.Kind(kindStr)
	limit, ok := e.limits[kind]
	if !ok {
		return
	}

	act := e.store.PushActivity(groupID, userID, name, kind, e.clock())
	e.notifier.CallbackAnswer(ctx, callbackID, fmt.Sprintf("Started %s", kind))

	limitDur := time.Duration(limit.LimitMin) * time.Minute
	sessionID := act.SessionID
	carrier := telemetry.InjectTraceContext(ctx)

	e.timers.Schedule(limitDur-time.Minute, func(ctx context.Context) {
		e.warningFired(ctx, carrier, groupID, userID, name, kind, sessionID)
	})
	e.timers.Schedule(limitDur, func(ctx context.Context) {
		e.timeoutFired(ctx, carrier, groupID, userID, name, kind, sessionID, limit.Fine)
	})
}

// EndActivity pops the most recently started open break and reports the
// elapsed time. With nothing open it answers the localized notice and
// mutates nothing.
func (e *Engine) EndActivity(ctx context.Context, groupID, userID int64, name, callbackID string) {
	act, ok := e.store.PopActivity(groupID, userID, name)
	if !ok {
		p := e.store.GetOrCreate(groupID, userID, name)
		e.notifier.CallbackAnswer(ctx, callbackID, i18n.Label("no_activity", p.Lang))
		return
	}
	elapsed := e.clock().Sub(act.Start)
	e.notifier.CallbackAnswer(ctx, callbackID,
		fmt.Sprintf("Back from %s (%s)", act.Kind, i18n.FormatDuration(elapsed)))
}

// warningFired sends the one-minute warning. It is a pure notification:
// no state changes, and a break already closed by "back" stays silent.
func (e *Engine) warningFired(ctx context.Context, carrier map[string]string, groupID, userID int64, name string, kind attendance.Kind, sessionID uint64) {
	ctx, span := telemetry.StartTimerSpan(ctx, "activity_warning", carrier, groupID, userID, string(kind))
	defer span.End()

	if !e.store.SessionOpen(groupID, userID, sessionID) {
		return
	}
	e.notifier.GroupHTML(ctx, groupID,
		fmt.Sprintf("⚠️ %s, 1 minute left for %s!", e.mention(userID, name), kind))
}

// timeoutFired charges the fine when the break is still open at its
// limit. The break itself stays open; timeouts fine, they do not close.
func (e *Engine) timeoutFired(ctx context.Context, carrier map[string]string, groupID, userID int64, name string, kind attendance.Kind, sessionID uint64, fine int) {
	ctx, span := telemetry.StartTimerSpan(ctx, "activity_timeout", carrier, groupID, userID, string(kind))
	defer span.End()

	if !e.store.FineIfOpen(groupID, userID, name, sessionID, fine) {
		return
	}
	log.Ctx(ctx).Info().Int64("group_id", groupID).Int64("user_id", userID).
		Str("activity", string(kind)).Int("fine", fine).Msg("Activity timeout, fine applied")
	e.notifier.GroupHTML(ctx, groupID,
		fmt.Sprintf("⏰ %s timeout on %s! Fine %d元", e.mention(userID, name), kind, fine))
}

// DailyReset zeroes every person's daily fine total in every group and
// tells each group about it.
func (e *Engine) DailyReset(ctx context.Context) {
	e.store.ZeroDailyFines()
	for _, groupID := range e.store.GroupIDs() {
		e.notifier.GroupMessage(ctx, groupID, "🔄 Daily reset complete.")
	}
	log.Ctx(ctx).Info().Msg("Daily fine reset complete")
}

// MonthlyReport sends each group its monthly fine report, zeroes the
// monthly totals, and optionally emails a consolidated copy to the
// admins.
func (e *Engine) MonthlyReport(ctx context.Context) {
	var consolidated strings.Builder
	for _, groupID := range e.store.GroupIDs() {
		people := e.store.People(groupID)
		text := report.Monthly(people)
		e.notifier.GroupMessage(ctx, groupID, text)
		e.store.ZeroMonthlyFines(groupID)

		fmt.Fprintf(&consolidated, "Group %d\n%s\n", groupID, text)
	}
	log.Ctx(ctx).Info().Msg("Monthly report sent, totals reset")

	if e.mailer == nil || consolidated.Len() == 0 {
		return
	}
	if err := e.mailer.SendMonthlyReport(ctx, consolidated.String()); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to email monthly report copy")
	}
}

// DailyReport answers /report for admins with the group's current daily
// totals. Non-admins get no reply at all.
func (e *Engine) DailyReport(ctx context.Context, groupID, callerID int64) {
	if !e.admins[callerID] {
		return
	}
	e.notifier.GroupMessage(ctx, groupID, report.Daily(e.store.People(groupID)))
}

// AdjustFine handles /fine user_id amount for admins. The amount may be
// negative to correct an earlier fine; the person is created on demand.
func (e *Engine) AdjustFine(ctx context.Context, groupID, callerID int64, args []string) {
	if !e.admins[callerID] {
		return
	}
	if len(args) < 2 {
		e.notifier.GroupMessage(ctx, groupID, "Usage: /fine user_id amount")
		return
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		e.notifier.GroupMessage(ctx, groupID, "Usage: /fine user_id amount")
		return
	}
	amount, err := strconv.Atoi(args[1])
	if err != nil {
		e.notifier.GroupMessage(ctx, groupID, "Usage: /fine user_id amount")
		return
	}

	e.store.AddFine(groupID, userID, strconv.FormatInt(userID, 10), amount)
	e.notifier.GroupMessage(ctx, groupID, fmt.Sprintf("✅ Fine %d added to %d", amount, userID))
}

// BotAdded enforces the membership guard: added by a non-admin, the bot
// leaves immediately and every admin is told who did it and where.
func (e *Engine) BotAdded(ctx context.Context, groupID int64, groupTitle string, adderID int64, adderName string) {
	if e.admins[adderID] {
		return
	}
	log.Ctx(ctx).Warn().Int64("group_id", groupID).Int64("adder_id", adderID).
		Msg("Bot added by non-admin, leaving group")

	e.notifier.GroupMessage(ctx, groupID, "⚠️ Only admins can add me. Leaving...")
	e.notifier.Leave(ctx, groupID)

	admins := make([]int64, 0, len(e.admins))
	for id := range e.admins {
		admins = append(admins, id)
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i] < admins[j] })
	for _, adminID := range admins {
		e.notifier.Direct(ctx, adminID,
			fmt.Sprintf("❌ Bot was added to %s by unauthorized user %s", groupTitle, adderName))
	}
}
