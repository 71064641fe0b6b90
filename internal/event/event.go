// Package event defines the inbound event union and routes each event to
// the right engine operation. The engine never sees transport types;
// everything platform-specific stops at this boundary.
package event

import (
	"context"

	"attendance.bot/internal/engine"
	"attendance.bot/internal/i18n"
	"github.com/rs/zerolog/log"
)

// Event is the tagged union of everything the webhook can deliver.
type Event interface {
	isEvent()
}

// Command is a slash command sent in a group.
type Command struct {
	GroupID     int64
	UserID      int64
	DisplayName string
	Name        string
	Args        []string
}

// ButtonPress is an inline keyboard press carrying an action token.
type ButtonPress struct {
	GroupID     int64
	UserID      int64
	DisplayName string
	CallbackID  string
	Action      string
}

// MembershipChange reports the bot being added to a group.
type MembershipChange struct {
	GroupID    int64
	GroupTitle string
	AdderID    int64
	AdderName  string
}

func (Command) isEvent()          {}
func (ButtonPress) isEvent()      {}
func (MembershipChange) isEvent() {}

// Dispatcher maps events onto engine operations.
type Dispatcher struct {
	engine *engine.Engine
}

func NewDispatcher(eng *engine.Engine) *Dispatcher {
	return &Dispatcher{engine: eng}
}

// Handle processes a single event in isolation. A fault processing one
// event must never take the service down, so panics stop here.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Ctx(ctx).Error().Interface("panic", r).Msg("Recovered from panic handling event")
		}
	}()

	switch ev := ev.(type) {
	case Command:
		d.handleCommand(ctx, ev)
	case ButtonPress:
		d.handleButton(ctx, ev)
	case MembershipChange:
		d.engine.BotAdded(ctx, ev.GroupID, ev.GroupTitle, ev.AdderID, ev.AdderName)
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, cmd Command) {
	switch cmd.Name {
	case "start":
		d.engine.Start(ctx, cmd.GroupID, cmd.UserID, cmd.DisplayName)
	case "zh", "en", "km":
		d.engine.SetLanguage(ctx, cmd.GroupID, cmd.UserID, cmd.DisplayName, i18n.Lang(cmd.Name))
	case "report":
		d.engine.DailyReport(ctx, cmd.GroupID, cmd.UserID)
	case "fine":
		d.engine.AdjustFine(ctx, cmd.GroupID, cmd.UserID, cmd.Args)
	default:
		log.Ctx(ctx).Debug().Str("command", cmd.Name).Msg("Ignoring unknown command")
	}
}

func (d *Dispatcher) handleButton(ctx context.Context, btn ButtonPress) {
	switch btn.Action {
	case "work":
		d.engine.StartWork(ctx, btn.GroupID, btn.UserID, btn.DisplayName, btn.CallbackID)
	case "off":
		d.engine.EndWork(ctx, btn.GroupID, btn.UserID, btn.DisplayName, btn.CallbackID)
	case "eat", "toilet", "smoke", "meeting":
		d.engine.StartActivity(ctx, btn.GroupID, btn.UserID, btn.DisplayName, btn.Action, btn.CallbackID)
	case "back":
		d.engine.EndActivity(ctx, btn.GroupID, btn.UserID, btn.DisplayName, btn.CallbackID)
	default:
		log.Ctx(ctx).Debug().Str("action", btn.Action).Msg("Ignoring unknown button action")
	}
}
