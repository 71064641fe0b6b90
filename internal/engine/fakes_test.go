package engine

import (
	"context"
	"fmt"
	"time"

	"attendance.bot/internal/i18n"
)

// fakeNotifier records every outbound call for assertions.
type fakeNotifier struct {
	groupMessages   []sentMessage
	groupHTML       []sentMessage
	menus           []sentMenu
	directs         []sentMessage
	callbackAnswers []sentAnswer
	leaves          []int64
}

type sentMessage struct {
	chatID int64
	text   string
}

type sentMenu struct {
	chatID int64
	lang   i18n.Lang
}

type sentAnswer struct {
	callbackID string
	text       string
}

func (f *fakeNotifier) GroupMessage(ctx context.Context, chatID int64, text string) {
	f.groupMessages = append(f.groupMessages, sentMessage{chatID, text})
}

func (f *fakeNotifier) GroupHTML(ctx context.Context, chatID int64, text string) {
	f.groupHTML = append(f.groupHTML, sentMessage{chatID, text})
}

func (f *fakeNotifier) Menu(ctx context.Context, chatID int64, lang i18n.Lang) {
	f.menus = append(f.menus, sentMenu{chatID, lang})
}

func (f *fakeNotifier) Direct(ctx context.Context, userID int64, text string) {
	f.directs = append(f.directs, sentMessage{userID, text})
}

func (f *fakeNotifier) CallbackAnswer(ctx context.Context, callbackID, text string) {
	f.callbackAnswers = append(f.callbackAnswers, sentAnswer{callbackID, text})
}

func (f *fakeNotifier) Leave(ctx context.Context, chatID int64) {
	f.leaves = append(f.leaves, chatID)
}

func (f *fakeNotifier) total() int {
	return len(f.groupMessages) + len(f.groupHTML) + len(f.menus) +
		len(f.directs) + len(f.callbackAnswers) + len(f.leaves)
}

// fakeTimers captures scheduled callbacks so tests can fire them
// manually at a moment of their choosing.
type fakeTimers struct {
	scheduled []scheduledTimer
}

type scheduledTimer struct {
	delay time.Duration
	fn    func(ctx context.Context)
}

func (f *fakeTimers) Schedule(d time.Duration, fn func(ctx context.Context)) {
	f.scheduled = append(f.scheduled, scheduledTimer{delay: d, fn: fn})
}

func (f *fakeTimers) fire(i int) {
	f.scheduled[i].fn(context.Background())
}

// fakeMailer records emailed report bodies.
type fakeMailer struct {
	bodies []string
	err    error
}

func (f *fakeMailer) SendMonthlyReport(ctx context.Context, body string) error {
	if f.err != nil {
		return f.err
	}
	f.bodies = append(f.bodies, body)
	return nil
}

// testMention renders mentions predictably for content assertions.
func testMention(userID int64, label string) string {
	return fmt.Sprintf("@%d:%s", userID, label)
}
