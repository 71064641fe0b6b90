// Package report builds the fine report texts and handles the optional
// email copy sent to administrators.
package report

import (
	"fmt"
	"strings"

	"attendance.bot/internal/attendance"
)

// Daily renders the current daily fine totals for one group.
func Daily(people []attendance.PersonState) string {
	var b strings.Builder
	b.WriteString("📊 Daily Report:\n")
	for _, p := range people {
		fmt.Fprintf(&b, "%s: %d 元\n", p.Name, p.DailyFines)
	}
	return b.String()
}

// Monthly renders the monthly fine totals for one group.
func Monthly(people []attendance.PersonState) string {
	var b strings.Builder
	b.WriteString("📊 Monthly Report:\n")
	for _, p := range people {
		fmt.Fprintf(&b, "%s: %d 元\n", p.Name, p.MonthlyFines)
	}
	return b.String()
}
