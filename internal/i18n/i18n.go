// Package i18n holds the fixed zh/en/km label catalog used for menus,
// acknowledgments and notices.
package i18n

import (
	"fmt"
	"strings"
	"time"
)

// Lang is a supported interface language.
type Lang string

const (
	LangZH Lang = "zh"
	LangEN Lang = "en"
	LangKM Lang = "km"
)

// Default is the language assigned to people who never picked one.
const Default = LangZH

// Valid reports whether l is one of the supported languages.
func (l Lang) Valid() bool {
	return l == LangZH || l == LangEN || l == LangKM
}

var labels = map[string]map[Lang]string{
	"work":       {LangZH: "上班", LangEN: "Start Work", LangKM: "ចាប់ផ្តើមការងារ"},
	"off":        {LangZH: "下班", LangEN: "End Work", LangKM: "បញ្ចប់ការងារ"},
	"eat":        {LangZH: "吃饭", LangEN: "Eat", LangKM: "បរិភោគ"},
	"toilet":     {LangZH: "上厕所", LangEN: "Toilet", LangKM: "បង្គន់"},
	"smoke":      {LangZH: "抽烟", LangEN: "Smoke", LangKM: "ជក់បារី"},
	"meeting":    {LangZH: "会议", LangEN: "Meeting", LangKM: "ប្រជុំ"},
	"back":       {LangZH: "回座", LangEN: "Back", LangKM: "ត្រឡប់"},
	"menu_title": {LangZH: "请点击下面按钮打卡", LangEN: "Please tap a button", LangKM: "សូមចុចប៊ូតុង"},
	"no_activity": {
		LangZH: "⚠️ 您当前没有正在进行的活动。",
		LangEN: "⚠️ No activity running.",
		LangKM: "⚠️ គ្មានសកម្មភាពកំពុងធ្វើ។",
	},
}

// Label returns the catalog entry for key in lang, falling back to the
// default language and then to the key itself for unknown entries.
func Label(key string, lang Lang) string {
	entry, ok := labels[key]
	if !ok {
		return key
	}
	if s, ok := entry[lang]; ok {
		return s
	}
	return entry[Default]
}

// FormatDuration renders a duration as "1h 2m 3s", omitting zero units.
// Sub-second durations come out as "0s".
func FormatDuration(d time.Duration) string {
	total := int(d.Seconds())
	if total < 0 {
		total = 0
	}
	h, m, s := total/3600, (total%3600)/60, total%60
	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if s > 0 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}
