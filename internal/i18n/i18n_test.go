package i18n

import (
	"testing"
	"time"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		key  string
		lang Lang
		want string
	}{
		{"work", LangEN, "Start Work"},
		{"work", LangZH, "上班"},
		{"back", LangKM, "ត្រឡប់"},
		{"no_activity", LangEN, "⚠️ No activity running."},
		// Unknown language falls back to the default.
		{"work", Lang("fr"), "上班"},
		// Unknown key falls back to the key.
		{"bogus", LangEN, "bogus"},
	}
	for _, tt := range tests {
		if got := Label(tt.key, tt.lang); got != tt.want {
			t.Errorf("Label(%q, %q) = %q, want %q", tt.key, tt.lang, got, tt.want)
		}
	}
}

func TestLangValid(t *testing.T) {
	for _, l := range []Lang{LangZH, LangEN, LangKM} {
		if !l.Valid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if Lang("fr").Valid() {
		t.Error("fr should be invalid")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{500 * time.Millisecond, "0s"},
		{-5 * time.Second, "0s"},
		{45 * time.Second, "45s"},
		{5 * time.Minute, "5m"},
		{5*time.Minute + 30*time.Second, "5m 30s"},
		{time.Hour, "1h"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h 2m 3s"},
		{25 * time.Hour, "25h"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
