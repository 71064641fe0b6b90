package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// The bot runs as a single pod/container with everything supplied through
// environment variables: the Telegram credentials, the admin whitelist and
// the activity limits all come in this way.

// ActivityLimit is the per-activity time budget and the fine charged
// when it is exceeded.
type ActivityLimit struct {
	LimitMin int
	Fine     int
}

type Config struct {
	BotToken   string `mapstructure:"BOT_TOKEN"`
	WebhookURL string `mapstructure:"WEBHOOK_URL"`
	ServerPort string `mapstructure:"SERVER_PORT"`
	IsLocalDev bool   `mapstructure:"IS_LOCAL_DEV"`

	// Comma-separated Telegram user IDs allowed to run admin commands
	// and to add the bot to groups.
	AdminUserIDsRaw string `mapstructure:"ADMIN_USER_IDS"`

	DailyResetTime    string `mapstructure:"DAILY_RESET_TIME"`
	MonthlyReportDay  int    `mapstructure:"MONTHLY_REPORT_DAY"`
	MonthlyReportTime string `mapstructure:"MONTHLY_REPORT_TIME"`

	EatLimitMin     int `mapstructure:"EAT_LIMIT_MIN"`
	EatFine         int `mapstructure:"EAT_FINE"`
	ToiletLimitMin  int `mapstructure:"TOILET_LIMIT_MIN"`
	ToiletFine      int `mapstructure:"TOILET_FINE"`
	SmokeLimitMin   int `mapstructure:"SMOKE_LIMIT_MIN"`
	SmokeFine       int `mapstructure:"SMOKE_FINE"`
	MeetingLimitMin int `mapstructure:"MEETING_LIMIT_MIN"`
	MeetingFine     int `mapstructure:"MEETING_FINE"`

	LateWorkCutoff string `mapstructure:"LATE_WORK_CUTOFF"`
	LateWorkFine   int    `mapstructure:"LATE_WORK_FINE"`

	AWSRegion       string `mapstructure:"AWS_REGION"`
	AWSEndpoint     string `mapstructure:"AWS_ENDPOINT"`
	ReportEmailFrom string `mapstructure:"REPORT_EMAIL_FROM"`
	AdminEmailsRaw  string `mapstructure:"ADMIN_EMAILS"`

	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("BOT_TOKEN", "")
	viper.SetDefault("WEBHOOK_URL", "")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("IS_LOCAL_DEV", false)
	viper.SetDefault("ADMIN_USER_IDS", "")
	viper.SetDefault("DAILY_RESET_TIME", "15:00")
	viper.SetDefault("MONTHLY_REPORT_DAY", 1)
	viper.SetDefault("MONTHLY_REPORT_TIME", "15:05")
	viper.SetDefault("EAT_LIMIT_MIN", 30)
	viper.SetDefault("EAT_FINE", 10)
	viper.SetDefault("TOILET_LIMIT_MIN", 15)
	viper.SetDefault("TOILET_FINE", 10)
	viper.SetDefault("SMOKE_LIMIT_MIN", 10)
	viper.SetDefault("SMOKE_FINE", 10)
	viper.SetDefault("MEETING_LIMIT_MIN", 60)
	viper.SetDefault("MEETING_FINE", 0)
	viper.SetDefault("LATE_WORK_CUTOFF", "09:00")
	viper.SetDefault("LATE_WORK_FINE", 50)
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("AWS_ENDPOINT", "")
	viper.SetDefault("REPORT_EMAIL_FROM", "")
	viper.SetDefault("ADMIN_EMAILS", "")
	viper.SetDefault("OTLP_ENDPOINT", "jaeger:4317")

	// Read in environment variables that match the keys.
	viper.AutomaticEnv()

	err = viper.Unmarshal(&config)
	return
}

// AdminUserIDs parses the comma-separated admin whitelist.
func (c Config) AdminUserIDs() (map[int64]bool, error) {
	admins := make(map[int64]bool)
	for _, part := range strings.Split(c.AdminUserIDsRaw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin user id %q: %w", part, err)
		}
		admins[id] = true
	}
	return admins, nil
}

// AdminEmails parses the comma-separated recipients for the monthly
// report email copy. Empty means the email copy is disabled.
func (c Config) AdminEmails() []string {
	var out []string
	for _, part := range strings.Split(c.AdminEmailsRaw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ActivityLimits assembles the per-activity budgets keyed by callback
// action name.
func (c Config) ActivityLimits() map[string]ActivityLimit {
	return map[string]ActivityLimit{
		"eat":     {LimitMin: c.EatLimitMin, Fine: c.EatFine},
		"toilet":  {LimitMin: c.ToiletLimitMin, Fine: c.ToiletFine},
		"smoke":   {LimitMin: c.SmokeLimitMin, Fine: c.SmokeFine},
		"meeting": {LimitMin: c.MeetingLimitMin, Fine: c.MeetingFine},
	}
}

// ParseClock parses a HH:MM string such as DAILY_RESET_TIME.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
