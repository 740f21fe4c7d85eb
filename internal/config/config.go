package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	AdminKey       string        `mapstructure:"ADMIN_KEY"`
	ScoringURL     string        `mapstructure:"SCORING_URL"`
	ScoringTimeout time.Duration `mapstructure:"SCORING_TIMEOUT"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`

	// SLA tiers for the escalation monitor, keyed by lead priority.
	SLAUrgent   time.Duration `mapstructure:"SLA_URGENT"`
	SLAStandard time.Duration `mapstructure:"SLA_STANDARD"`
	// SweepSchedule is a cron spec for the escalation sweep.
	SweepSchedule string `mapstructure:"SWEEP_SCHEDULE"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("SCORING_TIMEOUT", "2s")
	v.SetDefault("SLA_URGENT", "2h")
	v.SetDefault("SLA_STANDARD", "24h")
	v.SetDefault("SWEEP_SCHEDULE", "@every 60s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SLAFor maps a lead priority onto its response-time budget.
func (c Config) SLAFor(leadPriority string) time.Duration {
	if leadPriority == "urgent" {
		return c.SLAUrgent
	}
	return c.SLAStandard
}
