package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env      string
		Debug    bool
		TestMode bool
		AppName  string

		SecretKey        []byte
		DefaultFromEmail string
		AdminEmail       string

		SendgridAPIKey string
		RollbarToken   string
		Build          string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Alerts   AlertsConfig
	}

	ServerConfig struct {
		Host                      string
		Addr                      string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	RedisConfig struct {
		Addr         string
		Password     string
		DB           int
		DashboardTTL time.Duration
	}

	// AlertsConfig groups the thresholds driving derived alerts and
	// eligibility so none of them live as literals at call sites.
	AlertsConfig struct {
		HighDueThreshold      float64
		ExamEligibilityMinPct float64
		CertificateMinPct     float64
		AbsenceStreakWindow   int
		HighRiskStreakWindow  int
		IncludeInactiveDues   bool
	}
)

// LoadConfig reads configuration from config/.env.<env> (if present) and the
// environment, with defaults suitable for local development.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Chuo")
	v.SetDefault("secretKey", "v1e*8s#(h@w&4mz!q0c^yd7u+p5r$jba9&n2t-gk6l%xf3o_")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("adminEmail", "admin@localhost")
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbUser", "chuo")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbName", "chuo")
	v.SetDefault("dbSSLMode", "disable")

	v.SetDefault("redisAddr", "localhost:6379")
	v.SetDefault("redisPassword", "")
	v.SetDefault("redisDB", 0)
	v.SetDefault("dashboardCacheTTL", 2*time.Minute)

	v.SetDefault("highDueThreshold", 10000.0)
	v.SetDefault("examEligibilityMinPct", 75.0)
	v.SetDefault("certificateMinPct", 75.0)
	v.SetDefault("absenceStreakWindow", 3)
	v.SetDefault("highRiskStreakWindow", 5)
	v.SetDefault("includeInactiveDues", false)

	env := os.Getenv("ENV") // DEV (default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        []byte(v.GetString("secretKey")),
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		AdminEmail:       v.GetString("adminEmail"),
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		Build:            v.GetString("build"),
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Addr:                      v.GetString("serverAddr"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("dbHost"),
			Port:     v.GetString("dbPort"),
			User:     v.GetString("dbUser"),
			Password: v.GetString("dbPassword"),
			Name:     v.GetString("dbName"),
			SSLMode:  v.GetString("dbSSLMode"),
		},
		Redis: RedisConfig{
			Addr:         v.GetString("redisAddr"),
			Password:     v.GetString("redisPassword"),
			DB:           v.GetInt("redisDB"),
			DashboardTTL: v.GetDuration("dashboardCacheTTL"),
		},
		Alerts: AlertsConfig{
			HighDueThreshold:      v.GetFloat64("highDueThreshold"),
			ExamEligibilityMinPct: v.GetFloat64("examEligibilityMinPct"),
			CertificateMinPct:     v.GetFloat64("certificateMinPct"),
			AbsenceStreakWindow:   v.GetInt("absenceStreakWindow"),
			HighRiskStreakWindow:  v.GetInt("highRiskStreakWindow"),
			IncludeInactiveDues:   v.GetBool("includeInactiveDues"),
		},
	}
	return conf, nil
}
