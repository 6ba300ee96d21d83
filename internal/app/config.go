package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/neurobridge-srs/internal/data/db"
	"github.com/yungbote/neurobridge-srs/internal/observability"
	"github.com/yungbote/neurobridge-srs/internal/platform/envutil"
	"github.com/yungbote/neurobridge-srs/internal/platform/logger"
	"github.com/yungbote/neurobridge-srs/internal/realtime/bus"
	"github.com/yungbote/neurobridge-srs/internal/services/mastery"
	"github.com/yungbote/neurobridge-srs/internal/services/scheduler"
)

type Config struct {
	LogMode     string
	HTTPAddr    string
	ServiceName string
	CORSOrigins []string

	DB    db.Config
	Redis bus.RedisConfig

	Mastery  mastery.Policy
	Optimize scheduler.OptimizeConfig
	Location *time.Location

	MetricsEnabled bool
	OTel           observability.OtelConfig
}

// LoadConfigFile seeds the environment from a flat YAML map of KEY: value.
// Variables already set in the environment are left alone.
func LoadConfigFile(path string) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return 0, fmt.Errorf("parse config file %s: %w", path, err)
	}
	n := 0
	for k, v := range values {
		key := strings.ToUpper(strings.TrimSpace(k))
		if key == "" || envutil.Set(key) {
			continue
		}
		var s string
		switch tv := v.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(tv))
			for _, p := range tv {
				parts = append(parts, fmt.Sprint(p))
			}
			s = strings.Join(parts, ",")
		default:
			s = fmt.Sprint(tv)
		}
		if err := os.Setenv(key, s); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		LogMode:     envutil.String("LOG_MODE", "development"),
		HTTPAddr:    envutil.String("HTTP_ADDR", ":8080"),
		ServiceName: envutil.String("SERVICE_NAME", "neurobridge-srs"),
		CORSOrigins: splitList(envutil.String("CORS_ALLOW_ORIGINS", "")),
		DB: db.Config{
			Driver:     strings.ToLower(envutil.String("DB_DRIVER", db.DriverPostgres)),
			SQLitePath: envutil.String("SQLITE_PATH", "srs.db"),
			Postgres: db.PostgresConfig{
				Host:     envutil.String("POSTGRES_HOST", "localhost"),
				Port:     envutil.String("POSTGRES_PORT", "5432"),
				User:     envutil.String("POSTGRES_USER", "postgres"),
				Password: envutil.String("POSTGRES_PASSWORD", ""),
				Name:     envutil.String("POSTGRES_NAME", "neurobridge_srs"),
				SSLMode:  envutil.String("POSTGRES_SSLMODE", "disable"),
			},
		},
		Redis: bus.RedisConfig{
			Addr:     envutil.String("REDIS_ADDR", ""),
			Password: envutil.String("REDIS_PASSWORD", ""),
			DB:       intVar(log, "REDIS_DB", 0),
			Channel:  envutil.String("REDIS_CHANNEL", bus.DefaultChannel),
		},
		MetricsEnabled: envutil.Bool("METRICS_ENABLED", true),
	}
	if cfg.DB.Driver != db.DriverPostgres && cfg.DB.Driver != db.DriverSQLite {
		log.Warn("Unknown DB_DRIVER, using postgres", "value", cfg.DB.Driver)
		cfg.DB.Driver = db.DriverPostgres
	}

	def := mastery.DefaultPolicy()
	policy := mastery.Policy{
		WeightMature:         floatVar(log, "MASTERY_WEIGHT_MATURE", def.WeightMature),
		WeightStability:      floatVar(log, "MASTERY_WEIGHT_STABILITY", def.WeightStability),
		WeightRetrievability: floatVar(log, "MASTERY_WEIGHT_RETRIEVABILITY", def.WeightRetrievability),
		WeightRetention:      floatVar(log, "MASTERY_WEIGHT_RETENTION", def.WeightRetention),
		MatureStabilityDays:  floatVar(log, "MASTERY_MATURE_STABILITY_DAYS", def.MatureStabilityDays),
		StabilityCapDays:     floatVar(log, "MASTERY_STABILITY_CAP_DAYS", def.StabilityCapDays),
		RetentionWindow:      durationVar(log, "MASTERY_RETENTION_WINDOW", def.RetentionWindow),
	}
	if err := policy.Validate(); err != nil {
		log.Warn("Invalid mastery policy, using defaults", "error", err)
		policy = def
	}
	cfg.Mastery = policy

	optDef := scheduler.DefaultOptimizeConfig()
	cfg.Optimize = scheduler.OptimizeConfig{
		MinReviews: positiveInt(log, "OPTIMIZE_MIN_REVIEWS", optDef.MinReviews),
		Timeout:    durationVar(log, "OPTIMIZE_TIMEOUT", optDef.Timeout),
		Epochs:     positiveInt(log, "OPTIMIZE_EPOCHS", optDef.Epochs),
	}

	tz := envutil.String("SCHEDULE_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("Invalid SCHEDULE_TIMEZONE, using UTC", "value", tz, "error", err)
		loc = time.UTC
	}
	cfg.Location = loc

	cfg.OTel = observability.OtelConfig{
		Enabled:     envutil.Bool("OTEL_ENABLED", false),
		ServiceName: cfg.ServiceName,
		Environment: envutil.String("ENVIRONMENT", "development"),
		Version:     envutil.String("SERVICE_VERSION", "dev"),
		SampleRatio: floatVar(log, "OTEL_SAMPLER_RATIO", 1),
		Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Headers:     observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "")),
		Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intVar(log *logger.Logger, name string, def int) int {
	if raw := strings.TrimSpace(os.Getenv(name)); raw != "" {
		if _, err := strconv.Atoi(raw); err != nil {
			log.Warn("Invalid integer env var, using default", "name", name, "value", raw, "default", def)
		}
	}
	return envutil.Int(name, def)
}

func positiveInt(log *logger.Logger, name string, def int) int {
	v := intVar(log, name, def)
	if v <= 0 {
		log.Warn("Non-positive env var, using default", "name", name, "value", v, "default", def)
		return def
	}
	return v
}

func floatVar(log *logger.Logger, name string, def float64) float64 {
	if raw := strings.TrimSpace(os.Getenv(name)); raw != "" {
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			log.Warn("Invalid float env var, using default", "name", name, "value", raw, "default", def)
		}
	}
	return envutil.Float(name, def)
}

func durationVar(log *logger.Logger, name string, def time.Duration) time.Duration {
	v := envutil.Duration(name, def)
	if v <= 0 {
		log.Warn("Non-positive duration env var, using default", "name", name, "default", def)
		return def
	}
	if raw := strings.TrimSpace(os.Getenv(name)); raw != "" && v == def {
		if _, err := time.ParseDuration(raw); err != nil {
			if _, err2 := strconv.Atoi(raw); err2 != nil {
				log.Warn("Invalid duration env var, using default", "name", name, "value", raw, "default", def)
			}
		}
	}
	return v
}
