// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string
	Location  *time.Location

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	FirebaseCredentials string
	DevAuth             bool

	SweepSecret   string
	SweepHour     int
	SweepInternal bool

	Backup BackupConfig
}

// BackupConfig drives the backup and restore commands. Backups go to S3 when
// a bucket and keys are set, otherwise to Dir.
type BackupConfig struct {
	Dir         string
	Passphrase  string
	Keep        int
	S3Endpoint  string
	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
}

// Load reads .env (if present) and the ROTA_* variables. Variables already
// set in the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		Port:                getEnvOrDefault("ROTA_PORT", "8080"),
		DBPath:              getEnvOrDefault("ROTA_DB_PATH", "rota.db"),
		LogLevel:            getEnvOrDefault("ROTA_LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("ROTA_LOG_FORMAT", "text"),
		VAPIDPublicKey:      os.Getenv("ROTA_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey:     os.Getenv("ROTA_VAPID_PRIVATE_KEY"),
		VAPIDSubscriber:     getEnvOrDefault("ROTA_VAPID_SUBSCRIBER", "mailto:noreply@rota.local"),
		FirebaseCredentials: os.Getenv("ROTA_FIREBASE_CREDENTIALS"),
		SweepSecret:         os.Getenv("ROTA_SWEEP_SECRET"),
		Backup: BackupConfig{
			Dir:         getEnvOrDefault("ROTA_BACKUP_DIR", "backups"),
			Passphrase:  os.Getenv("ROTA_BACKUP_PASSPHRASE"),
			S3Endpoint:  os.Getenv("ROTA_BACKUP_S3_ENDPOINT"),
			S3Bucket:    os.Getenv("ROTA_BACKUP_S3_BUCKET"),
			S3Region:    getEnvOrDefault("ROTA_BACKUP_S3_REGION", "auto"),
			S3AccessKey: os.Getenv("ROTA_BACKUP_S3_ACCESS_KEY"),
			S3SecretKey: os.Getenv("ROTA_BACKUP_S3_SECRET_KEY"),
		},
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("ROTA_PORT: %q is not a number", cfg.Port)
	}

	var err error
	if cfg.Location, err = loadLocation(os.Getenv("ROTA_TIMEZONE")); err != nil {
		return nil, err
	}
	if cfg.DevAuth, err = getBool("ROTA_DEV_AUTH", false); err != nil {
		return nil, err
	}
	if cfg.SweepInternal, err = getBool("ROTA_SWEEP_INTERNAL", true); err != nil {
		return nil, err
	}

	hour := getEnvOrDefault("ROTA_SWEEP_HOUR", "9")
	cfg.SweepHour, err = strconv.Atoi(hour)
	if err != nil || cfg.SweepHour < 0 || cfg.SweepHour > 23 {
		return nil, fmt.Errorf("ROTA_SWEEP_HOUR: %q is not an hour between 0 and 23", hour)
	}

	keep := getEnvOrDefault("ROTA_BACKUP_KEEP", "7")
	cfg.Backup.Keep, err = strconv.Atoi(keep)
	if err != nil || cfg.Backup.Keep < 1 {
		return nil, fmt.Errorf("ROTA_BACKUP_KEEP: %q is not a positive number", keep)
	}

	// bcrypt only looks at the first 72 bytes.
	if len(cfg.SweepSecret) > 72 {
		return nil, fmt.Errorf("ROTA_SWEEP_SECRET: longer than 72 bytes")
	}

	if (cfg.VAPIDPublicKey == "") != (cfg.VAPIDPrivateKey == "") {
		return nil, fmt.Errorf("ROTA_VAPID_PUBLIC_KEY and ROTA_VAPID_PRIVATE_KEY must be set together")
	}

	return cfg, nil
}

// ValidateServe checks the settings only the HTTP server needs.
func (c *Config) ValidateServe() error {
	if c.FirebaseCredentials == "" && !c.DevAuth {
		return errors.New("no identity source: set ROTA_FIREBASE_CREDENTIALS or ROTA_DEV_AUTH=true")
	}
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("ROTA_TIMEZONE: %w", err)
	}
	return loc, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	return b, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
