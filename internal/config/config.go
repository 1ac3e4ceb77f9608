package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string

	StorageDriver  string
	SQLitePath     string
	DatabaseURL    string
	MongoURI       string
	MongoDatabase  string
	StorageTimeout time.Duration

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ReportCacheTTL time.Duration

	Timezone   string
	BackupDir  string
	BackupAt   string
	BackupKeep int
	PageSize   int
}

// Load reads the environment, after filling it from a .env file in the
// working directory when one exists. Variables already set win over the file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[config] WARN: read .env: %v", err)
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigin:  getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		StorageDriver:  strings.ToLower(strings.TrimSpace(os.Getenv("STORAGE_DRIVER"))),
		SQLitePath:     getEnv("SQLITE_PATH", "./data/ledger.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MongoURI:       os.Getenv("MONGO_URI"),
		MongoDatabase:  getEnv("MONGO_DATABASE", "3lanota"),
		StorageTimeout: time.Duration(positiveInt("STORAGE_TIMEOUT_MS", 5000)) * time.Millisecond,
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        redisDB,
		ReportCacheTTL: time.Duration(positiveInt("REPORT_CACHE_TTL_SECONDS", 30)) * time.Second,
		Timezone:       getEnv("LEDGER_TIMEZONE", "Local"),
		BackupDir:      getEnvAllowEmpty("BACKUP_DIR", "./backups"),
		BackupAt:       getEnv("BACKUP_AT", "01:01"),
		BackupKeep:     positiveInt("BACKUP_KEEP", 14),
		PageSize:       positiveInt("PAGE_SIZE", 10),
	}

	if cfg.StorageDriver == "" {
		cfg.StorageDriver = "sqlite"
		if cfg.DatabaseURL != "" {
			cfg.StorageDriver = "postgres"
		}
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location resolves Timezone, which decides the calendar day sales are
// checked against.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("LEDGER_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

// getEnvAllowEmpty is getEnv for keys where an explicit empty value means
// "off".
func getEnvAllowEmpty(key string, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return strings.TrimSpace(val)
}

func positiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
