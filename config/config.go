package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Admin     AdminConfig
	Database  DatabaseConfig
	Schedule  ScheduleConfig
	Browser   BrowserConfig
	Artifacts ArtifactConfig
	Ops       OpsConfig
}

type AppConfig struct {
	Environment string
}

// AdminConfig holds credentials and the entry point for the payment admin
// console. Credentials are opaque strings typed into the login form.
type AdminConfig struct {
	BaseURL  string
	Email    string
	Password string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type ScheduleConfig struct {
	// Timezone is the fixed civil timezone every today/yesterday computation
	// goes through. The server clock is never consulted directly.
	Timezone      string
	ImportCron    string
	SubmitCron    string
	ExclusionFile string
}

type BrowserConfig struct {
	Headless    bool
	StepTimeout time.Duration
	// SubmitWait bounds how long a settlement submission may take to resolve
	// into success or no-eligible before it is classified as uncertain.
	SubmitWait  time.Duration
	DownloadDir string
}

type ArtifactConfig struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	BaseURL         string // CloudFront or S3 direct URL
}

type OpsConfig struct {
	Port    string
	GinMode string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		App: AppConfig{
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Admin: AdminConfig{
			BaseURL:  getEnv("ADMIN_BASE_URL", "https://admin.shurjopayment.com/"),
			Email:    getEnv("COMPANY_EMAIL", ""),
			Password: getEnv("COMPANY_PASSWORD", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", ""),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", ""),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Schedule: ScheduleConfig{
			Timezone:      getEnv("SCHEDULE_TZ", "Asia/Dhaka"),
			ImportCron:    getEnv("IMPORT_CRON", "0 1 * * *"),
			SubmitCron:    getEnv("SUBMIT_CRON", "0 2 * * *"),
			ExclusionFile: getEnv("EXCLUSION_FILE", ""),
		},
		Browser: BrowserConfig{
			Headless:    parseBool(getEnv("BROWSER_HEADLESS", "true")),
			StepTimeout: parseDuration(getEnv("BROWSER_STEP_TIMEOUT", "30s"), 30*time.Second),
			SubmitWait:  parseDuration(getEnv("BROWSER_SUBMIT_WAIT", "60s"), 60*time.Second),
			DownloadDir: getEnv("DOWNLOAD_DIR", "downloads"),
		},
		Artifacts: ArtifactConfig{
			Region:          getEnv("AWS_REGION", "ap-southeast-1"),
			Bucket:          getEnv("ARTIFACT_S3_BUCKET", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BaseURL:         getEnv("ARTIFACT_BASE_URL", ""),
		},
		Ops: OpsConfig{
			Port:    getEnv("OPS_PORT", "8080"),
			GinMode: getEnv("GIN_MODE", "release"),
		},
	}

	return config, nil
}

// Validate reports the first missing required setting. Binaries call it
// before opening any browser or database session.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"COMPANY_EMAIL", c.Admin.Email},
		{"COMPANY_PASSWORD", c.Admin.Password},
		{"DB_USER", c.Database.User},
		{"DB_NAME", c.Database.DBName},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("missing required configuration: %s", r.name)
		}
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid SCHEDULE_TZ %q: %w", c.Schedule.Timezone, err)
	}
	return nil
}

// Location resolves the configured civil timezone.
func (c *ScheduleConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return true
	}
	return b
}
