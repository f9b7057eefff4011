package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFiles are loaded, when present, before the environment is parsed
var DefaultEnvFiles = []string{".env", ".env.local"}

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Log      LogConfig
	Report   ReportConfig
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port int `env:"SERVER_PORT" envDefault:"8080"`
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Host         string `env:"DB_HOST" envDefault:"localhost"`
	Port         int    `env:"DB_PORT" envDefault:"5432"`
	Username     string `env:"DB_USERNAME" envDefault:"postgres"`
	Password     string `env:"DB_PASSWORD" envDefault:"password"`
	DBName       string `env:"DB_NAME" envDefault:"roster"`
	SSLMode      string `env:"DB_SSLMODE" envDefault:"disable"`
	TestDBName   string `env:"TEST_DB_NAME" envDefault:"roster_test"` // Separate database for testing
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
}

// AuthConfig holds the operator identity configuration
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET" envDefault:"your-secret-key-here"`
	Disabled  bool   `env:"AUTH_DISABLED" envDefault:"false"`
}

// LogConfig holds the logger configuration
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// ReportConfig lists the units rendered as rows of the readiness report
type ReportConfig struct {
	Units []string `env:"REPORT_UNITS" envSeparator:"," envDefault:"Управління роти,1-й взвод,2-й взвод,3-й взвод"`
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// LoadConfig loads optional env files and then parses the environment
func LoadConfig() (*Config, error) {
	if err := loadEnvFiles(DefaultEnvFiles); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}
	return Parse()
}

// Parse reads the configuration from the current process environment only
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}
