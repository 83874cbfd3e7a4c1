package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server      ServerConfig      `json:"server"`
	Database    DatabaseConfig    `json:"database"`
	Auth        AuthConfig        `json:"auth"`
	FileStorage FileStorageConfig `json:"file_storage"`
	Outbox      OutboxConfig      `json:"outbox"`
	Logging     LoggingConfig     `json:"logging"`
}

type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type DatabaseConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	User           string `json:"user"`
	Password       string `json:"password"`
	DBName         string `json:"db_name"`
	SSLMode        string `json:"ssl_mode"`
	MaxConnections int    `json:"max_connections"`
	MaxIdleConns   int    `json:"max_idle_conns"`
}

type AuthConfig struct {
	JWTSecret        string `json:"jwt_secret"`
	TokenExpiryHours int    `json:"token_expiry_hours"`
}

type FileStorageConfig struct {
	BasePath          string   `json:"base_path"`
	Subfolder         string   `json:"subfolder"`
	MaxFileSizeMB     int      `json:"max_file_size_mb"`
	AllowedExtensions []string `json:"allowed_extensions"`
}

type OutboxConfig struct {
	Schedule    string `json:"schedule"`
	BatchSize   int    `json:"batch_size"`
	MaxAttempts int    `json:"max_attempts"`
}

type LoggingConfig struct {
	Environment string `json:"environment"`
}

// LoadConfig reads the JSON config file when present, then applies
// environment variable overrides on top.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			DBName:         "document_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
		},
		Auth: AuthConfig{
			TokenExpiryHours: 8,
		},
		FileStorage: FileStorageConfig{
			BasePath:      "./uploads",
			MaxFileSizeMB: 50,
		},
		Outbox: OutboxConfig{
			Schedule:    "*/5 * * * * *",
			BatchSize:   100,
			MaxAttempts: 5,
		},
		Logging: LoggingConfig{
			Environment: "development",
		},
	}

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is not configured")
	}
	return config, nil
}

func overrideWithEnv(config *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			config.Server.Port = p
		}
	}
	if v := os.Getenv("DATABASE_HOST"); v != "" {
		config.Database.Host = v
	}
	if v := os.Getenv("DATABASE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			config.Database.Port = p
		}
	}
	if v := os.Getenv("DATABASE_USER"); v != "" {
		config.Database.User = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		config.Database.Password = v
	}
	if v := os.Getenv("DATABASE_DBNAME"); v != "" {
		config.Database.DBName = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("FILE_STORAGE_PATH"); v != "" {
		config.FileStorage.BasePath = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		config.Logging.Environment = v
	}
}

// GetDatabaseURL returns the database connection string.
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server listen address.
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TokenExpiry returns the configured token lifetime.
func (c *AuthConfig) TokenExpiry() time.Duration {
	return time.Duration(c.TokenExpiryHours) * time.Hour
}
