package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvTesting     = "testing"
	EnvProduction  = "production"
)

type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	Debug       bool
	LogLevel    string
	ServerPort  int
	Database    DatabaseConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "usermgmt"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "usermgmt_db"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),
	}

	return Config{
		AppName:     getEnv("APP_NAME", "User Management API"),
		AppVersion:  getEnv("APP_VERSION", "1.0.0"),
		Environment: getEnvironment(),
		Debug:       getEnvBool("DEBUG", false),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		ServerPort:  getEnvInt("SERVER_PORT", 8080),
		Database:    dbConfig,
	}
}

func getEnvironment() string {
	switch env := getEnv("ENVIRONMENT", EnvDevelopment); env {
	case EnvDevelopment, EnvTesting, EnvProduction:
		return env
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
