// Package config содержит логику чтения конфигурации сервиса Whopify.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса Whopify.
// При пустом DatabaseURI сервис работает на файловом хранилище StorePath.
type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	DatabaseURI   string `env:"DATABASE_URI"`
	StorePath     string `env:"STORE_PATH"`
	GatewayAPIURL string `env:"GATEWAY_API_URL"`
	AdminToken    string `env:"ADMIN_TOKEN"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envStorePath := cfg.StorePath
	envGatewayAPIURL := cfg.GatewayAPIURL
	envAdminToken := cfg.AdminToken

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.StorePath, "f", "whopify.db", "file store path")
	flag.StringVar(&cfg.GatewayAPIURL, "g", "", "payment gateway API address")
	flag.StringVar(&cfg.AdminToken, "t", "", "admin panel token")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envStorePath != "" {
		cfg.StorePath = envStorePath
	}
	if envGatewayAPIURL != "" {
		cfg.GatewayAPIURL = envGatewayAPIURL
	}
	if envAdminToken != "" {
		cfg.AdminToken = envAdminToken
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.StorePath == "" {
		cfg.StorePath = "whopify.db"
	}

	return cfg, nil
}
