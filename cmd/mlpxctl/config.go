package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"mlpx/internal/activation"
	"mlpx/internal/storage"
)

// Config is the optional YAML configuration. Command-line flags override it.
type Config struct {
	Store             string  `yaml:"store" validate:"oneof=memory sqlite"`
	DBPath            string  `yaml:"db_path" validate:"required_if=Store sqlite"`
	LogLevel          string  `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFormat         string  `yaml:"log_format" validate:"omitempty,oneof=auto text json"`
	DefaultActivation string  `yaml:"default_activation" validate:"required"`
	Epsilon           float64 `yaml:"epsilon" validate:"gte=0"`
}

func defaultConfig() Config {
	return Config{
		Store:             storage.DefaultStoreKind(),
		DBPath:            "mlpx.db",
		LogLevel:          "warn",
		LogFormat:         "auto",
		DefaultActivation: activation.Default,
		Epsilon:           1e-4,
	}
}

var configValidate = validator.New()

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q (got %v)", yamlName(fe.Field()), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func yamlName(field string) string {
	switch field {
	case "DBPath":
		return "db_path"
	case "LogLevel":
		return "log_level"
	case "LogFormat":
		return "log_format"
	case "DefaultActivation":
		return "default_activation"
	default:
		return strings.ToLower(field)
	}
}
