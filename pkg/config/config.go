package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"EnviroHelpBackend/pkg/validation"
)

// DefaultPort порт публичного HTTP сервера по умолчанию
const DefaultPort = 3000

// Config представляет конфигурацию приложения. Структура содержит вложенные структуры для различных компонентов приложения.
type Config struct {
	Server      ServerConfig  `json:"server" yaml:"server"`
	Ops         OpsConfig     `json:"ops" yaml:"ops"`
	GRPC        GRPCConfig    `json:"grpc" yaml:"grpc"`
	Logger      LoggerConfig  `json:"logger" yaml:"logger"`
	Metrics     MetricsConfig `json:"metrics" yaml:"metrics"`
	Tracing     TracingConfig `json:"tracing" yaml:"tracing"`
	Environment string        `json:"environment" yaml:"environment"`
}

// ServerConfig представляет конфигурацию публичного HTTP сервера.
// Таймауты задаются строками в формате time.ParseDuration.
type ServerConfig struct {
	Host            string `json:"host" yaml:"host"`
	Port            int    `json:"port" yaml:"port"`
	ReadTimeout     string `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    string `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     string `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout string `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// OpsConfig представляет конфигурацию служебного HTTP сервера (health, ready, live, metrics).
// Порт 0 отключает сервер.
type OpsConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// GRPCConfig представляет конфигурацию gRPC health сервера. Порт 0 отключает сервер.
type GRPCConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// LoggerConfig представляет конфигурацию логгера. Определяет уровень логирования и формат вывода логов.
type LoggerConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// MetricsConfig представляет конфигурацию Prometheus метрик
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// TracingConfig представляет конфигурацию OpenTelemetry
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	SampleRatio float64 `json:"sample_ratio" yaml:"sample_ratio"`
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            DefaultPort,
			ReadTimeout:     "5s",
			WriteTimeout:    "10s",
			IdleTimeout:     "120s",
			ShutdownTimeout: "30s",
		},
		Ops: OpsConfig{
			Host: "0.0.0.0",
			Port: 0,
		},
		GRPC: GRPCConfig{
			Host: "0.0.0.0",
			Port: 0,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "envirohelp",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			SampleRatio: 1.0,
		},
		Environment: "dev",
	}
}

// LoadConfig загружает конфигурацию в следующем порядке приоритета:
// 1. Загрузка значений по умолчанию
// 2. Загрузка из файла (если указан)
// 3. Переопределение значениями из переменных окружения
// 4. Валидация конфигурации
// Возвращает готовую конфигурацию или ошибку.
func LoadConfig(configFile string) (*Config, error) {
	config := Default()

	if configFile != "" {
		if err := loadConfigFromFile(config, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := loadConfigFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func loadConfigFromFile(config *Config, filename string) error {
	filename = os.ExpandEnv(filename)

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", filename)
	}

	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	// Сначала пробуем YAML, затем JSON
	if err := yaml.Unmarshal(content, config); err != nil {
		if jsonErr := json.Unmarshal(content, config); jsonErr != nil {
			return fmt.Errorf("failed to unmarshal config file as YAML or JSON: %w", err)
		}
	}

	return nil
}

func loadConfigFromEnv(config *Config) error {
	// PORT принят у PaaS платформ, SERVER_PORT имеет приоритет
	if err := envInt("PORT", &config.Server.Port); err != nil {
		return err
	}
	if err := envInt("SERVER_PORT", &config.Server.Port); err != nil {
		return err
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if err := envInt("OPS_PORT", &config.Ops.Port); err != nil {
		return err
	}
	if err := envInt("GRPC_PORT", &config.GRPC.Port); err != nil {
		return err
	}

	if level := os.Getenv("LOGGER_LEVEL"); level != "" {
		config.Logger.Level = level
	}
	if format := os.Getenv("LOGGER_FORMAT"); format != "" {
		config.Logger.Format = format
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		config.Environment = env
	}

	return nil
}

func envInt(key string, dst *int) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %s", key, raw)
	}
	*dst = v
	return nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	// Поддерживаются только: dev, staging, prod
	if err := validation.ValidateEnum(c.Environment, []string{"dev", "staging", "prod"}, "environment"); err != nil {
		return err
	}

	hosts := []struct {
		name string
		host string
		port int
	}{
		{"server", c.Server.Host, c.Server.Port},
		{"ops", c.Ops.Host, c.Ops.Port},
		{"grpc", c.GRPC.Host, c.GRPC.Port},
	}
	for _, h := range hosts {
		if err := validation.ValidateHost(h.host, h.name+".host"); err != nil {
			return err
		}
		if err := validation.ValidatePort(h.port, h.name+".port"); err != nil {
			return err
		}
	}

	if c.Ops.Port != 0 && c.Ops.Port == c.Server.Port {
		return fmt.Errorf("ops.port must differ from server.port")
	}
	if c.GRPC.Port != 0 && (c.GRPC.Port == c.Server.Port || c.GRPC.Port == c.Ops.Port) {
		return fmt.Errorf("grpc.port must differ from server.port and ops.port")
	}

	durations := []struct {
		name  string
		value string
	}{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.idle_timeout", c.Server.IdleTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
	}
	for _, d := range durations {
		if err := validation.ValidateDuration(d.value, d.name); err != nil {
			return err
		}
	}

	if c.Logger.Level == "" {
		return fmt.Errorf("logger.level is required")
	}
	if c.Logger.Format != "" {
		if err := validation.ValidateEnum(c.Logger.Format, []string{"json", "console"}, "logger.format"); err != nil {
			return err
		}
	}

	return validation.ValidateRatio(c.Tracing.SampleRatio, "tracing.sample_ratio")
}

// Address возвращает адрес публичного сервера в формате host:port
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Address возвращает адрес служебного сервера в формате host:port
func (o OpsConfig) Address() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Address возвращает адрес gRPC сервера в формате host:port
func (g GRPCConfig) Address() string {
	return net.JoinHostPort(g.Host, strconv.Itoa(g.Port))
}

// Timeouts возвращает разобранные таймауты сервера. Пустые значения дают 0.
// Значения уже проверены в Validate, поэтому ошибки разбора игнорируются.
func (s ServerConfig) Timeouts() (read, write, idle, shutdown time.Duration) {
	read, _ = time.ParseDuration(orZero(s.ReadTimeout))
	write, _ = time.ParseDuration(orZero(s.WriteTimeout))
	idle, _ = time.ParseDuration(orZero(s.IdleTimeout))
	shutdown, _ = time.ParseDuration(orZero(s.ShutdownTimeout))
	return read, write, idle, shutdown
}

func orZero(s string) string {
	if s == "" {
		return "0s"
	}
	return s
}

// Save сохраняет конфигурацию в файл в формате YAML.
// Автоматически создает директорию, если она не существует.
func (c *Config) Save(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	content, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(filename, content, 0644)
}
