package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv сбрасывает переменные окружения, которые читает LoadConfig
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "SERVER_PORT", "SERVER_HOST", "OPS_PORT", "GRPC_PORT",
		"LOGGER_LEVEL", "LOGGER_FORMAT", "ENVIRONMENT",
	} {
		t.Setenv(key, "")
	}
}

// TestLoadConfig_DefaultValues проверяет загрузку значений по умолчанию
func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 3000, config.Server.Port)
	assert.Equal(t, "0.0.0.0:3000", config.Server.Address())
	assert.Equal(t, 0, config.Ops.Port)
	assert.Equal(t, 0, config.GRPC.Port)
	assert.Equal(t, "info", config.Logger.Level)
	assert.Equal(t, "json", config.Logger.Format)
	assert.Equal(t, "dev", config.Environment)
	assert.True(t, config.Metrics.Enabled)
	assert.Equal(t, "envirohelp", config.Metrics.Namespace)
	assert.False(t, config.Tracing.Enabled)

	read, write, idle, shutdown := config.Server.Timeouts()
	assert.Equal(t, 5*time.Second, read)
	assert.Equal(t, 10*time.Second, write)
	assert.Equal(t, 120*time.Second, idle)
	assert.Equal(t, 30*time.Second, shutdown)
}

// TestLoadConfig_FileOverride проверяет переопределение значений по умолчанию значениями из файла
func TestLoadConfig_FileOverride(t *testing.T) {
	clearEnv(t)

	tempFile := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `server:
  host: "127.0.0.1"
  port: 8081
  shutdown_timeout: "5s"
ops:
  port: 9090
logger:
  level: "debug"
  format: "console"
environment: "prod"
`
	require.NoError(t, os.WriteFile(tempFile, []byte(configContent), 0644))

	config, err := LoadConfig(tempFile)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 8081, config.Server.Port)
	assert.Equal(t, 9090, config.Ops.Port)
	assert.Equal(t, "debug", config.Logger.Level)
	assert.Equal(t, "console", config.Logger.Format)
	assert.Equal(t, "prod", config.Environment)

	// Значения, которых нет в файле, остаются по умолчанию
	assert.Equal(t, "10s", config.Server.WriteTimeout)

	_, _, _, shutdown := config.Server.Timeouts()
	assert.Equal(t, 5*time.Second, shutdown)
}

// TestLoadConfig_JSONFile проверяет загрузку конфигурации в формате JSON
func TestLoadConfig_JSONFile(t *testing.T) {
	clearEnv(t)

	tempFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tempFile, []byte(`{"server":{"port":4000},"environment":"staging"}`), 0644))

	config, err := LoadConfig(tempFile)
	require.NoError(t, err)
	assert.Equal(t, 4000, config.Server.Port)
	assert.Equal(t, "staging", config.Environment)
}

// TestLoadConfig_EnvOverride проверяет приоритет переменных окружения
func TestLoadConfig_EnvOverride(t *testing.T) {
	clearEnv(t)

	tempFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tempFile, []byte("server:\n  port: 8081\n"), 0644))

	t.Setenv("PORT", "5000")
	t.Setenv("OPS_PORT", "9100")
	t.Setenv("GRPC_PORT", "9200")
	t.Setenv("LOGGER_LEVEL", "warn")
	t.Setenv("ENVIRONMENT", "staging")

	config, err := LoadConfig(tempFile)
	require.NoError(t, err)
	assert.Equal(t, 5000, config.Server.Port)
	assert.Equal(t, 9100, config.Ops.Port)
	assert.Equal(t, 9200, config.GRPC.Port)
	assert.Equal(t, "warn", config.Logger.Level)
	assert.Equal(t, "staging", config.Environment)

	// SERVER_PORT важнее PORT
	t.Setenv("SERVER_PORT", "6000")
	config, err = LoadConfig(tempFile)
	require.NoError(t, err)
	assert.Equal(t, 6000, config.Server.Port)
}

// TestLoadConfig_Errors проверяет ошибки загрузки
func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "non numeric port", env: map[string]string{"PORT": "abc"}},
		{name: "port out of range", env: map[string]string{"SERVER_PORT": "70000"}},
		{name: "negative ops port", env: map[string]string{"OPS_PORT": "-1"}},
		{name: "unknown environment", env: map[string]string{"ENVIRONMENT": "qa"}},
		{name: "ops port equals server port", env: map[string]string{"SERVER_PORT": "3000", "OPS_PORT": "3000"}},
		{name: "grpc port equals ops port", env: map[string]string{"OPS_PORT": "9000", "GRPC_PORT": "9000"}},
		{name: "invalid logger format", env: map[string]string{"LOGGER_FORMAT": "xml"}},
		{name: "missing file", file: "/nonexistent/config.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			config, err := LoadConfig(tt.file)
			assert.Error(t, err)
			assert.Nil(t, config)
		})
	}
}

// TestValidate_Timeouts проверяет разбор таймаутов
func TestValidate_Timeouts(t *testing.T) {
	config := Default()
	config.Server.ReadTimeout = "soon"
	assert.Error(t, config.Validate())

	config = Default()
	config.Server.IdleTimeout = ""
	require.NoError(t, config.Validate())
	_, _, idle, _ := config.Server.Timeouts()
	assert.Equal(t, time.Duration(0), idle)
}

// TestValidate_EphemeralPort проверяет, что порт 0 допустим для публичного сервера
func TestValidate_EphemeralPort(t *testing.T) {
	config := Default()
	config.Server.Port = 0
	assert.NoError(t, config.Validate())
}

// TestConfig_Save проверяет сохранение и повторную загрузку конфигурации
func TestConfig_Save(t *testing.T) {
	clearEnv(t)

	config := Default()
	config.Server.Port = 3100
	config.Ops.Port = 9191

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, config.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3100, loaded.Server.Port)
	assert.Equal(t, 9191, loaded.Ops.Port)
}
