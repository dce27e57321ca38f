package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg := LoadConfig()
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want 8080", cfg.ServerPort)
	}
	if cfg.JWT.TTL != 24*time.Hour {
		t.Errorf("JWT.TTL = %v, want 24h", cfg.JWT.TTL)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if cfg.CORS.AllowedOrigins != nil {
		t.Errorf("AllowedOrigins = %v, want nil", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "TEXT")
	t.Setenv("DB_SSL", "true")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:4200, https://app.example.com ,")
	t.Setenv("LOGIN_WINDOW", "not-a-duration")

	cfg := LoadConfig()
	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want 9090", cfg.ServerPort)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
	if !cfg.Database.UseSSL {
		t.Error("Database.UseSSL = false, want true")
	}
	if cfg.JWT.TTL != 90*time.Minute {
		t.Errorf("JWT.TTL = %v, want 90m", cfg.JWT.TTL)
	}
	if got := strings.Join(cfg.CORS.AllowedOrigins, "|"); got != "http://localhost:4200|https://app.example.com" {
		t.Errorf("AllowedOrigins = %q", got)
	}
	if cfg.Login.Window != 15*time.Minute {
		t.Errorf("Login.Window = %v, want default 15m", cfg.Login.Window)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		ServerPort: 8080,
		LogFormat:  "json",
		JWT: JWTConfig{
			Secret: strings.Repeat("s", 32),
			TTL:    time.Hour,
		},
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.JWT.Secret = "" }, wantErr: "JWT_SECRET is required"},
		{name: "short secret", mutate: func(c *Config) { c.JWT.Secret = "short" }, wantErr: "at least 32 bytes"},
		{name: "zero ttl", mutate: func(c *Config) { c.JWT.TTL = 0 }, wantErr: "JWT_TTL"},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "LOG_FORMAT"},
		{name: "bad storage backend", mutate: func(c *Config) { c.Storage.Backend = "s3" }, wantErr: "STORAGE_BACKEND"},
		{name: "bad mq backend", mutate: func(c *Config) { c.MQ.Backend = "kafka" }, wantErr: "MQ_BACKEND"},
		{
			name: "limiter without attempts",
			mutate: func(c *Config) {
				c.Redis.Addr = "localhost:6379"
				c.Login.Window = time.Minute
			},
			wantErr: "LOGIN_MAX_ATTEMPTS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{LogFormat: "json", LogLevel: slog.LevelWarn}, &buf)

	logger.Info("dropped")
	logger.Warn("kept", "key", "value")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info record written at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"kept"`) || !strings.Contains(out, `"key":"value"`) {
		t.Errorf("unexpected json output: %s", out)
	}
}
