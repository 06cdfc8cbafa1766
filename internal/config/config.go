package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	// GameTTL bounds how long an unfinished live game document is retained.
	GameTTL time.Duration
	// InviteTTL bounds how long a pending invitation may be answered.
	InviteTTL time.Duration

	// SendQueueSize is the per-connection outbound queue depth; a member
	// whose queue overflows is treated as disconnected.
	SendQueueSize int
	// WriteTimeout bounds a single websocket write so a broken peer cannot
	// stall the write pump.
	WriteTimeout time.Duration

	MessageDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:    ":8080",
		GameTTL:       24 * time.Hour,
		InviteTTL:     time.Hour,
		SendQueueSize: 64,
		WriteTimeout:  5 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MessageDir = strings.TrimSpace(os.Getenv("MESSAGE_DIR"))

	if v := strings.TrimSpace(os.Getenv("GAME_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.GameTTL = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("INVITE_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.InviteTTL = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("SEND_QUEUE_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SendQueueSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WRITE_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.WriteTimeout = d
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}
