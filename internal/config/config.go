// Package config reads server settings from the environment, with a .env
// file honored in development.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/DoyleJ11/metachess-backend/internal/session"
)

type Config struct {
	Addr string

	BaseTime        time.Duration
	Increment       time.Duration
	TickInterval    time.Duration
	DisconnectGrace time.Duration
	WaitingTimeout  time.Duration
	RematchGrace    time.Duration
	IdleTimeout     time.Duration
}

// Load fills the config from env vars; a missing .env is not an error.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Addr:            getenv("ADDR", ":8080"),
		BaseTime:        getDuration("BASE_TIME", 3*time.Minute),
		Increment:       getDuration("INCREMENT", time.Second),
		TickInterval:    getDuration("TICK_INTERVAL", time.Second),
		DisconnectGrace: getDuration("DISCONNECT_GRACE", 60*time.Second),
		WaitingTimeout:  getDuration("WAITING_TIMEOUT", 5*time.Minute),
		RematchGrace:    getDuration("REMATCH_GRACE", 5*time.Minute),
		IdleTimeout:     getDuration("IDLE_TIMEOUT", 30*time.Minute),
	}
}

func (c Config) Timing() session.Timing {
	return session.Timing{
		BaseTime:        c.BaseTime,
		Increment:       c.Increment,
		TickInterval:    c.TickInterval,
		DisconnectGrace: c.DisconnectGrace,
		WaitingTimeout:  c.WaitingTimeout,
		RematchGrace:    c.RematchGrace,
		IdleTimeout:     c.IdleTimeout,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
