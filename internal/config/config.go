package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/DoyleJ11/element-battle-backend/internal/engine"
)

type Config struct {
	Addr           string
	Env            string
	AllowedOrigins []string

	ArbiterURL     string
	ArbiterAPIKey  string
	ArbiterModel   string
	ArbiterTimeout time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	DatabaseURL string

	ReadIdleTimeout time.Duration
	EventsPerSecond float64
	EventBurst      int

	// RoundType pins every round to one type; empty means random.
	RoundType engine.RoundType
}

func (c Config) Production() bool { return c.Env == "production" }

// Load reads .env files (missing ones are fine) and then the process
// environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup. Every malformed variable is reported,
// not just the first.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	var errs error
	duration := func(key string, def time.Duration) time.Duration {
		d, err := time.ParseDuration(get(key, def.String()))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return d
	}

	cfg := Config{
		Addr:            get("ADDR", ":8080"),
		Env:             get("APP_ENV", "development"),
		AllowedOrigins:  list(get("ALLOWED_ORIGINS", "http://localhost:3000")),
		ArbiterURL:      get("ARBITER_URL", ""),
		ArbiterAPIKey:   get("ARBITER_API_KEY", ""),
		ArbiterModel:    get("ARBITER_MODEL", "gpt-4o-mini"),
		ArbiterTimeout:  duration("ARBITER_TIMEOUT", 3*time.Second),
		KafkaBrokers:    list(get("KAFKA_BROKERS", "")),
		KafkaTopic:      get("KAFKA_TOPIC", "element-battles"),
		DatabaseURL:     get("DATABASE_URL", ""),
		ReadIdleTimeout: duration("READ_IDLE_TIMEOUT", 5*time.Minute),
		EventsPerSecond: 10,
		EventBurst:      20,
	}

	if v := get("EVENTS_PER_SECOND", ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("EVENTS_PER_SECOND: must be a positive number, got %q", v))
		} else {
			cfg.EventsPerSecond = f
		}
	}
	if v := get("EVENT_BURST", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("EVENT_BURST: must be a positive integer, got %q", v))
		} else {
			cfg.EventBurst = n
		}
	}
	if v := get("ROUND_TYPE", ""); v != "" {
		rt, ok := engine.ParseRoundType(v)
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("ROUND_TYPE: unknown round type %q", v))
		} else {
			cfg.RoundType = rt
		}
	}

	return cfg, errs
}

func list(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
