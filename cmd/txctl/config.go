package main

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

type fileConfig struct {
	Addr        string `toml:"addr"`
	From        string `toml:"from"`
	To          string `toml:"to"`
	Amount      int    `toml:"amount"`
	Retries     int    `toml:"retries"`
	RaiseErrors bool   `toml:"raise_errors"`
	Verbose     bool   `toml:"verbose"`
}

type config struct {
	Addr        string
	From        string
	To          string
	Amount      int
	Retries     int
	RaiseErrors bool
	Verbose     bool
}

func defaultConfig() config {
	return config{
		Addr:        "127.0.0.1:6379",
		From:        "balance",
		To:          "savings",
		Amount:      1,
		Retries:     3,
		RaiseErrors: true,
	}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, errors.Wrap(err, "load txctl config")
	}

	if meta.IsDefined("addr") {
		if addr := strings.TrimSpace(raw.Addr); addr != "" {
			cfg.Addr = addr
		}
	}
	if meta.IsDefined("from") {
		cfg.From = strings.TrimSpace(raw.From)
	}
	if meta.IsDefined("to") {
		cfg.To = strings.TrimSpace(raw.To)
	}
	if meta.IsDefined("amount") {
		cfg.Amount = raw.Amount
	}
	if meta.IsDefined("retries") {
		cfg.Retries = raw.Retries
	}
	if meta.IsDefined("raise_errors") {
		cfg.RaiseErrors = raw.RaiseErrors
	}
	if meta.IsDefined("verbose") {
		cfg.Verbose = raw.Verbose
	}

	if cfg.From == "" || cfg.To == "" {
		return config{}, errors.New("txctl config: from and to keys must both be set")
	}
	if cfg.Amount <= 0 {
		return config{}, errors.New("txctl config: amount must be positive")
	}
	if cfg.Retries < 0 {
		return config{}, errors.New("txctl config: retries must not be negative")
	}
	return cfg, nil
}
