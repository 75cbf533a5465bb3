package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"trivia-room-service/internal/domain"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Questions struct {
		Bank string `yaml:"bank"`
		TTL  string `yaml:"ttl"`
	} `yaml:"questions"`
	Game struct {
		Capacity          int    `yaml:"capacity"`
		MinPlayers        int    `yaml:"minPlayers"`
		Rounds            int    `yaml:"rounds"`
		NextQuestionDelay string `yaml:"nextQuestionDelay"`
		AutoStart         bool   `yaml:"autoStart"`
	} `yaml:"game"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Load reads YAML config from path. A missing file yields the zero config.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Rules overlays the game section on the default rules.
func (c Config) Rules() (domain.Rules, error) {
	rules := domain.DefaultRules()
	if c.Game.Capacity > 0 {
		rules.Capacity = c.Game.Capacity
	}
	if c.Game.MinPlayers > 0 {
		rules.MinPlayers = c.Game.MinPlayers
	}
	if c.Game.Rounds > 0 {
		rules.Rounds = c.Game.Rounds
	}
	rules.NextQuestionDelay = TTLDuration(c.Game.NextQuestionDelay, rules.NextQuestionDelay)
	rules.AutoStart = c.Game.AutoStart

	if rules.MinPlayers > rules.Capacity {
		return rules, fmt.Errorf("game.minPlayers %d exceeds game.capacity %d", rules.MinPlayers, rules.Capacity)
	}
	return rules, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
