// Copyright 2026 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy
// of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

// Package config holds the configuration of the spassr server, with defaults,
// environment overrides, and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/thediveo/spassr/people"
	"github.com/thediveo/spassr/querycache"
)

// Environment variables overriding the defaults.
const (
	EnvMode     = "SPASSR_ENV"
	EnvAddr     = "SPASSR_ADDR"
	EnvWebDir   = "SPASSR_WEB_DIR"
	EnvLogLevel = "SPASSR_LOG_LEVEL"
)

// Defaults.
const (
	DefaultAddr   = ":5173"
	DefaultWebDir = "web"
	DefaultIndex  = "index.html"
)

var (
	// ErrInvalidMode is returned for modes other than development and
	// production.
	ErrInvalidMode = errors.New("mode must be either development or production")
	// ErrInvalidStaleAfter is returned for non-positive staleness windows.
	ErrInvalidStaleAfter = errors.New("staleness window must be positive")
	// ErrInvalidTick is returned for non-positive tick intervals.
	ErrInvalidTick = errors.New("tick interval must be positive")
)

// Config is the complete server configuration.
type Config struct {
	// Addr is the address to listen on.
	Addr string
	// Development selects the development mode: the document template is
	// read from WebDir on every request, instead of using the embedded one.
	Development bool
	// WebDir is the directory of the web sources in development mode.
	WebDir string
	// Index is the name of the document template inside the web assets.
	Index string
	// TickInterval is the interval at which the people age.
	TickInterval time.Duration
	// StaleAfter is the staleness window of the server-seeded people query.
	StaleAfter time.Duration
	// LogLevel is the minimum level to log at.
	LogLevel slog.Level
	// Redirects maps moved paths to their new locations.
	Redirects map[string]string
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Addr:         DefaultAddr,
		WebDir:       DefaultWebDir,
		Index:        DefaultIndex,
		TickInterval: people.DefaultTickInterval,
		StaleAfter:   querycache.DefaultStaleAfter,
		LogLevel:     slog.LevelInfo,
		Redirects:    map[string]string{"/index.html": "/"},
	}
}

// FromEnv returns the default configuration updated from the environment.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	c := Defaults()
	if mode, ok := lookup(EnvMode); ok {
		switch strings.ToLower(mode) {
		case "development", "dev":
			c.Development = true
		case "production", "prod", "":
			c.Development = false
		default:
			return Config{}, fmt.Errorf("%s=%q: %w", EnvMode, mode, ErrInvalidMode)
		}
	}
	if addr, ok := lookup(EnvAddr); ok && addr != "" {
		c.Addr = addr
	}
	if dir, ok := lookup(EnvWebDir); ok && dir != "" {
		c.WebDir = dir
	}
	if level, ok := lookup(EnvLogLevel); ok && level != "" {
		if err := c.LogLevel.UnmarshalText([]byte(level)); err != nil {
			return Config{}, fmt.Errorf("%s=%q: %w", EnvLogLevel, level, err)
		}
	}
	return c, nil
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.StaleAfter <= 0 {
		return ErrInvalidStaleAfter
	}
	if c.TickInterval <= 0 {
		return ErrInvalidTick
	}
	if c.Development && c.WebDir == "" {
		return errors.New("development mode requires a web directory")
	}
	return nil
}

// Logger returns a new structured logger for the configuration: a text
// logger in development mode, a JSON logger otherwise.
func (c Config) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.Development {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
