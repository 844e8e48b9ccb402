package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"playresolver/internal/app"
)

type commandContext struct {
	configFlag  *string
	envFileFlag *string

	configOnce sync.Once
	env        app.Config
	resolver   app.Resolver
	configErr  error
}

func newCommandContext(configFlag, envFileFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		envFileFlag: envFileFlag,
	}
}

// ensureConfig loads the dotenv file, the environment and the resolver file
// once per process.
func (c *commandContext) ensureConfig() (app.Resolver, error) {
	c.configOnce.Do(func() {
		if err := loadDotEnv(flagValue(c.envFileFlag)); err != nil {
			c.configErr = err
			return
		}
		c.env = app.LoadConfig()
		if path := flagValue(c.configFlag); path != "" {
			c.env.ResolverConfigPath = path
		}
		resolver, err := app.LoadResolverFile(c.env.ResolverConfigPath, c.env.UserAgent)
		if err != nil {
			c.configErr = err
			return
		}
		c.resolver = resolver
	})
	return c.resolver, c.configErr
}

func (c *commandContext) logger() *slog.Logger {
	return newLogger(c.env.LogLevel, c.env.LogFormat)
}

// loadDotEnv reads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, options))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
