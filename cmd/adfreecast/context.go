package main

import (
	"os"
	"strings"
	"sync"

	"github.com/cesargomez89/adfreecast/internal/config"
	"github.com/cesargomez89/adfreecast/internal/logger"
	"github.com/cesargomez89/adfreecast/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *logger.Logger {
	out := os.Stderr
	cfg, err := c.ensureConfig()
	if err != nil {
		return logger.New(logger.Config{Output: out, Level: "info", Format: "text"})
	}
	return logger.New(logger.Config{Output: out, Level: cfg.LogLevel, Format: cfg.LogFormat})
}

// withStore opens the database for the duration of fn.
func (c *commandContext) withStore(fn func(cfg *config.Config, db *store.DB) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(cfg, db)
}
