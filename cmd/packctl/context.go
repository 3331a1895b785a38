package main

import (
	"context"
	"strings"
	"sync"

	"packtrack/infrastructure/bootstrap"
	"packtrack/infrastructure/config"
	"packtrack/infrastructure/logging"
)

type commandContext struct {
	configFlag *string
	actorFlag  *string

	appOnce sync.Once
	app     *bootstrap.App
	appErr  error
}

func newCommandContext(configFlag, actorFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, actorFlag: actorFlag}
}

// ensureApp loads configuration and opens the stores once per invocation.
func (c *commandContext) ensureApp(ctx context.Context) (*bootstrap.App, error) {
	c.appOnce.Do(func() {
		if err := config.LoadDotEnv(); err != nil {
			c.appErr = err
			return
		}
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.appErr = err
			return
		}
		if _, err := logging.Setup(logging.Options{
			Level:   cfg.Logging.Level,
			Format:  cfg.Logging.Format,
			Service: "packctl",
			Env:     cfg.Env,
			Output:  stderr(),
		}); err != nil {
			c.appErr = err
			return
		}
		c.app, c.appErr = bootstrap.Open(ctx, cfg)
	})
	return c.app, c.appErr
}

func (c *commandContext) actor() string {
	if c.actorFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.actorFlag)
}

func (c *commandContext) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}
