package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"reelsmith/internal/api"
	"reelsmith/internal/config"
)

type commandContext struct {
	configFlag *string
	urlFlag    *string
	userFlag   *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, urlFlag, userFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		urlFlag:    urlFlag,
		userFlag:   userFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// client builds an API client for the configured daemon. --url overrides the
// address derived from paths.api_bind.
func (c *commandContext) client() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	var opts []api.ClientOption
	if c.userFlag != nil && strings.TrimSpace(*c.userFlag) != "" {
		opts = append(opts, api.WithUserID(strings.TrimSpace(*c.userFlag)))
	}
	if c.urlFlag != nil && strings.TrimSpace(*c.urlFlag) != "" {
		return api.NewClient(strings.TrimSpace(*c.urlFlag), cfg.Paths.APIToken, opts...)
	}
	return api.NewClientFromConfig(cfg, opts...)
}

func (c *commandContext) withClient(fn func(*api.Client) error) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	return wrapDaemonError(fn(client))
}

func wrapDaemonError(err error) error {
	if errors.Is(err, api.ErrDaemonUnavailable) {
		return fmt.Errorf("connect to daemon: %w; start it with `reelsmith start`", err)
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
