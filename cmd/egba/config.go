package main

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/user-none/egba/storage"
)

type ConfigCmd struct {
	Init  bool `xor:"action" help:"Write a default config.yaml if none exists."`
	Reset bool `xor:"action" help:"Replace config.yaml with the defaults."`
	Fix   bool `xor:"action" help:"Replace invalid values in config.yaml with defaults and save it."`
}

func (c *ConfigCmd) Run(app *App) error {
	switch {
	case c.Init:
		if err := storage.CreateConfigIfMissing(); err != nil {
			return err
		}
	case c.Reset:
		if err := storage.DeleteConfig(); err != nil {
			return err
		}
		if err := storage.CreateConfigIfMissing(); err != nil {
			return err
		}
		app.Config = storage.DefaultConfig()
	case c.Fix:
		// newApp already replaced invalid values in memory
		if err := storage.SaveConfig(app.Config); err != nil {
			return err
		}
	}

	path, err := storage.GetConfigPath()
	if err != nil {
		return err
	}
	base, err := storage.GetBaseDir()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(app.Config)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(app.Out, "# data directory: %s\n# config file: %s\n%s", base, path, data)
	return err
}
