package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"cardfarm/internal/bot"
)

// ValidateCmd checks the process config and every bot config without
// starting anything.
type ValidateCmd struct {
	Config string `short:"c" default:"cardfarm.hcl" help:"Path to the process config file"`
}

func (c *ValidateCmd) Run() error {
	cfg, err := LoadProcessConfig(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", c.Config, err)
	}
	fmt.Printf("%s: OK\n", c.Config)

	logger := log.NewWithOptions(os.Stderr, log.Options{Level: log.WarnLevel})

	entries, err := os.ReadDir(cfg.Farm.BotsDir)
	if err != nil {
		return fmt.Errorf("read bots dir: %w", err)
	}

	failed := 0
	checked := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".xml") {
			continue
		}
		checked++

		path := filepath.Join(cfg.Farm.BotsDir, entry.Name())
		botCfg, err := bot.LoadConfig(path, logger)
		if err != nil {
			fmt.Printf("%s: %v\n", path, err)
			failed++
			continue
		}

		state := "enabled"
		if !botCfg.Enabled {
			state = "disabled"
		}
		fmt.Printf("%s: OK (%s)\n", path, state)
	}

	if checked == 0 {
		fmt.Printf("no bot configs found in %s\n", cfg.Farm.BotsDir)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d bot configs are invalid", failed, checked)
	}
	return nil
}
