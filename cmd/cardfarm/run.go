package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"cardfarm/cmd/cardfarm/shared"
	"cardfarm/internal/bot"
	"cardfarm/internal/farm"
	"cardfarm/internal/monitor"
	"cardfarm/internal/platform"
	"cardfarm/internal/web"
)

// RunCmd runs the farming process: one session per enabled bot config.
type RunCmd struct {
	Config string `short:"c" default:"cardfarm.hcl" help:"Path to the process config file"`
	Debug  bool   `short:"d" help:"Enable debug logging"`
}

func (c *RunCmd) Run() error {
	cfg, err := LoadProcessConfig(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	debug := c.Debug || cfg.Farm.LogLevel == "debug"

	zl := shared.SetupLogger(debug)
	if cfg.Farm.LogFile != "" {
		f, err := os.OpenFile(cfg.Farm.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		zl = shared.SetupFileLogger(debug, f)
	}

	level, err := log.ParseLevel(cfg.Farm.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	if debug {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})

	ctx := shared.SetupSignalHandlerWithLogger(zl)

	if err := os.MkdirAll(cfg.Farm.SentryDir, 0o700); err != nil {
		return fmt.Errorf("create sentry dir: %w", err)
	}

	clock := quartz.NewReal()
	registry := bot.NewRegistry(logger)
	throttle := platform.NewConnectThrottle(clock, cfg.ConnectInterval())
	input := bot.NewConsoleInput()

	timings := farm.Options{
		FarmingDelay:         cfg.FarmingDelay(),
		MaxFarmingTime:       cfg.MaxFarmingTime(),
		HoursToBump:          float32(cfg.Farm.HoursToBump),
		MaxGamesConcurrently: cfg.Farm.MaxGamesConcurrently,
	}

	exit := func() {
		zl.Info().Msg("exit requested over chat")
		os.Exit(0)
	}
	restart := func() {
		zl.Info().Msg("restart requested over chat")
		registry.ShutdownAll()
		exe, err := os.Executable()
		if err != nil {
			zl.Error().Err(err).Msg("cannot locate executable, exiting instead")
			os.Exit(1)
		}
		if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
			zl.Error().Err(err).Msg("re-exec failed")
			os.Exit(1)
		}
	}

	// Declared before assignment so the chat !start command can close over
	// the factory itself.
	var startBot func(name string) error
	startBot = func(name string) error {
		if registry.Get(name) != nil {
			return fmt.Errorf("bot %s is already running", name)
		}

		botCfg, err := bot.LoadConfig(filepath.Join(cfg.Farm.BotsDir, name+".xml"), logger)
		if err != nil {
			return err
		}

		client := platform.NewWSClient(cfg.Farm.PlatformURL, zl.With().Str("bot", name).Logger())
		webClient := web.NewHTTPClient(cfg.Farm.CommunityURL, cfg.Farm.APIURL, logger.With("bot", name))

		b := bot.NewBot(name, botCfg, bot.Deps{
			Client:      client,
			Web:         webClient,
			Registry:    registry,
			Throttle:    throttle,
			Input:       input,
			Logger:      logger,
			Clock:       clock,
			FarmTimings: timings,
			SentryDir:   cfg.Farm.SentryDir,
		})
		if !registry.InsertIfAbsent(name, b) {
			return fmt.Errorf("bot %s is already running", name)
		}
		b.Commands().SetProcessHooks(exit, restart)
		b.Commands().SetBotFactory(startBot)
		b.Start()
		return nil
	}

	entries, err := os.ReadDir(cfg.Farm.BotsDir)
	if err != nil {
		return fmt.Errorf("read bots dir: %w", err)
	}

	started := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".xml") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".xml")

		botCfg, err := bot.LoadConfig(filepath.Join(cfg.Farm.BotsDir, entry.Name()), logger)
		if err != nil {
			zl.Error().Err(err).Str("bot", name).Msg("skipping bot with invalid config")
			continue
		}
		if !botCfg.Enabled {
			zl.Info().Str("bot", name).Msg("bot is disabled, not starting")
			continue
		}

		if err := startBot(name); err != nil {
			zl.Error().Err(err).Str("bot", name).Msg("bot failed to start")
			continue
		}
		started++
	}

	if started == 0 {
		zl.Warn().Msg("no enabled bots found, only chat-started bots will run")
	}
	zl.Info().Int("bots", started).Msg("farming process is up")

	if cfg.Farm.Monitor {
		mon := monitor.New(registry, os.Stdout, clock, cfg.MonitorRefresh())
		go mon.Run(ctx)
	}

	<-ctx.Done()
	registry.ShutdownAll()
	zl.Info().Msg("all bots stopped")
	return nil
}
