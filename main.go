package main

import (
	"fmt"
	"os"
	"time"

	tg "github.com/amarnathcjd/gogram/telegram"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"modbot/config"
	"modbot/modules"
	"modbot/modules/db"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger. With a stream port configured the
// output is also teed into the network logger; the returned func flushes
// and stops it.
func newLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level),
	}

	var nl *NetworkLogger
	if cfg.LogStreamPort != "" {
		nl, err = NewNetworkLogger(cfg.LogStreamPort, logStreamFile, logStreamMaxSize)
		if err != nil {
			return nil, nil, err
		}
		if err := nl.Start(); err != nil {
			return nil, nil, err
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), nl, level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	stop := func() {
		logger.Sync()
		if nl != nil {
			nl.Stop()
		}
	}
	return logger, stop, nil
}

func clientConfig(cfg *config.Config) tg.ClientConfig {
	cc := tg.ClientConfig{
		AppID:    cfg.AppID,
		AppHash:  cfg.AppHash,
		LogLevel: tg.LogInfo,
		Session:  cfg.SessionFile,
	}
	switch cfg.LogLevel {
	case "debug":
		cc.LogLevel = tg.LogDebug
	case "warn":
		cc.LogLevel = tg.LogWarn
	case "error":
		cc.LogLevel = tg.LogError
	}
	return cc
}

func runBot(cfg *config.Config) error {
	started := time.Now()
	if err := cfg.ValidateClient(); err != nil {
		return err
	}

	logger, stop, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer stop()

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := tg.NewClient(clientConfig(cfg))
	if err != nil {
		return fmt.Errorf("new client: %w", err)
	}
	client.LogColor(false)

	if _, err := client.Conn(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := client.LoginBot(cfg.BotToken); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if err := modules.Setup(client, cfg, store, logger.Named("bot")); err != nil {
		return err
	}
	defer modules.Shutdown()
	modules.RegisterHandlers()

	logger.Info("authenticated",
		zap.String("username", client.Me().Username),
		zap.Duration("startup", time.Since(started)),
		zap.Int("modules", len(modules.Mods.Mod)))
	client.Idle()
	return nil
}
