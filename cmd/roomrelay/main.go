// Command roomrelay runs the chat room relay.
//
//	roomrelay [port]
package main

import (
	"context"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/roomrelay/internal/app"
	"github.com/luciancaetano/roomrelay/ws"
)

func main() {
	envErr := app.LoadDotEnv()
	cfg := app.LoadConfig(os.Args[1:])

	logger := app.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	if envErr != nil {
		logger.Warn("config.dotenv", "err", envErr)
	}
	for _, w := range cfg.Warnings {
		logger.Warn("config", "warning", w)
	}

	relayCfg := ws.DefaultConfig()
	relayCfg.Addr = cfg.Addr()
	relayCfg.ReadLimit = cfg.ReadLimit
	relayCfg.Metrics = cfg.Metrics
	relayCfg.Logger = logger
	if len(cfg.AllowedOrigins) > 0 {
		relayCfg.CheckOrigin = ws.AllowedOrigins(cfg.AllowedOrigins...)
	}
	if cfg.ConnectRate > 0 {
		relayCfg.ConnectLimit = &ws.ConnectLimitConfig{
			PerSecond: rate.Limit(cfg.ConnectRate),
			Burst:     cfg.ConnectBurst,
			Enabled:   true,
		}
	} else {
		relayCfg.ConnectLimit = ws.NoConnectLimit()
	}

	relay := ws.New(relayCfg)
	if err := relay.Start(context.Background()); err != nil {
		logger.Error("relay.start", "addr", relayCfg.Addr, "err", err)
		os.Exit(1)
	}
	logger.Info("relay.started", "addr", relay.Addr(), "path", relayCfg.Path, "env", cfg.Env)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"relay": func(ctx context.Context) error {
				logger.Info("relay.shutdown", "connections", relay.ConnCount())
				return relay.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info("relay.exit", "code", exitCode)
	os.Exit(exitCode)
}
