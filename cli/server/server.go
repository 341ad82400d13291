// Package server implements the "server" CLI command that runs the tree
// service node.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nspcc-dev/cmtree/cli/options"
	"github.com/nspcc-dev/cmtree/pkg/config"
	"github.com/nspcc-dev/cmtree/pkg/services/metrics"
	"github.com/nspcc-dev/cmtree/pkg/services/rpcsrv"
	"github.com/nspcc-dev/cmtree/pkg/services/whitelist"
	"github.com/nspcc-dev/cmtree/pkg/simplemt"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewCommands returns 'server' command.
func NewCommands() []cli.Command {
	var cfgFlags = []cli.Flag{options.Config, options.ConfigFile, options.Debug}
	return []cli.Command{
		{
			Name:   "server",
			Usage:  "start a tree service node",
			Action: startServer,
			Flags:  cfgFlags,
		},
	}
}

func getConfigFromContext(ctx *cli.Context) (config.Config, error) {
	if configFile := ctx.String("config-file"); len(configFile) != 0 {
		return config.LoadFile(configFile)
	}
	configPath := config.DefaultConfigPath
	if argCfg := ctx.String("config-path"); argCfg != "" {
		configPath = filepath.Join(argCfg, filepath.Base(config.DefaultConfigPath))
	}
	return config.LoadFile(configPath)
}

func initTreeWithMetrics(cfg config.Config, log *zap.Logger) (*whitelist.Service, *metrics.Service, *metrics.Service, error) {
	wl, err := whitelist.New(cfg.TreeConfiguration, log)
	if err != nil {
		return nil, nil, nil, cli.NewExitError(fmt.Errorf("could not initialize the tree: %w", err), 1)
	}
	prometheus := metrics.NewPrometheusService(cfg.ApplicationConfiguration.Prometheus, log)
	pprof := metrics.NewPprofService(cfg.ApplicationConfiguration.Pprof, log)

	err = prometheus.Start()
	if err != nil {
		return nil, nil, nil, cli.NewExitError(fmt.Errorf("failed to start Prometheus service: %w", err), 1)
	}
	err = pprof.Start()
	if err != nil {
		prometheus.ShutDown()
		return nil, nil, nil, cli.NewExitError(fmt.Errorf("failed to start Pprof service: %w", err), 1)
	}

	return wl, prometheus, pprof, nil
}

func startServer(ctx *cli.Context) error {
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, logLevel, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	wl, prometheus, pprof, err := initTreeWithMetrics(cfg, log)
	if err != nil {
		return err
	}

	var simple *simplemt.Tree
	if depth := cfg.TreeConfiguration.SimpleTreeDepth; depth > 0 {
		simple, err = simplemt.New(context.Background(), depth)
		if err != nil {
			prometheus.ShutDown()
			pprof.ShutDown()
			return cli.NewExitError(fmt.Errorf("could not initialize the simple tree: %w", err), 1)
		}
	}

	// Buffered, Start reports listen errors before the loop below runs.
	errChan := make(chan error, 2)
	rpcServer := rpcsrv.New(wl, simple, cfg.ApplicationConfiguration.RPC, cfg.TreeConfiguration, log, errChan)
	rpcServer.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, sighup, sigusr1, os.Interrupt, syscall.SIGTERM)

	fmt.Fprintln(ctx.App.Writer, Logo())
	fmt.Fprintln(ctx.App.Writer, config.GenerateUserAgent())
	fmt.Fprintln(ctx.App.Writer)

	var shutdownErr error
Main:
	for {
		select {
		case err := <-errChan:
			shutdownErr = fmt.Errorf("server error: %w", err)
			break Main
		case sig := <-sigCh:
			log.Info("signal received", zap.Stringer("name", sig))
			switch sig {
			case sighup:
				cfgnew, err := getConfigFromContext(ctx)
				if err != nil {
					log.Warn("can't reread the config file, signal ignored", zap.Error(err))
					break
				}
				if !ctx.Bool("debug") && cfgnew.ApplicationConfiguration.LogLevel != cfg.ApplicationConfiguration.LogLevel {
					newLevel, err := zapcore.ParseLevel(cfgnew.ApplicationConfiguration.LogLevel)
					if err != nil {
						log.Warn("wrong LogLevel in the new config, ignored", zap.Error(err))
					} else {
						logLevel.SetLevel(newLevel)
						log.Warn("using new logging level", zap.Stringer("level", newLevel))
					}
				}
				cfg = cfgnew
			case sigusr1:
				// Restart the RPC server with the latest read configuration.
				rpcServer.Shutdown()
				rpcServer = rpcsrv.New(wl, simple, cfg.ApplicationConfiguration.RPC, cfg.TreeConfiguration, log, errChan)
				rpcServer.Start()
			case os.Interrupt, syscall.SIGTERM:
				break Main
			}
		}
	}

	log.Info("shutting down the tree service")
	signal.Stop(sigCh)
	rpcServer.Shutdown()
	prometheus.ShutDown()
	pprof.ShutDown()
	_ = log.Sync()

	if shutdownErr != nil {
		return cli.NewExitError(shutdownErr, 1)
	}
	return nil
}

// Logo returns the CMTREE logo.
func Logo() string {
	return `
   ______    __  ___  ______    ____     ______    ______
  / ____/   /  |/  / /_  __/   / __ \   / ____/   / ____/
 / /       / /|_/ /   / /     / /_/ /  / __/     / __/
/ /___    / /  / /   / /     / _, _/  / /___    / /___
\____/   /_/  /_/   /_/     /_/ |_|  /_____/   /_____/
`
}
