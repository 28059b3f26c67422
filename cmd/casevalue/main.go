package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"casevalue/internal/config"
	"casevalue/internal/logging"
	"casevalue/internal/server"
)

const appName = "casevalue"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app 子命令共享的配置与日志
type app struct {
	configPath string
	logLevel   string

	cfg    *config.AppConfig
	info   config.LoadConfigInfo
	logger *zap.Logger
}

func rootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Compensation calculators and case-evaluation intake for a personal-injury practice",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "配置文件路径（默认为可执行文件同目录下的 config.toml）")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "日志级别 (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(a),
		calculatorsCmd(a),
		estimateCmd(a),
		leadsCmd(a),
		configCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, server.Version)
			},
		},
	)
	return cmd
}

// load 加载配置并初始化日志
func (a *app) load() error {
	cfg, info, err := config.LoadConfigWithInfo(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	logger, err := logging.New(cfg.Log, cfg.Server.DevMode)
	if err != nil {
		return err
	}
	a.cfg, a.info, a.logger = cfg, info, logger
	return nil
}
