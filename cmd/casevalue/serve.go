package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"casevalue/internal/logging"
	"casevalue/internal/server"
)

func serveCmd(a *app) *cobra.Command {
	var (
		port    int
		devMode bool
		dataDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			// 命令行参数覆盖配置
			if port > 0 && !a.info.PortSpecified {
				cfg.Server.Port = port
			}
			if dataDir != "" {
				cfg.Data.DataDir = dataDir
			}
			if devMode && !cfg.Server.DevMode {
				cfg.Server.DevMode = true
				logger, err := logging.New(cfg.Log, true)
				if err != nil {
					return err
				}
				a.logger = logger
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a.logger.Info("starting "+appName,
				zap.String("version", server.Version),
				zap.String("config", a.info.Path),
				zap.Bool("config_found", a.info.FileFound),
				zap.Int("port", cfg.Server.Port),
			)

			srv, err := server.NewServer(cfg, a.logger)
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "服务端口 (config.toml 优先；仅当未显式配置 port 时生效)")
	cmd.Flags().BoolVar(&devMode, "dev", false, "开发模式")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "数据目录 (覆盖配置文件)")
	return cmd
}
