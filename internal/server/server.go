package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	v1 "casevalue/internal/api/v1"
	"casevalue/internal/analytics"
	"casevalue/internal/catalog"
	"casevalue/internal/config"
	"casevalue/internal/exporter"
	"casevalue/internal/intake"
	"casevalue/internal/logging"
	"casevalue/internal/notify"
	"casevalue/internal/session"
	"casevalue/internal/store"
)

// Version 服务版本，构建时通过 -ldflags 注入
var Version = "dev"

// Server HTTP服务器
type Server struct {
	cfg      *config.AppConfig
	logger   *zap.Logger
	router   *gin.Engine
	store    *store.Store
	sessions *session.Manager
}

// NewServer 创建服务器并装配全部依赖
func NewServer(cfg *config.AppConfig, logger *zap.Logger) (*Server, error) {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	cat, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	// 初始化 SQLite Store
	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	st, err := store.New(config.DatabasePath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := analytics.NewPrometheus(registry)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	notifier, err := notify.New(notify.Options{
		TelegramToken:  cfg.Notify.TelegramToken,
		TelegramChatID: cfg.Notify.TelegramChatID,
	}, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	sessions := session.NewManager(session.Options{
		MaxSessions: cfg.Sessions.MaxSessions,
		TTL:         cfg.SessionTTL(),
	}, analytics.Multi{metrics, analytics.NewStore(st)}, logger.Named("session"))

	handler := v1.NewHandler(v1.Options{
		Catalog:    cat,
		Sessions:   sessions,
		Intake:     intake.NewService(cat, st, notifier, logger),
		Store:      st,
		Exporter:   exporter.NewExporter(st, cat),
		AdminToken: cfg.Admin.Token,
		Version:    Version,
		Logger:     logger,
	})

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		router:   gin.New(),
		store:    st,
		sessions: sessions,
	}
	s.setupRoutes(handler, registry)

	logger.Info("server initialized",
		zap.String("data_dir", dataDir),
		zap.Int("calculators", cat.CalculatorCount()),
		zap.Int("forms", cat.FormCount()),
		zap.Bool("telegram", cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != ""),
		zap.Bool("admin_api", cfg.Admin.Token != ""),
	)
	return s, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(handler *v1.Handler, registry *prometheus.Registry) {
	s.router.Use(logging.GinLogger(s.logger), logging.GinRecovery(s.logger))

	// CORS
	corsConfig := cors.DefaultConfig()
	if len(s.cfg.Server.AllowedOrigins) == 0 || containsWildcard(s.cfg.Server.AllowedOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.cfg.Server.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}
	s.router.Use(cors.New(corsConfig))

	// V1 API 路由
	api := s.router.Group("/api")
	{
		handler.RegisterRoutes(api)
	}

	// 指标
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// Handler 返回 HTTP 处理器（用于测试）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 监听配置端口直到 ctx 取消
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve 在给定监听器上服务，ctx 取消后优雅退出并释放资源
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout())
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close 关闭会话与数据库；未完成的会话在此记为放弃
func (s *Server) Close() error {
	s.sessions.Close()
	return s.store.Close()
}

// GetStore 获取存储（用于测试）
func (s *Server) GetStore() *store.Store {
	return s.store
}
