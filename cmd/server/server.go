package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/host-collector/pkg/collector"
	"github.com/host-collector/pkg/config"
	"github.com/host-collector/pkg/status"
)

// StatusSource 最近一次完整周期的状态
type StatusSource interface {
	Last() (status.CollectorStatus, bool)
}

// Server HTTP服务实例，封装核心依赖和配置
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	server   *http.Server
	registry *prometheus.Registry
	mux      *customMux
	status   StatusSource
	state    func() string
}

// statusWriter 包装ResponseWriter，捕获状态码
type statusWriter struct {
	http.ResponseWriter
	status int
}

// customMux 自定义Mux，兼容原生用法并记录路由
type customMux struct {
	http.ServeMux
	routes []string
	mu     sync.Mutex
}

// Handle 重写Handle，注册路由时记录路径
func (m *customMux) Handle(pattern string, handler http.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, route := range m.routes {
		if route == pattern {
			m.ServeMux.Handle(pattern, handler)
			return
		}
	}

	m.routes = append(m.routes, pattern)
	m.ServeMux.Handle(pattern, handler)
}

// HandleFunc 重写HandleFunc
func (m *customMux) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	m.Handle(pattern, http.HandlerFunc(handler))
}

// NewHTTPServer 创建HTTP服务实例；state 返回采集器生命周期状态，可为 nil
func NewHTTPServer(cfg *config.Config, logger *zap.Logger, registry *prometheus.Registry, st StatusSource, state func() string) *Server {
	mux := &customMux{}

	srv := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		mux:      mux,
		status:   st,
		state:    state,
	}

	// 注册核心端点
	srv.registerEndpoints()

	srv.server = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.logMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return srv
}

// Handler 带日志中间件的路由
func (s *Server) Handler() http.Handler { return s.server.Handler }

// logMiddleware 统一日志记录
func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		s.logger.Debug(
			"HTTP request",
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// registerEndpoints 注册核心路由
func (s *Server) registerEndpoints() {
	// 根路径 / 显示 HTML 页面，包含可点击的链接
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)

		html := fmt.Sprintf(`
		<!DOCTYPE html>
		<html lang="zh-CN">
		<head>
			<meta charset="UTF-8">
			<title>Host Collector</title>
			<style>
				body { font-family: Arial, sans-serif; margin: 40px; }
				h1 { color: #333; }
				a { display: block; margin: 8px 0; font-size: 18px; }
				code { background-color: #f0f0f0; padding: 2px 4px; }
			</style>
		</head>
		<body>
			<h1>Host Collector Service</h1>
			<p>Version: <code>%s</code></p>
			<p>Collector state: <code>%s</code></p>
			<h2>Available Endpoints:</h2>
			<a href="/health">/health - 健康检查</a>
			<a href="/status">/status - 最近一次采集周期状态</a>
			<a href="/metrics">/metrics - Prometheus 指标暴露</a>
		</body>
		</html>
		`, s.cfg.Agent.Version, s.collectorState())
		_, _ = w.Write([]byte(html))
	})

	// /metrics 端点
	s.mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(s.logger),
	}))

	// /health 端点，采集器停止后返回 503
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		switch s.collectorState() {
		case collector.StateStopping, collector.StateStopped:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("STOPPED"))
		default:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		}
	})

	// /status 端点
	s.mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if s.status == nil {
			http.Error(w, "status not available", http.StatusNotFound)
			return
		}
		last, ok := s.status.Last()
		if !ok {
			http.Error(w, "no completed collection cycle yet", http.StatusServiceUnavailable)
			return
		}
		body, err := json.Marshal(last)
		if err != nil {
			s.logger.Error("encode collector status failed", zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})
}

func (s *Server) collectorState() string {
	if s.state == nil {
		return "unknown"
	}
	return s.state()
}

// WriteHeader 捕获状态码
func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Start 启动HTTP服务（非阻塞）
func (s *Server) Start() error {
	s.logger.Info(
		"starting HTTP server",
		zap.String("listen_addr", s.cfg.Server.Addr),
		zap.Strings("handle_funcs", s.mux.routes),
	)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown 优雅关闭HTTP服务
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded")
			return nil
		}
		s.logger.Error("HTTP server shutdown failed", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server shutdown successfully")
	return nil
}
