package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"OpenMint-Chain/internal/auth"
	"OpenMint-Chain/internal/observability/metrics"
	"OpenMint-Chain/internal/storage/mysql"
)

// Server 暴露只读的管理接口：部署记录查询与健康检查。
type Server struct {
	addr   string
	repo   mysql.DeploymentRepository
	chains []string
	guard  *auth.Guard
}

// Option 调整 Server 的可选行为。
type Option func(*Server)

// WithGuard 为 /api/v1 路由启用访问令牌校验，健康检查不受影响。
func WithGuard(guard *auth.Guard) Option {
	return func(s *Server) {
		s.guard = guard
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, repo mysql.DeploymentRepository, chains []string, opts ...Option) *Server {
	server := &Server{addr: addr, repo: repo, chains: chains}
	for _, opt := range opts {
		opt(server)
	}
	return server
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/deployments", s.instrument("deployments", s.protect(s.handleListDeployments)))
	mux.HandleFunc("/api/v1/chains", s.instrument("chains", s.protect(s.handleListChains)))
	mux.HandleFunc("/healthz", s.instrument("healthz", s.handleHealth))

	// 配置 HTTP 服务器。
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 启动服务器并监听关闭信号。
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// handleListDeployments 返回最近的部署记录。
func (s *Server) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.repo == nil {
		http.Error(w, "部署仓库未初始化", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := s.repo.ListLatest(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []mysql.DeploymentRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}

// handleListChains 返回已注册的链名称。
func (s *Server) handleListChains(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"chains": s.chains})
}

// handleHealth 是存活探针。
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// protect 按需叠加访问令牌校验。
func (s *Server) protect(handler http.HandlerFunc) http.HandlerFunc {
	if s.guard == nil {
		return handler
	}
	return s.guard.Protect(handler)
}

// instrument 记录请求指标。
func (s *Server) instrument(name string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(started))
	}
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
