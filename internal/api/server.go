package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tasktracker/internal/api/auth"
	"tasktracker/internal/api/middleware"
	"tasktracker/internal/api/response"
	"tasktracker/internal/config"
	"tasktracker/internal/model"
	"tasktracker/internal/pkg/dedup"
	"tasktracker/internal/pkg/metrics"
	"tasktracker/internal/pkg/ratelimit"
	"tasktracker/internal/pkg/token"
	"tasktracker/internal/store"
	"tasktracker/internal/task"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端（限流）、令牌服务以及 Gin 路由引擎。
type Server struct {
	cfg           *config.Config
	logger        *slog.Logger
	db            *gorm.DB
	rdb           *redis.Client
	router        *gin.Engine
	auth          *auth.Handler
	users         *store.UserStore
	tokens        *token.Service
	tasks         TaskService
	idempotency   IdempotencyGuard
	globalLimiter middleware.Limiter
	authLimiter   middleware.Limiter
	now           func() time.Time
}

// TaskService 是任务接口依赖的查询引擎。
type TaskService interface {
	Create(ctx context.Context, ownerID uint, in task.CreateInput) (*model.Task, error)
	List(ctx context.Context, ownerID uint, params task.ListParams) (*task.Page, error)
	Get(ctx context.Context, ownerID, id uint) (*model.Task, error)
	Update(ctx context.Context, ownerID, id uint, patch task.Patch) (*model.Task, error)
	Delete(ctx context.Context, ownerID, id uint) error
	Stats(ctx context.Context, ownerID uint) (task.Stats, error)
}

// IdempotencyGuard 记录已处理过的 Idempotency-Key，由 dedup.Guard 实现。
type IdempotencyGuard interface {
	Claim(ctx context.Context, userID uint, key string) (bool, error)
	Release(ctx context.Context, userID uint, key string) error
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接数据库并执行自动迁移（store.Open）
// 2. 启用 Redis 时连接 Redis（限流与幂等键）
// 3. 初始化令牌服务、存储与 Gin 路由引擎
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       0,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	return New(cfg, logger, db, rdb)
}

// New 使用已建立的连接组装服务器。rdb 为 nil 时不启用限流与幂等键。
func New(cfg *config.Config, logger *slog.Logger, db *gorm.DB, rdb *redis.Client) (*Server, error) {
	tokens, err := token.NewService(cfg.Security.JWTSecret, cfg.Security.JWTExpiresIn)
	if err != nil {
		return nil, err
	}

	metrics.InitMetrics()

	users := store.NewUserStore(db)
	s := &Server{
		cfg:    cfg,
		logger: logger,
		db:     db,
		rdb:    rdb,
		auth:   auth.NewHandler(users, tokens, cfg.Security.BcryptCost, logger),
		users:  users,
		tokens: tokens,
		tasks:  task.NewService(store.NewTaskStore(db), logger),
		now:    time.Now,
	}
	if rdb != nil {
		s.idempotency = dedup.NewGuard(rdb, cfg.Redis.IdempotencyTTL)
	}
	if rdb != nil && cfg.RateLimit.Enabled {
		s.globalLimiter = ratelimit.NewRedisRateLimiter(rdb, logger, "tasktracker:ratelimit:global", cfg.RateLimit.GlobalRate, cfg.RateLimit.GlobalBurst)
		s.authLimiter = ratelimit.NewRedisRateLimiter(rdb, logger, "tasktracker:ratelimit:auth", cfg.RateLimit.AuthRate, cfg.RateLimit.AuthBurst)
	}

	if cfg.App.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.router.Use(gin.CustomRecovery(s.handlePanic))
	s.router.Use(middleware.RequestLogger(logger))
	s.registerRoutes()
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 关闭数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else if closeErr := sqlDB.Close(); closeErr != nil && firstErr == nil {
			firstErr = closeErr
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	if s.globalLimiter != nil {
		s.router.Use(middleware.RateLimit(s.globalLimiter, "global", "Too many requests from this IP, please try again later.", s.logger))
	}

	s.router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, "Route not found")
	})

	s.router.GET("/", s.handleIndex)
	s.router.GET("/health", s.handleHealth)
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	gateway := middleware.AuthMiddleware(s.tokens, s.users, s.logger)

	authGroup := s.router.Group("/api/auth")
	if s.authLimiter != nil {
		authGroup.Use(middleware.RateLimit(s.authLimiter, "auth", "Too many authentication attempts, please try again later.", s.logger))
	}
	authGroup.POST("/register", s.auth.Register)
	authGroup.POST("/login", s.auth.Login)
	authGroup.GET("/profile", gateway, s.auth.Profile)

	tasks := s.router.Group("/api/tasks")
	tasks.Use(gateway)
	tasks.POST("", s.handleCreateTask)
	tasks.GET("", s.handleListTasks)
	tasks.GET("/stats", s.handleTaskStats)
	tasks.GET("/:id", s.handleGetTask)
	tasks.PUT("/:id", s.handleUpdateTask)
	tasks.DELETE("/:id", s.handleDeleteTask)
}

func (s *Server) handlePanic(c *gin.Context, recovered any) {
	if s.logger != nil {
		s.logger.Error("PANIC in request handler",
			slog.String("path", c.Request.URL.Path),
			slog.Any("panic", recovered),
		)
	}
	response.AbortFail(c, http.StatusInternalServerError, "Internal server error")
}

func (s *Server) handleIndex(c *gin.Context) {
	response.OK(c, http.StatusOK, "Task Tracker API", gin.H{
		"endpoints": gin.H{
			"auth": gin.H{
				"register": "POST /api/auth/register",
				"login":    "POST /api/auth/login",
				"profile":  "GET /api/auth/profile",
			},
			"tasks": gin.H{
				"create":  "POST /api/tasks",
				"getAll":  "GET /api/tasks",
				"getById": "GET /api/tasks/:id",
				"update":  "PUT /api/tasks/:id",
				"delete":  "DELETE /api/tasks/:id",
				"stats":   "GET /api/tasks/stats",
			},
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil {
		response.Fail(c, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("health check failed", slog.String("component", "database"), slog.String("error", err.Error()))
		}
		response.Fail(c, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	if s.rdb != nil {
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			if s.logger != nil {
				s.logger.Warn("health check failed", slog.String("component", "redis"), slog.String("error", err.Error()))
			}
			response.Fail(c, http.StatusServiceUnavailable, "Redis unavailable")
			return
		}
	}

	response.OK(c, http.StatusOK, "Server is running", gin.H{
		"timestamp":   s.now().UTC().Format(time.RFC3339),
		"environment": s.cfg.App.Env,
	})
}
