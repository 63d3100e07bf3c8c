package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"qrattend/internal/auth"
	"qrattend/internal/catalog"
	"qrattend/internal/config"
	"qrattend/internal/httpmiddleware"
	"qrattend/internal/logging"
	"qrattend/internal/queue"
	"qrattend/internal/redeem"
	"qrattend/internal/session"
	"qrattend/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env)
	defer func() { _ = logger.Sync() }()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := store.Migrate(context.Background(), db.Client, cfg.MigrationsDir); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "qrattend:events")
	}

	sessions := session.NewService(
		session.NewRepository(db.Client),
		catalog.NewRepository(db.Client),
		cfg.SessionTTL,
		logger,
	)
	validator := redeem.NewValidator(
		redeem.NewRepository(db.Client),
		q,
		cfg.RedeemTTL,
		cfg.GraceWindow,
		logger,
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Identity provider stub: in deployment the portal's user service issues
	// these tokens; here any known role is granted on request.
	r.POST("/v1/auth/token", func(c *gin.Context) {
		var req struct {
			UserID        string `json:"user_id" binding:"required"`
			Role          string `json:"role" binding:"required"`
			Name          string `json:"name"`
			StudentNumber string `json:"student_no"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Role != auth.RoleStudent && req.Role != auth.RoleLecturer {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be student or lecturer"})
			return
		}

		id := auth.Identity{ID: req.UserID, Name: req.Name, Role: req.Role, StudentNumber: req.StudentNumber}
		signed, exp, err := auth.Issue(id, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"access_token": signed, "expires_at": exp.Unix()})
	})

	authed := r.Group("/v1", auth.Middleware(cfg.JWTSigningKey, cfg.JWTIssuer))

	lecturers := authed.Group("", auth.RequireRole(auth.RoleLecturer))

	lecturers.POST("/sessions", func(c *gin.Context) {
		var in session.CreateInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sess, err := sessions.Create(c.Request.Context(), auth.FromContext(c), in)
		if err != nil {
			if errors.Is(err, session.ErrUnknownSubject) || errors.Is(err, session.ErrUnknownCourse) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			logger.Error("session create failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session create failed"})
			return
		}
		c.JSON(http.StatusCreated, sess)
	})

	lecturers.GET("/sessions", func(c *gin.Context) {
		limit := 50
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		list, err := sessions.ListByIssuer(c.Request.Context(), auth.FromContext(c).ID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": list})
	})

	lecturers.GET("/sessions/:id/qr", func(c *gin.Context) {
		sess, err := sessions.Get(c.Request.Context(), auth.FromContext(c).ID, c.Param("id"))
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		png, err := sessions.RenderQR(*sess)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "qr render failed"})
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	})

	lecturers.POST("/sessions/:id/deactivate", func(c *gin.Context) {
		err := sessions.Deactivate(c.Request.Context(), auth.FromContext(c).ID, c.Param("id"))
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	students := authed.Group("", auth.RequireRole(auth.RoleStudent))

	// Phase one: decode and validate only. No record is written; the client
	// shows a confirmation step before calling /scan/confirm.
	students.POST("/scan", func(c *gin.Context) {
		var req struct {
			Raw string `json:"raw" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		val, rej, err := validator.Validate(c.Request.Context(), req.Raw, auth.FromContext(c).ID)
		if err != nil {
			logger.Error("scan validate failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporary failure, rescan"})
			return
		}
		if rej != nil {
			c.JSON(http.StatusOK, rej)
			return
		}
		c.JSON(http.StatusOK, gin.H{"outcome": redeem.OutcomeOK, "token": val.Token})
	})

	// Phase two: the raw payload is revalidated and the record written.
	students.POST("/scan/confirm", func(c *gin.Context) {
		var req struct {
			Raw string `json:"raw" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ident := auth.FromContext(c)
		val, rej, err := validator.Validate(c.Request.Context(), req.Raw, ident.ID)
		if err == nil && rej == nil {
			var rec redeem.Record
			rec, rej, err = validator.Confirm(c.Request.Context(), val, redeem.Student{
				ID:     ident.ID,
				Name:   ident.Name,
				Number: ident.StudentNumber,
			})
			if err == nil && rej == nil {
				c.JSON(http.StatusCreated, gin.H{"outcome": redeem.OutcomeOK, "record": rec})
				return
			}
		}
		if err != nil {
			logger.Error("scan confirm failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporary failure, rescan"})
			return
		}
		c.JSON(http.StatusOK, rej)
	})

	students.GET("/attendance", func(c *gin.Context) {
		limit := 50
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		records, err := validator.ListForStudent(c.Request.Context(), auth.FromContext(c).ID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
