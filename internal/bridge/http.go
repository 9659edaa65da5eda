package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samvad-hq/webview-relay/pkg/commands"
	"github.com/samvad-hq/webview-relay/pkg/relay"
)

const shutdownTimeout = 5 * time.Second

// NewHTTPHandler builds the gin engine serving command invocations.
// Requests carrying an Origin outside allowedOrigins are refused; requests
// without one (native callers, curl) pass through.
func NewHTTPHandler(reg commands.Registry, allowedOrigins []string, log Logger) *gin.Engine {
	log = ensureLogger(log)

	engine := gin.New()
	engine.Use(requestLogger(log), gin.Recovery(), originGuard(allowedOrigins))
	engine.NoRoute(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusNotFound, commands.NewReply(nil,
			relay.InvalidInput("%s not found", c.Request.URL.Path)))
	})

	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	engine.POST("/invoke/:command", func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusOK, commands.NewReply(nil, relay.InvalidInput("read arguments: %v", err)))
			return
		}
		result, err := reg.Invoke(c.Request.Context(), c.Param("command"), json.RawMessage(raw))
		c.JSON(http.StatusOK, commands.NewReply(result, err))
	})
	return engine
}

// originGuard admits listed origins and answers their preflight requests.
func originGuard(allowed []string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		if _, ok := set[origin]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, commands.NewReply(nil,
				relay.InvalidInput("origin %s not allowed", origin)))
			return
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Vary", "Origin")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger(log Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.DebugObj("bridge request", "http_meta", map[string]any{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

// ServeHTTP listens on addr until ctx is cancelled, then shuts down gracefully.
func ServeHTTP(ctx context.Context, addr string, handler http.Handler, log Logger) error {
	log = ensureLogger(log)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	log.InfoObj("http bridge listening", "listen_addr", addr)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http bridge: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http bridge: %w", err)
		}
		log.InfoObj("http bridge stopped", "reason", ctx.Err().Error())
		return nil
	}
}
