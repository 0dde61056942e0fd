package observability

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dance-studio-api/pkg/config"
)

const flushTimeout = 2 * time.Second

// InitSentry configures the Sentry client. An empty DSN disables reporting and
// returns a no-op flush.
func InitSentry(cfg config.SentryConfig, env string) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      env,
		Release:          cfg.Release,
		AttachStacktrace: true,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(flushTimeout) }, nil
}

// Middleware binds a per-request hub carrying the HTTP request so captured
// errors are reported with it. Panics are reported and re-raised for the
// recovery middleware to answer.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sentry.CurrentHub().Client() == nil {
			c.Next()
			return
		}
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetRequest(c.Request)
		ctx := sentry.SetHubOnContext(c.Request.Context(), hub)
		c.Request = c.Request.WithContext(ctx)

		defer func() {
			if recovered := recover(); recovered != nil {
				hub.RecoverWithContext(ctx, recovered)
				panic(recovered)
			}
		}()
		c.Next()
	}
}

// CaptureErr reports err on the hub bound to ctx, falling back to the global
// hub. Nothing is sent when no client is configured.
func CaptureErr(ctx context.Context, err error) {
	if err == nil {
		return
	}
	hub := sentry.CurrentHub()
	if ctx != nil {
		if bound := sentry.GetHubFromContext(ctx); bound != nil {
			hub = bound
		}
	}
	if hub.Client() != nil {
		hub.CaptureException(err)
	}
}
