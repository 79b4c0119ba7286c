package http

import (
	"github.com/gin-gonic/gin"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

const serviceName = "profile-service"

// Tracing starts a Datadog span per request; downstream spans (mongo,
// management API) attach to it through the request context.
func Tracing() gin.HandlerFunc {
	return gintrace.Middleware(serviceName, gintrace.WithIgnoreRequest(func(c *gin.Context) bool {
		return c.Request.URL.Path == "/healthz" || c.Request.URL.Path == "/metrics"
	}))
}

// tagSubject marks the active span with the hashed subject of the caller.
func tagSubject(c *gin.Context, hash string) {
	if sp, ok := tracer.SpanFromContext(c.Request.Context()); ok {
		sp.SetTag("subject_hash", hash)
	}
}
