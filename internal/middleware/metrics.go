package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/carmarket-wallet/pkg/metricspkg"
)

// Metrics records request count and latency per route template.
func Metrics() gin.HandlerFunc {
	return func(gctx *gin.Context) {
		start := time.Now()

		gctx.Next()

		path := gctx.FullPath()
		if path == "" {
			path = "unmatched"
		}

		metricspkg.ObserveHTTP(gctx.Request.Method, path, strconv.Itoa(gctx.Writer.Status()), time.Since(start))
	}
}
