package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/sirupsen/logrus"
	"github.com/zenazn/goji/web/mutil"
)

// Logger writes one entry per request once the handler returns. Server
// errors log at error level and client errors at warn. Health checks are logged
// at debug so scrapes do not flood the output.
func Logger(log logrus.FieldLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			start := time.Now()
			lw := mutil.WrapWriter(w)

			err := handler(ctx, lw, r)

			entry := log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"remoteaddr": r.RemoteAddr,
				"statuscode": lw.Status(),
				"bytes":      lw.BytesWritten(),
				"since":      time.Since(start).String(),
			})
			if rid := ContextRequestID(ctx); rid != "" {
				entry = entry.WithField("req_id", rid)
			}

			switch status := lw.Status(); {
			case status >= http.StatusInternalServerError:
				entry.Error("request failed")
			case status >= http.StatusBadRequest:
				entry.Warn("request rejected")
			case r.URL.Path == "/metrics" || r.URL.Path == "/readiness":
				entry.Debug("health check")
			default:
				entry.Info("request completed")
			}
			return err
		}
		return h
	}
	return m
}
