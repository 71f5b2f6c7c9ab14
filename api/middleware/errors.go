package middleware

import (
	"context"
	"net/http"

	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/irsalhamdi/e-learning/api/weberr"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/sirupsen/logrus"
)

// Errors logs every error returned by the handler chain and writes the
// response it describes. Errors carrying an explicit response win over the
// kind mapping.
func Errors(log logrus.FieldLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			fields := logrus.Fields{
				"req_id":  ContextRequestID(ctx),
				"message": err,
			}
			if f, ok := weberr.Fields(err); ok {
				for k, v := range f {
					fields[k] = v
				}
			}

			if body, code, ok := weberr.Response(err); ok {
				logAt(log.WithFields(fields), code)
				return web.Respond(ctx, w, body, code)
			}

			fields["kind"] = errs.KindOf(err).String()
			body, code := weberr.FromKind(err)
			logAt(log.WithFields(fields), code)
			return web.Respond(ctx, w, body, code)
		}
		return h
	}
	return m
}

func logAt(log logrus.FieldLogger, code int) {
	if code >= http.StatusInternalServerError {
		log.Error("ERROR")
		return
	}
	log.Warn("request failed")
}
