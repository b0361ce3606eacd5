package apiserver

import (
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/acorn-io/acorn-domains/pkg/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

// realIP get the real IP from http request
func realIP(req *http.Request) string {
	if ip := req.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := req.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

// routeName is the matched path template, so metrics are not labelled per domain id.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// loggingMiddleware tags each request with an id, logs it with its status and
// duration and records it in the request histogram. A panicking handler
// produces a 500.
func loggingMiddleware(logger *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			fields := logrus.Fields{"requestID": id, "remoteAddr": realIP(r)}
			if domainID := mux.Vars(r)["domain"]; domainID != "" {
				fields["domainID"] = domainID
			}
			log := logger.WithFields(fields)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			route := routeName(r)

			defer func() {
				if err := recover(); err != nil {
					rec.WriteHeader(http.StatusInternalServerError)
					log.WithField("status", http.StatusInternalServerError).Errorf("recovered error: %v\n%s", err, debug.Stack())
				}

				metrics.HTTPRequestDuration.
					WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).
					Observe(time.Since(start).Seconds())

				if route == "/healthz" {
					return
				}
				entry := log.WithFields(logrus.Fields{
					"status":   rec.status,
					"method":   r.Method,
					"path":     r.URL.EscapedPath(),
					"duration": time.Since(start),
				})
				msg := fmt.Sprintf("handled: %d", rec.status)
				if rec.status >= 500 {
					entry.Error(msg)
				} else {
					entry.Debug(msg)
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
