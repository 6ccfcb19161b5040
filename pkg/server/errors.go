package server

import (
	"fmt"
	"html/template"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/vango-dev/splitroute/internal/errors"
	"github.com/vango-dev/splitroute/internal/logging"
)

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{if .Detail}}<pre>{{.Detail}}</pre>{{end}}
</body>
</html>
`))

// statusOf returns the HTTP status for err.
func statusOf(err error) int {
	var e *errors.Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// writeError logs err and writes an error response. Details are only shown
// in development.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= 500 {
		logging.LogError(s.logger, "request failed", err,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()))
	}

	if strings.HasPrefix(r.URL.Path, "/api/") {
		msg := http.StatusText(status)
		if s.config.Dev {
			msg = err.Error()
		}
		s.writeJSON(w, status, Response{Success: false, Messages: []string{msg}})
		return
	}

	data := struct {
		Title  string
		Detail string
	}{Title: fmt.Sprintf("%d %s", status, http.StatusText(status))}
	if s.config.Dev {
		data.Detail = err.Error()
		if e := errors.FromError(err, "E502"); e.Detail != "" {
			data.Detail += "\n\n" + e.Detail
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = errorPage.Execute(w, data)
}

// recoverer turns handler panics into 500 responses.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("handler panic", "panic", rec, "stack", string(debug.Stack()))
				s.writeError(w, r, errors.New("E502").WithDetail(fmt.Sprint(rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
