package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/splitroute/internal/errors"
)

// Response is the JSON envelope of every API answer.
type Response struct {
	Success  bool     `json:"success"`
	Messages []string `json:"messages"`
	Data     any      `json:"data"`
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, Response{
		Success:  true,
		Messages: []string{},
		Data:     chi.URLParam(r, "str"),
	})
}

func (s *Server) handleAPINotFound(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusNotFound, Response{
		Success:  false,
		Messages: []string{errors.New("E500").Message},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("json write failed", "error", err)
	}
}
