package api

import (
	"net/http"
	"time"
)

const defaultRequestTimeout = 10 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithWebsocket serves h on GET /ws.
func WithWebsocket(h http.HandlerFunc) Option {
	return func(s *Server) {
		s.websocket = h
	}
}

// WithRequestTimeout bounds how long a match request may wait for its
// worker.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}
