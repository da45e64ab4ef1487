package server

import (
	"context"
	"net"
	"net/http"
	"time"
)

// HTTPConfig holds the listener settings for NewHTTPServer.
type HTTPConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewHTTPServer creates an http.Server whose request contexts are
// cancelled as soon as Shutdown is called, so in-flight generations stop
// polling instead of holding the shutdown open.
func NewHTTPServer(cfg HTTPConfig, handler http.Handler) *http.Server {
	base, cancel := context.WithCancel(context.Background())

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		BaseContext: func(net.Listener) context.Context {
			return base
		},
	}
	srv.RegisterOnShutdown(cancel)
	return srv
}
