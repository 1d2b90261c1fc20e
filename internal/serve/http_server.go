package serve

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// HTTPServerConfig carries everything needed to run one HTTP listener with a
// graceful shutdown window.
type HTTPServerConfig struct {
	ListenAddr          string
	Handler             http.Handler
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	IdleTimeout         time.Duration
	ShutdownGracePeriod time.Duration
	OnStarting          func()
	OnStopping          func()
}

type HTTPServerInterface interface {
	Run(conf HTTPServerConfig)
}

type HTTPServer struct{}

var _ HTTPServerInterface = (*HTTPServer)(nil)

// Run starts the listener and blocks until SIGINT/SIGTERM/SIGQUIT, then drains
// in-flight requests for up to ShutdownGracePeriod.
func (h *HTTPServer) Run(conf HTTPServerConfig) {
	if conf.ShutdownGracePeriod <= 0 {
		conf.ShutdownGracePeriod = 10 * time.Second
	}

	srv := &http.Server{
		Addr:         conf.ListenAddr,
		Handler:      conf.Handler,
		ReadTimeout:  conf.ReadTimeout,
		WriteTimeout: conf.WriteTimeout,
		IdleTimeout:  conf.IdleTimeout,
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	if conf.OnStarting != nil {
		conf.OnStarting()
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("error running HTTP server on %s: %s", conf.ListenAddr, err.Error())
		}
	}()

	<-signalChan

	if conf.OnStopping != nil {
		conf.OnStopping()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.ShutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("error gracefully shutting down HTTP server on %s: %s", conf.ListenAddr, err.Error())
	}
}
