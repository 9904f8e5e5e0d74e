package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/tusgate/tusgate/pkg/engine"
	"github.com/tusgate/tusgate/pkg/hookdispatch"
	"github.com/tusgate/tusgate/pkg/metrics"
	"github.com/tusgate/tusgate/pkg/protocol"
)

// Serve builds the engine, the protocol adapter, and the HTTP server, then
// blocks until an interrupt signal triggers a graceful shutdown. Modeled
// on the teacher's cmd/tusd/cli/serve.go top to bottom: same ordering of
// composer → handler → mux → listener → signal handling.
func Serve(log *slog.Logger) error {
	ctx := context.Background()

	info, err := BuildInfoStore(ctx, log)
	if err != nil {
		return err
	}
	blob, err := BuildBlobStore(ctx, log)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()

	var reg *metrics.Registry
	if Flags.ExposeMetrics {
		reg = SetupMetrics(mux, log)
	}

	var hookMetrics hookdispatch.MetricsRecorder
	var reqMetrics protocol.RequestMetrics
	if reg != nil {
		hookMetrics = reg
		reqMetrics = reg
	}

	dispatcher, err := BuildDispatcher(log, hookMetrics)
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.Config{
		Info:                   info,
		Blob:                   blob,
		Dispatcher:             dispatcher,
		MaxSize:                Flags.MaxSize,
		Extensions:             engine.DefaultExtensions(),
		RemovePartsAfterConcat: Flags.RemovePartsAfterConcat,
	})
	if err != nil {
		return err
	}

	cors, err := corsConfig()
	if err != nil {
		return err
	}

	adapter, err := protocol.New(eng, protocol.Config{
		BasePath:           Flags.BasePath,
		DisableDownload:    Flags.DisableDownload,
		DisableTermination: Flags.DisableTermination,
		Cors:               cors,
		Logger:             log,
		Metrics:            reqMetrics,
	})
	if err != nil {
		return err
	}

	basepath := Flags.BasePath
	basepathWithoutSlash := strings.TrimSuffix(basepath, "/")
	basepathWithSlash := basepathWithoutSlash + "/"
	mux.Handle(basepathWithSlash, http.StripPrefix(basepathWithoutSlash, adapter.Handler()))
	if basepathWithoutSlash != "" {
		mux.Handle(basepathWithoutSlash, http.StripPrefix(basepathWithoutSlash, adapter.Handler()))
	}
	mux.HandleFunc("/health", handleHealth)

	addr := Flags.HTTPHost + ":" + Flags.HTTPPort
	var netListener net.Listener
	if Flags.HTTPSock != "" {
		netListener, err = NewUnixListener(Flags.HTTPSock)
	} else {
		netListener, err = NewListener(addr)
	}
	if err != nil {
		return err
	}

	server := &http.Server{Handler: mux}

	log.Info("listening", "address", netListener.Addr().String(), "base_path", basepath)

	shutdownComplete := setupSignalHandler(server, log)

	err = server.Serve(netListener)
	if errors.Is(err, http.ErrServerClosed) {
		<-shutdownComplete
		return nil
	}
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func corsConfig() (*protocol.CorsConfig, error) {
	cfg := protocol.DefaultCorsConfig
	cfg.Disable = Flags.DisableCors
	cfg.AllowCredentials = Flags.CorsAllowCreds
	cfg.MaxAge = Flags.CorsMaxAge

	origin, err := regexp.Compile(Flags.CorsAllowOrigin)
	if err != nil {
		return nil, err
	}
	cfg.AllowOrigin = origin

	if Flags.CorsAllowHeaders != "" {
		cfg.AllowHeaders += ", " + Flags.CorsAllowHeaders
	}
	if Flags.CorsAllowMethods != "" {
		cfg.AllowMethods += ", " + Flags.CorsAllowMethods
	}
	if Flags.CorsExposeHeaders != "" {
		cfg.ExposeHeaders += ", " + Flags.CorsExposeHeaders
	}
	return &cfg, nil
}

// setupSignalHandler drains in-flight requests on SIGINT/SIGTERM, matching
// the teacher's two-signal escalation: a second interrupt forces an
// immediate exit instead of waiting out the graceful shutdown.
func setupSignalHandler(server *http.Server, log *slog.Logger) <-chan struct{} {
	shutdownComplete := make(chan struct{})

	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Info("received interrupt signal, shutting down")

		go func() {
			<-c
			log.Warn("received second interrupt signal, exiting immediately")
			os.Exit(1)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(Flags.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				log.Error("shutdown timeout exceeded, exiting immediately")
			} else {
				log.Error("failed to shut down gracefully", "error", err)
			}
		} else {
			log.Info("shutdown complete")
		}

		close(shutdownComplete)
	}()

	return shutdownComplete
}
