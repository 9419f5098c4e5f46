// This program runs the long unlock computation for a timelock file and
// serves progress over a small web api while it grinds.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/timelock/app/services/agent/handlers"
	"github.com/ardanlabs/timelock/foundation/events"
	"github.com/ardanlabs/timelock/foundation/logger"
	"github.com/ardanlabs/timelock/foundation/timelock/state"
	"github.com/ardanlabs/timelock/foundation/timelock/storage"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("AGENT")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			APIHost         string        `conf:"default:0.0.0.0:8080"`
		}
		Timelock struct {
			File  string `conf:"default:timelock.json"`
			Batch uint64 `conf:"default:1000000"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	const prefix = "AGENT"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Timelock State Support

	// Progress events flow both to the logs and to any connected websocket.
	evts := events.New()
	defer evts.Shutdown()

	ev := func(v string, args ...any) {
		log.Infof(v, args...)
		evts.Send(v, args...)
	}

	st, err := state.New(state.Config{
		Storer:    storage.NewDisk(cfg.Timelock.File),
		EvHandler: ev,
	})
	if err != nil {
		return fmt.Errorf("opening timelock %s: %w", cfg.Timelock.File, err)
	}

	log.Infow("startup", "timelock", st.ID(), "status", st.Status(), "chain length", st.ChainLength())

	// =========================================================================
	// Start Unlock Worker

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()

	workerErrors := make(chan error, 1)

	go func() {
		log.Infow("unlock", "status", "worker started")
		defer log.Infow("unlock", "status", "worker stopped")

		key, err := st.Unlock(workerCtx, cfg.Timelock.Batch)
		if err != nil {
			workerErrors <- err
			return
		}

		log.Infow("unlock", "status", "COMPLETE", "address", key.Address, "wif", key.WIF)
		workerErrors <- nil
	}()

	// =========================================================================
	// Start API Service

	api := http.Server{
		Addr:         cfg.Web.APIHost,
		Handler:      handlers.Mux(log, st, evts),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		log.Infow("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case err := <-workerErrors:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("unlock error: %w", err)
		}

		// The unlock finished; keep serving status until asked to stop.
		log.Infow("unlock", "status", "finished, waiting for shutdown signal")
		<-shutdown

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)
	}

	cancelWorker()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
	defer cancel()

	if err := api.Shutdown(ctx); err != nil {
		api.Close()
		return fmt.Errorf("could not stop server gracefully: %w", err)
	}

	return nil
}
