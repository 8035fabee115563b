package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NicolasHaas/cliniclink/pkg/fakeclinic"
	"github.com/NicolasHaas/cliniclink/pkg/logging"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:5000", "HTTP bind address for /api and /ws")
	seed := flag.Bool("seed", true, "Create one demo account per role")
	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	clinic := fakeclinic.New()
	if *seed {
		demo, err := clinic.Seed()
		if err != nil {
			slog.Error("seed", "err", err)
			os.Exit(1)
		}
		for _, p := range []string{demo.Clerk.Email, demo.Doctor.Email, demo.Patient.Email} {
			slog.Info("demo account", "email", p, "password", fakeclinic.DemoPassword)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		for {
			select {
			case in := <-clinic.Inbox():
				slog.Info("client frame", "user", in.UserID, "event", in.Event)
			case <-ctx.Done():
				return
			}
		}
	}()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           clinic,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("fake clinic listening", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
