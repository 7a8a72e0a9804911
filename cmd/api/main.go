// Package main provides the entry point for the ChordSeq server application.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/chordseqapp/chordseq-server/internal/di"
	"github.com/chordseqapp/chordseq-server/internal/di/providers"
)

func main() {
	injector := di.NewContainer()

	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*slog.Logger](injector)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down gracefully")

	// The container shuts providers down in reverse dependency order; the
	// HTTP server drains in-flight requests before the store closes.
	if err := injector.Shutdown(); err != nil {
		log.Error("shutdown error", "error", err)
	}

	// The store handle is a wrapper type, so close it explicitly in case the
	// container missed it.
	if storeHandle, err := do.Invoke[*providers.StoreHandle](injector); err == nil {
		if err := storeHandle.Shutdown(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}

	log.Info("goodbye")
}
