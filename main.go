// ABOUTME: Entry point for the eTabla player
// ABOUTME: Parses config and CLI flags and starts the player application
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/etabla-go/internal/app"
	"github.com/Resonate-Protocol/etabla-go/internal/config"
	"github.com/Resonate-Protocol/etabla-go/internal/version"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

func main() {
	cfg := config.Load()
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	// Set up logging
	f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if cfg.NoTUI {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	} else {
		// TUI mode: log only to file
		log.SetOutput(f)
	}

	log.Printf("Starting %s %s", version.Product, version.Version)

	p, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create player: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("Shutdown signal received")
		p.Stop()
	}()

	if err := p.Start(!cfg.NoTUI); err != nil {
		log.Fatalf("Player error: %v", err)
	}
}
