// Program poptrend consumes population observations from a streaming
// topic and charts the per-year trend, raw and running average, live
// in the terminal. It wires together the Kafka consumer, the decode
// and validation layer, the aggregation state and one of the terminal
// renderers.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"poptrend/aggregate"
	"poptrend/config"
	"poptrend/consumer"
	"poptrend/rejectlog"
	"poptrend/stats"
	"poptrend/ui"

	"golang.org/x/term"
)

const Version = "1.0.0"

const (
	defaultConfigPath = "poptrend.yaml"
	envConfigPath     = "POPTREND_CONFIG"
)

// Purpose: Resolve and load the configuration stack.
// Key aspects: .env file first, then YAML config, then env overrides on top.
// Upstream: main startup.
// Downstream: config.LoadEnvFile, config.Load, Config.ApplyEnv.
func loadTrendConfig() (*config.Config, string, error) {
	config.LoadEnvFile()

	path := strings.TrimSpace(os.Getenv(envConfigPath))
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	cfg.ApplyEnv()

	source := cfg.LoadedFrom
	if source == "" {
		source = "defaults"
	}
	return cfg, source, nil
}

// Purpose: Report whether stdout is an interactive terminal.
// Key aspects: Uses term.IsTerminal on stdout fd.
// Upstream: UI mode selection.
// Downstream: term.IsTerminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Purpose: Program entrypoint; wires configuration, ingest, and display.
// Key aspects: Initializes logging/UI/consumer and manages graceful shutdown.
// Upstream: OS process start.
// Downstream: Startup helpers, the message loop, and the stats ticker.
func main() {
	cfg, configSource, err := loadTrendConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	fanout, logErr := setupLogging(cfg.Logging, os.Stdout)
	// The fanout stamps every line itself; drop the default prefixes.
	log.SetFlags(0)
	log.SetOutput(fanout)
	if logErr != nil {
		log.Printf("Logging: file sink disabled: %v", logErr)
	}
	log.Printf("Loaded configuration from %s", configSource)

	uiMode := cfg.UI.Mode
	renderAllowed := isStdoutTTY()

	var surface ui.Surface
	switch uiMode {
	case "headless":
		log.Printf("UI disabled (mode=headless)")
	case "tview":
		if !renderAllowed {
			log.Printf("UI disabled (tview requires an interactive console)")
		} else if d := ui.NewDashboard(cfg.UI, true); d != nil {
			surface = d
		}
	case "ansi":
		if !renderAllowed {
			log.Printf("UI disabled (ansi renderer requires an interactive console)")
		} else {
			surface = ui.NewANSIConsole(cfg.UI, renderAllowed)
		}
	default:
		log.Printf("UI mode %q not recognized; defaulting to headless", uiMode)
	}

	if surface != nil {
		surface.WaitReady()
		fanout.SetConsoleSink(surface.SystemWriter(), false)
		surface.SetStats([]string{"Initializing..."})
	} else {
		cfg.Print()
	}

	log.Printf("Population Trend Consumer v%s starting...", Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rejects rejectlog.Logger
	if cfg.RejectLog.Enabled {
		rejects, err = rejectlog.NewLogger(cfg.RejectLog.Dir, cfg.RejectLog.QueueSize, cfg.RejectLog.RetentionDays)
		if err != nil {
			log.Printf("Reject log disabled: %v", err)
			rejects = nil
		}
	}

	tracker := stats.NewTracker()
	client := consumer.NewClient(cfg.Kafka)
	client.Start(ctx)

	loop := newMessageLoop(cfg.Series.Title, client.Messages(), aggregate.New(), tracker, rejects, surface)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.run(ctx)
	}()

	statsInterval := time.Duration(cfg.Stats.DisplayIntervalSeconds) * time.Second
	go displayStats(ctx, statsInterval, tracker, client, rejects, surface, fanout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("Consumer is running. Press Ctrl+C to stop.")
	log.Printf("Reading topic %q as group %q from %s",
		cfg.Kafka.Topic, cfg.Kafka.GroupID, strings.Join(cfg.Kafka.Brokers, ","))
	log.Printf("Statistics will be displayed every %d seconds...", cfg.Stats.DisplayIntervalSeconds)

	// The dashboard's quit key and an OS signal share the shutdown
	// path; a drained source ends the run as well.
	var uiDone <-chan struct{}
	if surface != nil {
		uiDone = surface.Done()
	}
	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case <-uiDone:
		log.Println("UI closed")
	case <-loopDone:
		log.Println("Source drained")
	}
	log.Println("Shutting down gracefully...")

	cancel()
	client.Stop()
	<-loopDone

	if rejects != nil {
		if err := rejects.Close(); err != nil {
			log.Printf("Warning: reject log close: %v", err)
		}
		if dropped := rejects.Dropped(); dropped > 0 {
			log.Printf("Reject log dropped %d entries under load", dropped)
		}
	}

	var finalFrame string
	if surface != nil {
		surface.Stop()
		finalFrame = surface.FinalFrame()
		fanout.SetConsoleSink(os.Stdout, true)
	}

	log.Println("Consumer stopped")
	if err := fanout.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Logging: close: %v\n", err)
	}
	if finalFrame != "" {
		fmt.Println(finalFrame)
	}
}
