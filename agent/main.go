// Command agent runs on a thin client and reports its logged-in users and
// sessions to the ThinWatcher server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RipinDensumite/thinwatcher/utils"
)

func main() {
	cfg := LoadConfig()
	logger := utils.NewLogger().With("client_id", cfg.ClientID)

	if cfg.ClientID == "" {
		logger.Fatal("CLIENT_ID is not set and the hostname is unavailable")
	}

	client, err := NewHTTPClient(cfg.ServerURL, cfg.RequestTimeout)
	if err != nil {
		logger.Fatal("Failed to create HTTP client", "error", err)
	}

	agent := &Agent{
		collector:  NewHostCollector(),
		reporter:   NewReporter(cfg.ServerURL, cfg.ClientID, client),
		terminator: LogTerminator{logger: logger},
		logger:     logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting agent", "server", cfg.ServerURL, "interval", cfg.HeartbeatInterval.String())
	agent.Run(ctx, cfg.HeartbeatInterval)
	logger.Info("Agent stopped")
}

type collector interface {
	Collect(ctx context.Context) (Snapshot, []error)
}

// Agent sends a heartbeat immediately and then once per interval.
type Agent struct {
	collector  collector
	reporter   *Reporter
	terminator Terminator
	logger     *utils.Logger

	lastCommandID string
}

func (a *Agent) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a.Beat(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Beat collects and reports once. Failures are logged; the next tick retries.
func (a *Agent) Beat(ctx context.Context) {
	snap, errs := a.collector.Collect(ctx)
	for _, err := range errs {
		a.logger.Warn("Partial host information", "error", err)
	}

	cmd, err := a.reporter.Report(ctx, snap)
	if err != nil {
		a.logger.Error("Heartbeat failed", "error", err)
		return
	}
	a.logger.Debug("Heartbeat sent", "users", len(snap.Users), "sessions", len(snap.Sessions))

	if cmd == nil || cmd.ID == a.lastCommandID {
		return
	}
	a.lastCommandID = cmd.ID
	if err := a.terminator.Terminate(ctx, *cmd); err != nil {
		a.logger.Error("Failed to terminate session", "session_id", cmd.SessionID, "error", err)
	}
}
