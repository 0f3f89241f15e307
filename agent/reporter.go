package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/RipinDensumite/thinwatcher/models"
	"github.com/RipinDensumite/thinwatcher/utils"
)

const statusPath = "/api/clients/status"

// Reporter posts heartbeats to the server.
type Reporter struct {
	serverURL string
	clientID  string
	client    *http.Client
}

func NewReporter(serverURL, clientID string, client *http.Client) *Reporter {
	return &Reporter{
		serverURL: strings.TrimRight(serverURL, "/"),
		clientID:  clientID,
		client:    client,
	}
}

// NewHTTPClient returns a client for serverURL. HTTPS servers are spoken to
// over HTTP/2.
func NewHTTPClient(serverURL string, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if strings.HasPrefix(serverURL, "https://") {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("failed to enable HTTP/2: %w", err)
		}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}

// Report sends one heartbeat and returns the terminate command the server
// handed back, if any.
func (r *Reporter) Report(ctx context.Context, snap Snapshot) (*models.TerminateCommand, error) {
	body, err := json.Marshal(models.StatusReport{
		ClientID: r.clientID,
		Users:    snap.Users,
		Sessions: snap.Sessions,
		OS:       snap.OS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.serverURL+statusPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send heartbeat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("server rejected heartbeat: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var ack models.StatusReportResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("failed to decode heartbeat response: %w", err)
	}
	return ack.TerminateCommand, nil
}

// Terminator acts on a terminate command received from the server.
type Terminator interface {
	Terminate(ctx context.Context, cmd models.TerminateCommand) error
}

// LogTerminator only records the command. Actual logoff is left to the
// machine's own tooling.
type LogTerminator struct {
	logger *utils.Logger
}

func (t LogTerminator) Terminate(ctx context.Context, cmd models.TerminateCommand) error {
	t.logger.Warn("Terminate command received", "command_id", cmd.ID, "action", cmd.Action, "session_id", cmd.SessionID)
	return nil
}
