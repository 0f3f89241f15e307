package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RipinDensumite/thinwatcher/models"
	"github.com/RipinDensumite/thinwatcher/utils"
)

const maxClientIDLength = 128

// Relay forwards locally produced events beyond this process.
type Relay interface {
	Forward(event models.Event)
}

// PresenceService is the entry point used by agents and dashboards. Records
// live in the Registry, fan-out goes through the Hub and, when configured,
// the Relay. Every mutation and its broadcast happen under mu, so viewers see
// a client's changes in the order they were applied.
type PresenceService struct {
	mu       sync.Mutex
	registry *Registry
	hub      *Hub
	relay    Relay
	logger   *utils.Logger
	now      func() time.Time
}

func NewPresenceService(registry *Registry, hub *Hub, logger *utils.Logger) *PresenceService {
	return &PresenceService{
		registry: registry,
		hub:      hub,
		logger:   logger,
		now:      time.Now,
	}
}

// SetRelay attaches a relay. Call before serving traffic.
func (ps *PresenceService) SetRelay(relay Relay) {
	ps.relay = relay
}

// SetClock overrides the time source used to stamp heartbeats.
func (ps *PresenceService) SetClock(now func() time.Time) {
	ps.now = now
}

func (ps *PresenceService) Registry() *Registry {
	return ps.registry
}

func (ps *PresenceService) Hub() *Hub {
	return ps.hub
}

// publish hands event to the relay and the local dashboards. Callers hold mu.
func (ps *PresenceService) publish(event models.Event) {
	if ps.relay != nil {
		ps.relay.Forward(event)
	}
	ps.hub.Publish(event)
}

// ReportStatus records a heartbeat: the client is online as of now and its
// record is replaced wholesale. A terminate command pending on the replaced
// record is returned so the agent can act on it.
func (ps *PresenceService) ReportStatus(ctx context.Context, report models.StatusReport) (*models.TerminateCommand, error) {
	clientID, err := validateReport(report)
	if err != nil {
		return nil, err
	}

	status := models.ClientStatus{
		IsOnline: true,
		OS:       report.OS,
		Users:    report.Users,
		Sessions: report.Sessions,
	}
	if status.Users == nil {
		status.Users = []string{}
	}
	if status.Sessions == nil {
		status.Sessions = []models.Session{}
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	// Stamped under the lock so timestamps follow apply order
	status.LastUpdated = ps.now()
	prev, existed := ps.registry.Upsert(clientID, status)
	if !existed || !prev.IsOnline {
		ps.logger.Info("Client online", "client_id", clientID, "os", report.OS)
	} else {
		ps.logger.Debug("Heartbeat", "client_id", clientID, "sessions", len(status.Sessions))
	}

	ps.publish(models.NewUpdateEvent(clientID, status.Clone()))

	if existed && prev.TerminateCommand != nil {
		return prev.TerminateCommand, nil
	}
	return nil, nil
}

func validateReport(report models.StatusReport) (string, error) {
	clientID := strings.TrimSpace(report.ClientID)
	if clientID == "" {
		return "", newValidationError("clientId", "is required")
	}
	if len(clientID) > maxClientIDLength {
		return "", newValidationError("clientId", "must be at most %d characters", maxClientIDLength)
	}
	for i, s := range report.Sessions {
		if strings.TrimSpace(s.ID) == "" {
			return "", newValidationError("sessions", "entry %d has no id", i)
		}
	}
	for i, u := range report.Users {
		if strings.TrimSpace(u) == "" {
			return "", newValidationError("users", "entry %d is empty", i)
		}
	}
	return clientID, nil
}

func (ps *PresenceService) ListClients() []models.ClientEntry {
	return ps.registry.ListAll()
}

func (ps *PresenceService) GetClient(clientID string) (models.ClientStatus, bool) {
	return ps.registry.Get(clientID)
}

func (ps *PresenceService) ClientExists(clientID string) bool {
	return ps.registry.Has(clientID)
}

// RemoveClient deletes the record and broadcasts client-removed.
func (ps *PresenceService) RemoveClient(ctx context.Context, clientID string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.registry.Remove(clientID) {
		return ErrClientNotFound
	}

	ps.logger.Info("Removed client", "client_id", clientID)
	ps.publish(models.NewRemovedEvent(clientID))
	return nil
}

// TerminateSession attaches a logoff command to the client and broadcasts a
// terminate event. The agent performs the termination itself.
func (ps *PresenceService) TerminateSession(ctx context.Context, clientID, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return newValidationError("sessionId", "is required")
	}

	cmd := models.TerminateCommand{
		ID:        uuid.NewString(),
		Action:    models.TerminateActionLogoff,
		SessionID: sessionID,
		Timestamp: ps.now(),
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, ok := ps.registry.AttachTerminateCommand(clientID, cmd); !ok {
		return ErrClientNotFound
	}

	ps.logger.Info("Session termination requested", "client_id", clientID, "session_id", sessionID, "command_id", cmd.ID)
	ps.publish(models.NewTerminateEvent(clientID, cmd))
	return nil
}

// ExpireStale flips every online client last heard from before cutoff to
// offline and broadcasts an update for each. The sweeper drives it.
func (ps *PresenceService) ExpireStale(cutoff time.Time) []models.ClientEntry {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	expired := ps.registry.ExpireStale(cutoff)
	for _, entry := range expired {
		ps.publish(models.NewUpdateEvent(entry.ClientID, entry.Status))
	}
	return expired
}

// ApplyRemote applies an event produced by another instance to the local
// registry and dashboards. It is never forwarded to the relay again.
func (ps *PresenceService) ApplyRemote(event models.Event) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	switch event.Type {
	case models.EventUpdate:
		if event.Status == nil {
			return
		}
		ps.registry.Upsert(event.ClientID, *event.Status)
	case models.EventClientRemoved:
		if !ps.registry.Remove(event.ClientID) {
			return
		}
	case models.EventTerminate:
		if event.Command == nil {
			return
		}
		if _, ok := ps.registry.AttachTerminateCommand(event.ClientID, *event.Command); !ok {
			return
		}
	default:
		ps.logger.Warn("Ignoring unknown remote event", "type", event.Type)
		return
	}
	ps.hub.Publish(event)
}

// Restore loads previously mirrored records into the registry. Restored
// records keep their lastUpdated, so the sweeper expires stale ones.
func (ps *PresenceService) Restore(entries []models.ClientEntry) int {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for _, entry := range entries {
		ps.registry.Upsert(entry.ClientID, entry.Status)
	}
	return len(entries)
}
