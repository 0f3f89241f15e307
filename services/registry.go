package services

import (
	"sync"
	"time"

	"github.com/RipinDensumite/thinwatcher/models"
)

// Registry is the authoritative in-memory map of client id to status.
// Every value handed out is a deep copy.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]models.ClientStatus
	order   []string // insertion order of ids
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]models.ClientStatus),
	}
}

// Upsert replaces the whole record for id and returns the record it replaced.
func (r *Registry) Upsert(id string, status models.ClientStatus) (models.ClientStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.clients[id]
	if !existed {
		r.order = append(r.order, id)
	}
	r.clients[id] = status.Clone()
	return prev, existed
}

func (r *Registry) Get(id string) (models.ClientStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status, ok := r.clients[id]
	if !ok {
		return models.ClientStatus{}, false
	}
	return status.Clone(), true
}

func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.clients[id]
	return ok
}

// Remove deletes id and reports whether anything was deleted.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[id]; !ok {
		return false
	}
	delete(r.clients, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// ListAll returns a snapshot of every record in insertion order.
func (r *Registry) ListAll() []models.ClientEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]models.ClientEntry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, models.ClientEntry{
			ClientID: id,
			Status:   r.clients[id].Clone(),
		})
	}
	return entries
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// ExpireStale marks every online record last updated before cutoff as
// offline, clears its users and sessions, and returns the changed records.
func (r *Registry) ExpireStale(cutoff time.Time) []models.ClientEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []models.ClientEntry
	for _, id := range r.order {
		status := r.clients[id]
		if !status.IsOnline || !status.LastUpdated.Before(cutoff) {
			continue
		}

		status.IsOnline = false
		status.Users = []string{}
		status.Sessions = []models.Session{}
		r.clients[id] = status

		expired = append(expired, models.ClientEntry{ClientID: id, Status: status.Clone()})
	}
	return expired
}

// AttachTerminateCommand stores cmd on the record for id. The marker lives
// until the next heartbeat replaces the record.
func (r *Registry) AttachTerminateCommand(id string, cmd models.TerminateCommand) (models.ClientStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status, ok := r.clients[id]
	if !ok {
		return models.ClientStatus{}, false
	}
	status.TerminateCommand = &cmd
	r.clients[id] = status
	return status.Clone(), true
}
