package services

import (
	"testing"
	"time"

	"github.com/RipinDensumite/thinwatcher/models"
)

func onlineStatus(at time.Time, users ...string) models.ClientStatus {
	sessions := make([]models.Session, 0, len(users))
	for i, u := range users {
		sessions = append(sessions, models.Session{ID: string(rune('1' + i)), User: u, State: "Active"})
	}
	if users == nil {
		users = []string{}
	}
	return models.ClientStatus{IsOnline: true, Users: users, Sessions: sessions, LastUpdated: at}
}

func TestRegistryUpsertReplacesWholesale(t *testing.T) {
	r := NewRegistry()
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	first := onlineStatus(t0, "alice", "bob")
	first.OS = "Windows 10"
	if _, existed := r.Upsert("AGENT-1", first); existed {
		t.Fatal("first Upsert reported an existing record")
	}

	second := onlineStatus(t0.Add(5*time.Second), "carol")
	prev, existed := r.Upsert("AGENT-1", second)
	if !existed {
		t.Fatal("second Upsert did not report the existing record")
	}
	if len(prev.Users) != 2 {
		t.Errorf("previous record users = %v", prev.Users)
	}

	got, ok := r.Get("AGENT-1")
	if !ok {
		t.Fatal("Get() not found")
	}
	if got.OS != "" {
		t.Errorf("OS = %q, want empty after wholesale replace", got.OS)
	}
	if len(got.Users) != 1 || got.Users[0] != "carol" {
		t.Errorf("Users = %v, want [carol]", got.Users)
	}
	if !got.LastUpdated.Equal(t0.Add(5 * time.Second)) {
		t.Errorf("LastUpdated = %v", got.LastUpdated)
	}
}

func TestRegistryLastWriteWins(t *testing.T) {
	r := NewRegistry()
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	stamps := []time.Time{t0, t0.Add(3 * time.Second), t0.Add(time.Second), t0.Add(9 * time.Second)}
	for _, ts := range stamps {
		r.Upsert("AGENT-1", onlineStatus(ts))
	}

	got, _ := r.Get("AGENT-1")
	if !got.LastUpdated.Equal(stamps[len(stamps)-1]) {
		t.Errorf("LastUpdated = %v, want %v", got.LastUpdated, stamps[len(stamps)-1])
	}
}

func TestRegistryReturnsCopies(t *testing.T) {
	r := NewRegistry()
	status := onlineStatus(time.Now(), "alice")
	r.Upsert("AGENT-1", status)

	// Mutating the caller's value must not reach the registry
	status.Users[0] = "mallory"

	got, _ := r.Get("AGENT-1")
	got.Sessions[0].State = "Disconnected"

	again, _ := r.Get("AGENT-1")
	if again.Users[0] != "alice" {
		t.Errorf("Users[0] = %q, registry shares the caller's slice", again.Users[0])
	}
	if again.Sessions[0].State != "Active" {
		t.Errorf("Sessions[0].State = %q, registry shares the returned slice", again.Sessions[0].State)
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	r.Upsert("AGENT-1", onlineStatus(time.Now()))
	r.Upsert("AGENT-2", onlineStatus(time.Now()))

	if r.Remove("UNKNOWN-X") {
		t.Error("Remove(unknown) = true")
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d after removing unknown id", r.Len())
	}

	if !r.Remove("AGENT-1") {
		t.Fatal("Remove(AGENT-1) = false")
	}
	if _, ok := r.Get("AGENT-1"); ok {
		t.Error("AGENT-1 still present after Remove")
	}
	if r.Remove("AGENT-1") {
		t.Error("second Remove(AGENT-1) = true")
	}

	entries := r.ListAll()
	if len(entries) != 1 || entries[0].ClientID != "AGENT-2" {
		t.Errorf("ListAll() = %+v", entries)
	}
}

func TestRegistryListAllInsertionOrder(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"C", "A", "B"} {
		r.Upsert(id, onlineStatus(time.Now()))
	}
	r.Upsert("A", onlineStatus(time.Now()))
	r.Remove("C")
	r.Upsert("C", onlineStatus(time.Now()))

	var ids []string
	for _, e := range r.ListAll() {
		ids = append(ids, e.ClientID)
	}
	want := []string{"A", "B", "C"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestRegistryExpireStale(t *testing.T) {
	r := NewRegistry()
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	r.Upsert("STALE", onlineStatus(t0, "alice"))
	r.Upsert("FRESH", onlineStatus(t0.Add(30*time.Second), "bob"))
	offline := onlineStatus(t0)
	offline.IsOnline = false
	r.Upsert("ALREADY-OFF", offline)

	expired := r.ExpireStale(t0.Add(10 * time.Second))
	if len(expired) != 1 || expired[0].ClientID != "STALE" {
		t.Fatalf("ExpireStale() = %+v, want only STALE", expired)
	}

	got, _ := r.Get("STALE")
	if got.IsOnline || len(got.Users) != 0 || len(got.Sessions) != 0 {
		t.Errorf("STALE after expiry = %+v", got)
	}
	if got.Users == nil || got.Sessions == nil {
		t.Error("expired record should hold empty, non-nil lists")
	}
	if !got.LastUpdated.Equal(t0) {
		t.Errorf("expiry changed LastUpdated to %v", got.LastUpdated)
	}

	if fresh, _ := r.Get("FRESH"); !fresh.IsOnline {
		t.Error("FRESH went offline")
	}

	if again := r.ExpireStale(t0.Add(10 * time.Second)); len(again) != 0 {
		t.Errorf("second ExpireStale() = %+v, want none", again)
	}
}

func TestRegistryAttachTerminateCommand(t *testing.T) {
	r := NewRegistry()
	cmd := models.TerminateCommand{ID: "c1", Action: models.TerminateActionLogoff, SessionID: "1"}

	if _, ok := r.AttachTerminateCommand("UNKNOWN-X", cmd); ok {
		t.Fatal("AttachTerminateCommand on unknown id succeeded")
	}
	if r.Len() != 0 {
		t.Fatal("AttachTerminateCommand created a record")
	}

	r.Upsert("AGENT-1", onlineStatus(time.Now(), "alice"))
	status, ok := r.AttachTerminateCommand("AGENT-1", cmd)
	if !ok || status.TerminateCommand == nil || status.TerminateCommand.SessionID != "1" {
		t.Fatalf("AttachTerminateCommand() = %+v, %v", status, ok)
	}

	// The next heartbeat replaces the record and clears the marker
	r.Upsert("AGENT-1", onlineStatus(time.Now(), "alice"))
	if got, _ := r.Get("AGENT-1"); got.TerminateCommand != nil {
		t.Error("terminate marker survived a heartbeat")
	}
}
