package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RipinDensumite/thinwatcher/models"
	"github.com/RipinDensumite/thinwatcher/utils"
)

type recordingRelay struct {
	events []models.Event
}

func (r *recordingRelay) Forward(event models.Event) {
	r.events = append(r.events, event)
}

func TestReportStatusScenario(t *testing.T) {
	ps, clock := newTestPresence(t)
	sub := ps.Hub().Subscribe()

	pending, err := ps.ReportStatus(context.Background(), agentReport())
	if err != nil {
		t.Fatalf("ReportStatus() error = %v", err)
	}
	if pending != nil {
		t.Fatalf("pending command on first heartbeat: %+v", pending)
	}

	clients := ps.ListClients()
	if len(clients) != 1 {
		t.Fatalf("ListClients() = %d entries, want 1", len(clients))
	}
	entry := clients[0]
	want := models.ClientStatus{
		IsOnline:    true,
		OS:          "Windows 10 Pro",
		Users:       []string{"alice"},
		Sessions:    []models.Session{{ID: "1", User: "alice", State: "Active"}},
		LastUpdated: clock.Now(),
	}
	if entry.ClientID != "AGENT-1" || !reflect.DeepEqual(entry.Status, want) {
		t.Fatalf("entry = %+v, want %+v", entry, want)
	}

	ev := receive(t, sub)
	if ev.Type != models.EventUpdate || ev.ClientID != "AGENT-1" || !reflect.DeepEqual(*ev.Status, want) {
		t.Fatalf("update event = %+v", ev)
	}
}

func TestReportStatusNormalizesNilLists(t *testing.T) {
	ps, _ := newTestPresence(t)

	if _, err := ps.ReportStatus(context.Background(), models.StatusReport{ClientID: "AGENT-2"}); err != nil {
		t.Fatalf("ReportStatus() error = %v", err)
	}
	got, _ := ps.GetClient("AGENT-2")
	if got.Users == nil || got.Sessions == nil {
		t.Fatalf("record = %+v, want empty non-nil lists", got)
	}
}

func TestReportStatusValidation(t *testing.T) {
	tests := []struct {
		name   string
		report models.StatusReport
		field  string
	}{
		{"missing id", models.StatusReport{}, "clientId"},
		{"blank id", models.StatusReport{ClientID: "   "}, "clientId"},
		{"long id", models.StatusReport{ClientID: strings.Repeat("x", 129)}, "clientId"},
		{"session without id", models.StatusReport{ClientID: "A", Sessions: []models.Session{{User: "alice"}}}, "sessions"},
		{"empty user", models.StatusReport{ClientID: "A", Users: []string{"alice", ""}}, "users"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps, _ := newTestPresence(t)
			sub := ps.Hub().Subscribe()

			_, err := ps.ReportStatus(context.Background(), tt.report)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
			if ps.Registry().Len() != 0 {
				t.Error("rejected report reached the registry")
			}
			assertNoEvent(t, sub)
		})
	}
}

func TestReportStatusTrimsClientID(t *testing.T) {
	ps, _ := newTestPresence(t)
	report := agentReport()
	report.ClientID = "  AGENT-1 "

	ps.ReportStatus(context.Background(), report)

	if !ps.ClientExists("AGENT-1") {
		t.Fatal("trimmed id not registered")
	}
}

func TestRemoveClient(t *testing.T) {
	ps, _ := newTestPresence(t)
	ps.ReportStatus(context.Background(), agentReport())
	sub := ps.Hub().Subscribe()

	if err := ps.RemoveClient(context.Background(), "UNKNOWN-X"); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("RemoveClient(unknown) = %v, want ErrClientNotFound", err)
	}
	if len(ps.ListClients()) != 1 {
		t.Fatal("registry changed after failed removal")
	}
	assertNoEvent(t, sub)

	if err := ps.RemoveClient(context.Background(), "AGENT-1"); err != nil {
		t.Fatalf("RemoveClient() error = %v", err)
	}
	if len(ps.ListClients()) != 0 || ps.ClientExists("AGENT-1") {
		t.Fatal("client still listed after removal")
	}

	ev := receive(t, sub)
	if ev.Type != models.EventClientRemoved || ev.ClientID != "AGENT-1" {
		t.Fatalf("event = %+v", ev)
	}

	// A removed client reappears on its next heartbeat
	ps.ReportStatus(context.Background(), agentReport())
	if !ps.ClientExists("AGENT-1") {
		t.Fatal("client did not reappear")
	}
}

func TestTerminateSession(t *testing.T) {
	ps, clock := newTestPresence(t)
	ps.ReportStatus(context.Background(), agentReport())
	sub := ps.Hub().Subscribe()

	if err := ps.TerminateSession(context.Background(), "UNKNOWN-X", "1"); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("TerminateSession(unknown) = %v, want ErrClientNotFound", err)
	}
	assertNoEvent(t, sub)

	if err := ps.TerminateSession(context.Background(), "AGENT-1", "1"); err != nil {
		t.Fatalf("TerminateSession() error = %v", err)
	}

	ev := receive(t, sub)
	if ev.Type != models.EventTerminate || ev.ClientID != "AGENT-1" || ev.SessionID != "1" {
		t.Fatalf("event = %+v", ev)
	}
	msg := ev.Message()
	if payload, ok := msg.Data.(models.TerminatePayload); !ok || payload != (models.TerminatePayload{ClientID: "AGENT-1", SessionID: "1"}) {
		t.Fatalf("wire payload = %#v", msg.Data)
	}

	status, _ := ps.GetClient("AGENT-1")
	cmd := status.TerminateCommand
	if cmd == nil || cmd.Action != models.TerminateActionLogoff || cmd.SessionID != "1" || cmd.ID == "" || !cmd.Timestamp.Equal(clock.Now()) {
		t.Fatalf("terminate marker = %+v", cmd)
	}

	// The agent's next heartbeat collects the pending command
	pending, err := ps.ReportStatus(context.Background(), agentReport())
	if err != nil {
		t.Fatalf("ReportStatus() error = %v", err)
	}
	if pending == nil || pending.ID != cmd.ID {
		t.Fatalf("pending = %+v, want %+v", pending, cmd)
	}
	if again, _ := ps.ReportStatus(context.Background(), agentReport()); again != nil {
		t.Fatalf("command handed out twice: %+v", again)
	}
}

func TestTerminateSessionRequiresSessionID(t *testing.T) {
	ps, _ := newTestPresence(t)
	ps.ReportStatus(context.Background(), agentReport())

	var verr *ValidationError
	if err := ps.TerminateSession(context.Background(), "AGENT-1", " "); !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestPublishForwardsToRelay(t *testing.T) {
	ps, _ := newTestPresence(t)
	relay := &recordingRelay{}
	ps.SetRelay(relay)

	ps.ReportStatus(context.Background(), agentReport())
	ps.TerminateSession(context.Background(), "AGENT-1", "1")
	ps.RemoveClient(context.Background(), "AGENT-1")

	var types []models.EventType
	for _, ev := range relay.events {
		types = append(types, ev.Type)
	}
	want := []models.EventType{models.EventUpdate, models.EventTerminate, models.EventClientRemoved}
	if !reflect.DeepEqual(types, want) {
		t.Fatalf("relayed = %v, want %v", types, want)
	}
}

func TestApplyRemote(t *testing.T) {
	ps, clock := newTestPresence(t)
	relay := &recordingRelay{}
	ps.SetRelay(relay)
	sub := ps.Hub().Subscribe()

	status := models.ClientStatus{IsOnline: true, Users: []string{"alice"}, Sessions: []models.Session{}, LastUpdated: clock.Now()}
	ps.ApplyRemote(models.NewUpdateEvent("REMOTE-1", status))
	if got, ok := ps.GetClient("REMOTE-1"); !ok || !got.IsOnline {
		t.Fatalf("remote update not applied: %+v", got)
	}
	if ev := receive(t, sub); ev.Type != models.EventUpdate {
		t.Fatalf("event = %+v", ev)
	}

	ps.ApplyRemote(models.NewTerminateEvent("REMOTE-1", models.TerminateCommand{ID: "x", SessionID: "3"}))
	if got, _ := ps.GetClient("REMOTE-1"); got.TerminateCommand == nil || got.TerminateCommand.ID != "x" {
		t.Fatalf("remote terminate not applied: %+v", got)
	}
	receive(t, sub)

	ps.ApplyRemote(models.NewRemovedEvent("REMOTE-1"))
	if ps.ClientExists("REMOTE-1") {
		t.Fatal("remote removal not applied")
	}
	receive(t, sub)

	// Removal of an unknown client is not rebroadcast
	ps.ApplyRemote(models.NewRemovedEvent("REMOTE-1"))
	assertNoEvent(t, sub)

	if len(relay.events) != 0 {
		t.Fatalf("remote events were relayed again: %+v", relay.events)
	}
}

// interleavingRelay starts a heartbeat from another goroutine the first time
// it sees an offline update, and gives it time to run before returning.
type interleavingRelay struct {
	ps   *PresenceService
	once sync.Once
	done chan struct{}
}

func (r *interleavingRelay) Forward(event models.Event) {
	if event.Type != models.EventUpdate || event.Status == nil || event.Status.IsOnline {
		return
	}
	r.once.Do(func() {
		go func() {
			defer close(r.done)
			r.ps.ReportStatus(context.Background(), agentReport())
		}()
		time.Sleep(50 * time.Millisecond)
	})
}

func TestExpiryAndHeartbeatBroadcastInOrder(t *testing.T) {
	ps, clock := newTestPresence(t)
	relay := &interleavingRelay{ps: ps, done: make(chan struct{})}
	ps.SetRelay(relay)

	ps.ReportStatus(context.Background(), agentReport())
	sub := ps.Hub().Subscribe()

	clock.Advance(time.Minute)
	if n := NewSweeper(ps, 10*time.Second, 20*time.Second, utils.NewNopLogger()).Sweep(clock.Now()); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
	<-relay.done

	offline := receive(t, sub)
	online := receive(t, sub)
	if offline.Status.IsOnline || !online.Status.IsOnline {
		t.Fatalf("events out of order: %+v then %+v", offline.Status, online.Status)
	}

	got, _ := ps.GetClient("AGENT-1")
	if got.IsOnline != online.Status.IsOnline {
		t.Fatalf("registry isOnline=%v, last broadcast isOnline=%v", got.IsOnline, online.Status.IsOnline)
	}
}

func TestConcurrentWritersBroadcastFinalState(t *testing.T) {
	logger := utils.NewNopLogger()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	ps := NewPresenceService(NewRegistry(), NewHubWithBuffer(10000, logger), logger)
	ps.SetClock(clock.Now)
	sub := ps.Hub().Subscribe()

	ids := []string{"AGENT-1", "AGENT-2", "AGENT-3", "AGENT-4"}
	const rounds = 200

	var wg sync.WaitGroup
	for w, id := range ids {
		wg.Add(3)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				report := agentReport()
				report.ClientID = id
				if _, err := ps.ReportStatus(context.Background(), report); err != nil {
					t.Errorf("ReportStatus(%s) error = %v", id, err)
					return
				}
			}
		}(id)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < rounds/4; i++ {
				ps.RemoveClient(context.Background(), id)
			}
		}(id)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				if w%2 == 0 {
					// Cutoff in the future expires every online client
					ps.ExpireStale(clock.Now().Add(time.Hour))
				} else {
					ps.ListClients()
				}
			}
		}(w)
	}
	wg.Wait()

	last := make(map[string]models.Event)
drain:
	for {
		select {
		case ev := <-sub.C:
			last[ev.ClientID] = ev
		default:
			break drain
		}
	}

	for _, id := range ids {
		got, exists := ps.GetClient(id)
		ev, seen := last[id]
		switch {
		case !seen:
			if exists {
				t.Errorf("%s: in registry but never broadcast", id)
			}
		case ev.Type == models.EventClientRemoved:
			if exists {
				t.Errorf("%s: last event client-removed but registry has %+v", id, got)
			}
		case ev.Type == models.EventUpdate:
			if !exists || got.IsOnline != ev.Status.IsOnline || len(got.Users) != len(ev.Status.Users) {
				t.Errorf("%s: registry %+v (exists=%v), last event %+v", id, got, exists, ev.Status)
			}
		default:
			t.Errorf("%s: unexpected last event %+v", id, ev)
		}
	}
}
