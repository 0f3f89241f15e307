package models

import "time"

// Session is a login session reported by an agent.
type Session struct {
	ID    string `json:"id" binding:"required"`
	User  string `json:"user"`
	State string `json:"state"` // Active, Listen, Disconnected, ...
}

// TerminateCommand is the out-of-band marker attached to a client when a
// dashboard asks for one of its sessions to be logged off.
type TerminateCommand struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
}

const TerminateActionLogoff = "logoff"

// ClientStatus is the last known state of a thin client.
type ClientStatus struct {
	IsOnline         bool              `json:"isOnline"`
	OS               string            `json:"os,omitempty"`
	Users            []string          `json:"users"`
	Sessions         []Session         `json:"sessions"`
	LastUpdated      time.Time         `json:"lastUpdated"`
	TerminateCommand *TerminateCommand `json:"terminateCommand,omitempty"`
}

// Clone returns a deep copy so callers never share slices with the registry.
func (s ClientStatus) Clone() ClientStatus {
	out := s
	out.Users = append(make([]string, 0, len(s.Users)), s.Users...)
	out.Sessions = append(make([]Session, 0, len(s.Sessions)), s.Sessions...)
	if s.TerminateCommand != nil {
		cmd := *s.TerminateCommand
		out.TerminateCommand = &cmd
	}
	return out
}

// ClientEntry pairs a client id with its status. It is the element of the
// client list and of the initial-data snapshot.
type ClientEntry struct {
	ClientID string       `json:"clientId"`
	Status   ClientStatus `json:"status"`
}

// StatusReport is the heartbeat payload posted by agents.
type StatusReport struct {
	ClientID string    `json:"clientId" binding:"required"`
	Users    []string  `json:"users"`
	Sessions []Session `json:"sessions" binding:"dive"`
	OS       string    `json:"os"`
}

// StatusReportResponse acknowledges a heartbeat and hands back any terminate
// command that was pending on the replaced record.
type StatusReportResponse struct {
	Status           string            `json:"status"`
	TerminateCommand *TerminateCommand `json:"terminateCommand,omitempty"`
}

type TerminateRequest struct {
	ClientID  string `json:"clientId" binding:"required"`
	SessionID string `json:"sessionId" binding:"required"`
}

type ClientExistsResponse struct {
	Exists bool `json:"exists"`
}
