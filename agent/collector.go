package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/RipinDensumite/thinwatcher/models"
)

const sessionStateActive = "Active"

// Snapshot is what the agent knows about the machine right now.
type Snapshot struct {
	OS       string
	Users    []string
	Sessions []models.Session
}

// HostCollector reads OS and login information through gopsutil.
type HostCollector struct {
	info  func(ctx context.Context) (*host.InfoStat, error)
	users func(ctx context.Context) ([]host.UserStat, error)
}

func NewHostCollector() *HostCollector {
	return &HostCollector{
		info:  host.InfoWithContext,
		users: host.UsersWithContext,
	}
}

// Collect never fails outright: a missing piece of information is reported
// as empty so the heartbeat still goes out.
func (c *HostCollector) Collect(ctx context.Context) (Snapshot, []error) {
	var (
		snap Snapshot
		errs []error
	)

	info, err := c.info(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("host info: %w", err))
	} else {
		snap.OS = describeOS(info)
	}

	stats, err := c.users(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("logged in users: %w", err))
	}
	snap.Users, snap.Sessions = sessionsFromUsers(stats)

	return snap, errs
}

func describeOS(info *host.InfoStat) string {
	parts := make([]string, 0, 2)
	if info.Platform != "" {
		parts = append(parts, info.Platform)
	} else if info.OS != "" {
		parts = append(parts, info.OS)
	}
	if info.PlatformVersion != "" {
		parts = append(parts, info.PlatformVersion)
	}
	return strings.Join(parts, " ")
}

// sessionsFromUsers turns utmp-style entries into one session per terminal
// and a de-duplicated user list in first-seen order.
func sessionsFromUsers(stats []host.UserStat) ([]string, []models.Session) {
	users := []string{}
	sessions := []models.Session{}
	seen := make(map[string]bool)

	for i, st := range stats {
		if st.User == "" {
			continue
		}
		if !seen[st.User] {
			seen[st.User] = true
			users = append(users, st.User)
		}

		id := st.Terminal
		if id == "" {
			id = fmt.Sprintf("%s-%d", st.User, i)
		}
		sessions = append(sessions, models.Session{
			ID:    id,
			User:  st.User,
			State: sessionStateActive,
		})
	}
	return users, sessions
}
