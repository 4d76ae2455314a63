package cluster

import (
	"fmt"
	"strings"
)

// Role selects how a process takes part in a run.
type Role int

const (
	// RoleStandalone runs users and writes the report from its own recorder.
	RoleStandalone Role = iota
	// RoleCoordinator receives worker batches and writes the unified report.
	RoleCoordinator
	// RoleWorker runs users and ships its samples to the coordinator.
	RoleWorker
)

func (r Role) String() string {
	switch r {
	case RoleStandalone:
		return "standalone"
	case RoleCoordinator:
		return "coordinator"
	case RoleWorker:
		return "worker"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Distributed reports whether the role is part of a multi-process run.
func (r Role) Distributed() bool {
	return r == RoleCoordinator || r == RoleWorker
}

// ParseRole converts a role name into a Role. An empty name is standalone.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standalone", "local":
		return RoleStandalone, nil
	case "coordinator", "master":
		return RoleCoordinator, nil
	case "worker":
		return RoleWorker, nil
	default:
		return RoleStandalone, fmt.Errorf("unknown role %q (use standalone, coordinator or worker)", s)
	}
}
