package lifecycle

import (
	"context"

	"github.com/company/betterteams/internal/addon"
)

// Action names a state change.
type Action string

const (
	Installed        Action = "installed"
	Uninstalled      Action = "uninstalled"
	Activated        Action = "activated"
	Deactivated      Action = "deactivated"
	ThemeActivated   Action = "theme_activated"
	ThemeDeactivated Action = "theme_deactivated"
)

// Event is emitted once per successful mutation, after it is persisted.
type Event struct {
	Action Action
	Kind   addon.Kind
	ID     string
	Name   string
}

// Notifier receives events. ctx is the context of the mutating call, so a
// notifier can tell who asked for the change.
type Notifier interface {
	AddonsChanged(ctx context.Context, ev Event)
}
