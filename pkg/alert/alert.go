// Package alert delivers notifications for funds whose normalized score
// crosses the configured threshold.
package alert

import (
	"context"
	"errors"
	"fmt"
)

// Notification is the data sent to alert destinations.
type Notification struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Group    string  `json:"group"`
	Score    float64 `json:"score"`
	RawScore float64 `json:"raw_score"`
	Body     string  `json:"body"`
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
