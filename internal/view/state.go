// Package view tracks which of the three application screens is shown and
// reacts to session changes reported by the auth layer.
package view

import "sync"

// State is one of the three top-level screens.
type State string

const (
	Landing State = "landing"
	Auth    State = "auth"
	App     State = "app"
)

// Router is the screen state machine for the dashboard client. It is driven
// by UI code, not by the HTTP layer. A session change always wins over the
// previously displayed screen: a live session forces App, a missing one
// forces Landing. Auth is only reachable through an explicit log-in action
// while signed out.
type Router struct {
	mu    sync.Mutex
	state State
}

// NewRouter starts on the landing screen until the startup session lookup
// reports otherwise.
func NewRouter() *Router {
	return &Router{state: Landing}
}

// Current returns the displayed screen.
func (r *Router) Current() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SessionChanged is the observer for auth notifications. It is called once
// on startup and again on every later change.
func (r *Router) SessionChanged(active bool) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if active {
		r.state = App
	} else {
		r.state = Landing
	}
	return r.state
}

// RequestLogin handles the explicit "log in" action from the landing screen.
// It is ignored while a session is live: App never transitions to Auth.
func (r *Router) RequestLogin() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != App {
		r.state = Auth
	}
	return r.state
}

// Logout handles the explicit "log out" action from the dashboard.
func (r *Router) Logout() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Landing
	return r.state
}
