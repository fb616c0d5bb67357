// Package navigation defines the contract between the auth core and the
// application's routing layer. The core signals session transitions; how the
// application moves between areas is its own business.
package navigation

import "github.com/rs/zerolog"

// Navigator is invoked by the auth core on every session transition.
type Navigator interface {
	NavigateToAuthenticatedArea()
	NavigateToUnauthenticatedArea()
}

var _ Navigator = (*LogNavigator)(nil)

// LogNavigator is a Navigator that only logs transitions. Useful for
// headless deployments and as a default when no routing layer is wired.
type LogNavigator struct {
	log zerolog.Logger
}

// NewLogNavigator creates a navigator that records transitions on log.
func NewLogNavigator(log zerolog.Logger) *LogNavigator {
	return &LogNavigator{log: log}
}

func (n *LogNavigator) NavigateToAuthenticatedArea() {
	n.log.Info().Str("area", "authenticated").Msg("navigation signal")
}

func (n *LogNavigator) NavigateToUnauthenticatedArea() {
	n.log.Info().Str("area", "unauthenticated").Msg("navigation signal")
}
