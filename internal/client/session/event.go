package session

import "github.com/dmitrijs2005/certhub/internal/client/models"

// State is the lifecycle state of a Store.
type State int

const (
	StateUninitialized State = iota
	StateRestoring
	StateActive
	StateRefreshing
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRestoring:
		return "restoring"
	case StateActive:
		return "active"
	case StateRefreshing:
		return "refreshing"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

type EventType int

const (
	// EventEstablished: a session came into being via login, register or restore.
	EventEstablished EventType = iota + 1
	// EventRefreshed: the token pair (and possibly the identity) was replaced.
	EventRefreshed
	// EventCleared: the session is gone; see Event.Reason.
	EventCleared
)

// Reason explains an EventCleared.
type Reason string

const (
	ReasonLogout  Reason = "logout"
	ReasonExpired Reason = "expired"
	ReasonCorrupt Reason = "corrupt"
)

type Event struct {
	Type     EventType
	Identity *models.Identity
	Reason   Reason
}
