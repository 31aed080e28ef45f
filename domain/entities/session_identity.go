package entities

import (
	"fmt"
	"strings"
	"time"
)

const eventScopedPrefix = "event:"

// PersistentSessionIdentity is the stable session identifier agreements are
// filed under. It survives restarts and never changes once minted.
type PersistentSessionIdentity string

// DeriveSessionIdentity builds "{ownerID}_{epochSeconds}" from the session
// owner and its creation time.
func DeriveSessionIdentity(ownerID string, createdAt time.Time) PersistentSessionIdentity {
	return PersistentSessionIdentity(fmt.Sprintf("%s_%d", ownerID, createdAt.Unix()))
}

func (p PersistentSessionIdentity) String() string {
	return string(p)
}

// EventScopedSessionID is the provisional id used for agreements accepted
// from an invite before the player's session exists.
func EventScopedSessionID(eventID, stakedPlayerID string) string {
	return eventScopedPrefix + eventID + ":" + stakedPlayerID
}

// IsProvisionalSessionID reports whether id was produced by EventScopedSessionID
func IsProvisionalSessionID(id string) bool {
	return strings.HasPrefix(id, eventScopedPrefix)
}
