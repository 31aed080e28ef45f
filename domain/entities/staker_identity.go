package entities

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

// StakerKind identifies which StakerIdentity variant is active
type StakerKind string

const (
	StakerKindRegistered StakerKind = "registered"
	StakerKindManual     StakerKind = "manual"
)

// StakerIdentity is either a registered platform account or a manual,
// off-platform backer tracked by display name.
type StakerIdentity struct {
	Kind        StakerKind `json:"kind"`
	UserID      string     `json:"user_id,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	DirectoryID *string    `json:"directory_id,omitempty"`
}

// RegisteredStaker builds the registered variant
func RegisteredStaker(userID string) StakerIdentity {
	return StakerIdentity{Kind: StakerKindRegistered, UserID: userID}
}

// ManualStaker builds the manual variant; directoryID may be nil
func ManualStaker(name string, directoryID *string) StakerIdentity {
	return StakerIdentity{Kind: StakerKindManual, DisplayName: name, DirectoryID: directoryID}
}

// IsRegistered checks if the staker has a platform account
func (s StakerIdentity) IsRegistered() bool {
	return s.Kind == StakerKindRegistered
}

// IsManual checks if the staker is tracked off-platform
func (s StakerIdentity) IsManual() bool {
	return s.Kind == StakerKindManual
}

// Validate ensures exactly one variant is populated
func (s StakerIdentity) Validate() error {
	switch s.Kind {
	case StakerKindRegistered:
		if strings.TrimSpace(s.UserID) == "" {
			return NewValidationError("staker", "registered staker requires a user id")
		}
		if s.DisplayName != "" || s.DirectoryID != nil {
			return NewValidationError("staker", "registered staker must not carry manual fields")
		}
	case StakerKindManual:
		if s.UserID != "" {
			return NewValidationError("staker", "manual staker must not carry a user id")
		}
		if s.DirectoryID != nil && strings.TrimSpace(*s.DirectoryID) != "" {
			return nil
		}
		if NormalizeStakerName(s.DisplayName) == "" {
			return NewValidationError("staker", "manual staker requires a display name")
		}
	case "":
		return NewValidationError("staker", "missing staker identity")
	default:
		return NewValidationError("staker", fmt.Sprintf("unknown staker kind %q", s.Kind))
	}
	return nil
}

// Key returns the deduplication key used to match drafts and persisted
// agreements for the same backer.
func (s StakerIdentity) Key() string {
	if s.IsRegistered() {
		return "user:" + s.UserID
	}
	if s.DirectoryID != nil && strings.TrimSpace(*s.DirectoryID) != "" {
		return "dir:" + strings.TrimSpace(*s.DirectoryID)
	}
	return "name:" + NormalizeStakerName(s.DisplayName)
}

// String is used in log fields
func (s StakerIdentity) String() string {
	if s.IsRegistered() {
		return s.Key()
	}
	return fmt.Sprintf("%s (%s)", s.DisplayName, s.Key())
}

// NormalizeStakerName folds a manual staker's display name so that
// "José  Pérez" and "jose perez" collapse to the same key.
func NormalizeStakerName(name string) string {
	return slug.Make(strings.TrimSpace(name))
}
