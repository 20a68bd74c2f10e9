// Package identity is the static stand-in for the external identity
// collaborator: it answers admin checks and hands out the display snapshot
// used to seed new wallets.
package identity

import (
	"context"
	"strings"

	"github.com/MarkoPoloResearchLab/coinledger/pkg/coinledger"
)

// Directory implements coinledger.IdentityDirectory from a fixed admin set
// and an optional profile table.
type Directory struct {
	admins   map[string]struct{}
	profiles map[string]coinledger.OwnerProfile
}

// NewDirectory builds a directory from admin user ids and known profiles.
// Users absent from the profile table still exist; they get an empty
// display snapshot.
func NewDirectory(adminIDs []string, profiles map[string]coinledger.OwnerProfile) *Directory {
	admins := make(map[string]struct{}, len(adminIDs))
	for _, adminID := range adminIDs {
		trimmed := strings.TrimSpace(adminID)
		if trimmed != "" {
			admins[trimmed] = struct{}{}
		}
	}
	if profiles == nil {
		profiles = map[string]coinledger.OwnerProfile{}
	}
	return &Directory{admins: admins, profiles: profiles}
}

func (directory *Directory) UserExists(ctx context.Context, userID string) (bool, error) {
	return strings.TrimSpace(userID) != "", nil
}

func (directory *Directory) IsAdmin(ctx context.Context, userID string) (bool, error) {
	_, isAdmin := directory.admins[userID]
	return isAdmin, nil
}

func (directory *Directory) Profile(ctx context.Context, userID string) (coinledger.OwnerProfile, error) {
	return directory.profiles[userID], nil
}
