// Package identity models the opaque identity collaborator. The core never
// reads ambient process-wide state: an Identity is constructed once at the
// boundary and threaded through.
package identity

import (
	"github.com/google/uuid"

	"livequiz-service/internal/domain"
)

// Provider resolves the acting user for a request. Implementations may wrap
// an account system; the core only needs a stable id and display metadata.
type Provider interface {
	Resolve(userID, displayName string) (domain.Identity, error)
}

// GuestMinter issues ephemeral guest identities with self-issued opaque
// tokens, untied to any account store.
type GuestMinter struct {
	newToken func() string
}

func NewGuestMinter() *GuestMinter {
	return &GuestMinter{newToken: uuid.NewString}
}

// Mint returns a fresh guest identity. An empty display name gets a short
// readable placeholder derived from the token.
func (m *GuestMinter) Mint(displayName string) domain.Identity {
	token := m.newToken()
	if displayName == "" {
		displayName = "Guest-" + shortSuffix(token)
	}
	return domain.Identity{ID: token, DisplayName: displayName, IsGuest: true}
}

// StaticProvider trusts the caller-supplied id, minting a guest when none is
// given. Stands in for a real account system behind the same interface.
type StaticProvider struct {
	guests *GuestMinter
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{guests: NewGuestMinter()}
}

func (p *StaticProvider) Resolve(userID, displayName string) (domain.Identity, error) {
	if userID == "" {
		return p.guests.Mint(displayName), nil
	}
	return domain.Identity{ID: userID, DisplayName: displayName, IsGuest: false}, nil
}

func shortSuffix(token string) string {
	if len(token) <= 4 {
		return token
	}
	return token[:4]
}
