package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/practicelab/relay/internal/store"
)

var (
	ErrNoProfile        = errors.New("no profile for user")
	ErrNotMember        = errors.New("not a member of organization")
	ErrTierTooLow       = errors.New("organization tier below requirement")
	ErrPracticeNotFound = errors.New("practice session not found")
)

// Directory is the read side of the store needed to admit a connection.
type Directory interface {
	ProfileByUser(ctx context.Context, userID string) (store.Profile, error)
	IsMember(ctx context.Context, organizationID, profileID string) (bool, error)
	OrganizationTier(ctx context.Context, organizationID string) (string, error)
	LoadPractice(ctx context.Context, kind store.Kind, sessionID string) (store.Practice, error)
}

// Grant is everything a session needs once a connection is admitted.
type Grant struct {
	Claims   Claims
	Profile  store.Profile
	Practice store.Practice
}

type Authorizer struct {
	verifier     *Verifier
	dir          Directory
	requiredTier string
}

// NewAuthorizer builds an authorizer. An empty requiredTier admits any organization.
func NewAuthorizer(v *Verifier, dir Directory, requiredTier string) *Authorizer {
	return &Authorizer{verifier: v, dir: dir, requiredTier: requiredTier}
}

// Authorize runs every admission guard against the handshake request, in the
// order: credential, profile, practice descriptor, membership, tier, practice.
func (a *Authorizer) Authorize(ctx context.Context, r *http.Request) (Grant, error) {
	claims, err := a.verifier.Verify(ctx, CredentialFromRequest(r))
	if err != nil {
		return Grant{}, err
	}

	profile, err := a.dir.ProfileByUser(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return Grant{}, ErrNoProfile
	}
	if err != nil {
		return Grant{}, fmt.Errorf("profile lookup: %w", err)
	}

	desc, err := ParsePractice(r.URL.Query().Get("practice"))
	if err != nil {
		return Grant{}, err
	}

	member, err := a.dir.IsMember(ctx, desc.OrganizationID, profile.ID)
	if err != nil {
		return Grant{}, fmt.Errorf("membership lookup: %w", err)
	}
	if !member {
		return Grant{}, ErrNotMember
	}

	tier, err := a.dir.OrganizationTier(ctx, desc.OrganizationID)
	if errors.Is(err, store.ErrNotFound) {
		return Grant{}, ErrNotMember
	}
	if err != nil {
		return Grant{}, fmt.Errorf("tier lookup: %w", err)
	}
	if !TierAtLeast(tier, a.requiredTier) {
		return Grant{}, ErrTierTooLow
	}

	practice, err := a.dir.LoadPractice(ctx, desc.Kind, desc.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		return Grant{}, ErrPracticeNotFound
	}
	if err != nil {
		return Grant{}, fmt.Errorf("practice lookup: %w", err)
	}
	if practice.OrganizationID != desc.OrganizationID || practice.ProfileID != profile.ID {
		return Grant{}, ErrPracticeNotFound
	}

	return Grant{Claims: claims, Profile: profile, Practice: practice}, nil
}

var tierRank = map[string]int{
	"free":       0,
	"basic":      1,
	"pro":        2,
	"enterprise": 3,
}

// TierAtLeast reports whether have satisfies want. Unknown tiers never satisfy
// a non-empty requirement.
func TierAtLeast(have, want string) bool {
	if want == "" {
		return true
	}
	h, ok := tierRank[strings.ToLower(have)]
	if !ok {
		return false
	}
	w, ok := tierRank[strings.ToLower(want)]
	if !ok {
		return strings.EqualFold(have, want)
	}
	return h >= w
}

// Reason maps an admission error to a short metrics label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrRevoked):
		return "revoked"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrNoProfile):
		return "no_profile"
	case errors.Is(err, ErrBadPractice):
		return "bad_practice"
	case errors.Is(err, ErrNotMember):
		return "not_member"
	case errors.Is(err, ErrTierTooLow):
		return "tier"
	case errors.Is(err, ErrPracticeNotFound):
		return "practice_not_found"
	default:
		return "internal"
	}
}
