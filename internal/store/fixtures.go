package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Seeder is implemented by stores that accept fixture data.
type Seeder interface {
	UpsertProfile(ctx context.Context, p Profile) error
	UpsertOrganization(ctx context.Context, o Organization) error
	AddMember(ctx context.Context, organizationID, profileID string) error
	UpsertPractice(ctx context.Context, p Practice) error
}

// Fixtures is the on-disk seed format.
type Fixtures struct {
	Profiles      []Profile      `json:"profiles"`
	Organizations []Organization `json:"organizations"`
	Memberships   []struct {
		OrganizationID string `json:"organizationId"`
		ProfileID      string `json:"profileId"`
	} `json:"memberships"`
	Practices []Practice `json:"practices"`
}

// LoadFixtures decodes fixtures from r and writes them in dependency order.
func LoadFixtures(ctx context.Context, s Seeder, r io.Reader) (Fixtures, error) {
	var f Fixtures
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return f, fmt.Errorf("decode fixtures: %w", err)
	}
	for _, p := range f.Profiles {
		if err := s.UpsertProfile(ctx, p); err != nil {
			return f, fmt.Errorf("profile %s: %w", p.ID, err)
		}
	}
	for _, o := range f.Organizations {
		if err := s.UpsertOrganization(ctx, o); err != nil {
			return f, fmt.Errorf("organization %s: %w", o.ID, err)
		}
	}
	for _, m := range f.Memberships {
		if err := s.AddMember(ctx, m.OrganizationID, m.ProfileID); err != nil {
			return f, fmt.Errorf("membership %s/%s: %w", m.OrganizationID, m.ProfileID, err)
		}
	}
	for _, p := range f.Practices {
		if !p.Kind.Valid() {
			return f, fmt.Errorf("practice %s: unknown kind %q", p.SessionID, p.Kind)
		}
		if err := s.UpsertPractice(ctx, p); err != nil {
			return f, fmt.Errorf("practice %s: %w", p.SessionID, err)
		}
	}
	return f, nil
}
