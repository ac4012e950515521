package urgency

import (
	"context"
	"fmt"

	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/pkg/errors"
)

// SeedUser is an operator account created at startup.
type SeedUser struct {
	Profile  model.Profile
	Password string
}

type SeedData struct {
	Users     []SeedUser
	Providers []string
}

// DefaultSeed returns one nurse, one physician and a short provider list.
func DefaultSeed(password string) SeedData {
	return SeedData{
		Users: []SeedUser{
			{
				Profile: model.Profile{
					Email:      "enfermera@guardia.local",
					GivenName:  "Lucia",
					FamilyName: "Fernandez",
					Code:       "27-11111111-3",
					License:    "ENF-1001",
					Role:       model.RoleNurse,
				},
				Password: password,
			},
			{
				Profile: model.Profile{
					Email:      "medico@guardia.local",
					GivenName:  "Martin",
					FamilyName: "Rossi",
					Code:       "20-22222222-5",
					License:    "MP-2002",
					Role:       model.RolePhysician,
				},
				Password: password,
			},
		},
		Providers: []string{"OSDE", "Swiss Medical", "Galeno", "PAMI", "IOMA"},
	}
}

// Seed creates the given accounts and providers. Entries that already exist
// are left alone, so seeding a persistent store twice is harmless.
func (s *Service) Seed(ctx context.Context, data SeedData) error {
	for _, name := range data.Providers {
		if _, err := s.CreateProvider(ctx, name); err != nil && !errors.IsConflict(err) {
			return fmt.Errorf("seed provider %s: %w", name, err)
		}
	}
	for _, u := range data.Users {
		if _, err := s.CreateUser(ctx, u.Profile, u.Password); err != nil && !errors.IsConflict(err) {
			return fmt.Errorf("seed user %s: %w", u.Profile.Email, err)
		}
	}
	return nil
}
