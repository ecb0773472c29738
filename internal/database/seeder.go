// server/internal/database/seeder.go
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"site-procurement-api-server/internal/auth"
	"site-procurement-api-server/internal/models"
	"site-procurement-api-server/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SeedSuperAdmin creates the initial superadmin account if it does not
// exist yet, so a fresh deployment can log in and create real users.
func SeedSuperAdmin(ctx context.Context, st store.Store, password string, log zerolog.Logger) error {
	superAdminEmail := "superadmin@example.com"

	if _, err := st.GetUserByEmail(ctx, superAdminEmail); err == nil {
		log.Info().Msg("super admin already exists, seeding skipped")
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	log.Info().Msg("super admin not found, seeding")
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	superAdmin := &models.User{
		UserID:   fmt.Sprintf("USR-%s", strings.ToUpper(uuid.New().String()[:8])),
		Email:    superAdminEmail,
		Name:     "Super Admin",
		Password: hashedPassword,
		Role:     models.RoleSuperadmin,
		Status:   "active",
	}

	if err := st.InsertUser(ctx, superAdmin); err != nil {
		return err
	}

	log.Info().Str("userID", superAdmin.UserID).Msg("super admin seeded")
	return nil
}
