package commands

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/auth"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/logger"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	postgresstore "github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store/postgres"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/tenant"
)

// BootstrapCmd creates an organization and its first admin user. This is
// the one write path that legitimately runs before any tenant exists, so
// it uses the system capability directly.
type BootstrapCmd struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	OrgSlug string `help:"organization slug (used in public report URLs)" required:""`
	OrgName string `help:"organization display name" required:""`

	AdminEmail    string `help:"admin user email" required:""`
	AdminName     string `help:"admin user display name" required:""`
	AdminPassword string `help:"admin user password" env:"HOTLINE_BOOTSTRAP_PASSWORD" required:""`
}

func (c *BootstrapCmd) Validate() error {
	if c.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (c *BootstrapCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
		ConnString: c.ConnString,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	hash, err := auth.HashPassword(c.AdminPassword)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	org := &models.Organization{
		OrgID:     uuid.Must(uuid.NewV7()),
		Slug:      c.OrgSlug,
		Name:      c.OrgName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	orgs := postgresstore.NewOrganizationStore(pool)
	if err := orgs.Create(ctx, org); err != nil {
		return err
	}

	admin := &models.User{
		UserID:       uuid.Must(uuid.NewV7()),
		OrgID:        org.OrgID,
		Email:        c.AdminEmail,
		Name:         c.AdminName,
		PasswordHash: hash,
		Roles:        []string{models.RoleAdmin},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The admin row is written into a tenant that, until this moment, has no
	// members who could create it.
	users := postgresstore.NewUserStore(pool)
	if err := users.Create(tenant.AsSystem(ctx), admin); err != nil {
		return err
	}

	log.Info().
		Str("org_id", org.OrgID.String()).
		Str("slug", org.Slug).
		Str("admin", admin.Email).
		Msg("Organization bootstrapped")

	return nil
}
