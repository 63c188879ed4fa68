package members

import (
	"context"

	"github.com/netsoclabs/memberd/internal/server/models"
)

// Repository persists member profile rows in the relational store.
type Repository interface {
	Create(ctx context.Context, rec *models.MemberRecord) (*models.MemberRecord, error)
	GetByUsername(ctx context.Context, username string) (*models.MemberRecord, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}
