package services

import (
	"context"
	"errors"
	"time"

	"github.com/harentsoaR/hospital-api/internal/errs"
	"github.com/harentsoaR/hospital-api/internal/models"
	"github.com/harentsoaR/hospital-api/internal/store"
	"github.com/harentsoaR/hospital-api/internal/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserStore is the account persistence used by the services.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindDoctors(ctx context.Context, f store.DoctorFilter) ([]models.User, error)
}

// accounts creates users of any role. Email uniqueness is global across roles.
type accounts struct {
	users  UserStore
	hasher *utils.PasswordHasher
	now    func() time.Time
}

// emailTaken reports whether an account already uses email.
func (a *accounts) emailTaken(ctx context.Context, email string) (bool, error) {
	_, err := a.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	}
	return false, errs.Internal(err, "Failed to look up account")
}

// create hashes the password and inserts u. conflictMsg is returned both when
// the pre-check finds the email and when the unique index rejects the insert.
func (a *accounts) create(ctx context.Context, u *models.User, password, conflictMsg string) error {
	u.Email = normalizeEmail(u.Email)
	taken, err := a.emailTaken(ctx, u.Email)
	if err != nil {
		return err
	}
	if taken {
		return errs.Conflict(conflictMsg)
	}

	hash, err := a.hasher.HashPassword(password)
	if err != nil {
		return errs.Internal(err, "Failed to hash password")
	}

	now := a.now()
	u.Password = hash
	u.FullNameCI = models.FoldName(u.FullName())
	u.CreatedAt = now
	u.UpdatedAt = now

	if err := a.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return errs.Conflict(conflictMsg)
		}
		return errs.Internal(err, "Failed to create user")
	}
	return nil
}
