package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harentsoaR/hospital-api/internal/errs"
	"github.com/harentsoaR/hospital-api/internal/metrics"
	"github.com/harentsoaR/hospital-api/internal/models"
	"github.com/harentsoaR/hospital-api/internal/store"
	"github.com/harentsoaR/hospital-api/internal/utils"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const errInvalidCredentials = "Invalid credentials"

// AccountInput is the payload for patient registration and admin creation.
type AccountInput struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Phone     string `json:"phone"`
	Gender    string `json:"gender" validate:"omitempty,oneof=Male Female Other"`
	DOB       string `json:"dob" validate:"omitempty,datetime=2006-01-02"`
}

func (in *AccountInput) trim() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Gender = strings.TrimSpace(in.Gender)
	in.DOB = strings.TrimSpace(in.DOB)
}

func (in *AccountInput) user(role models.Role) *models.User {
	u := &models.User{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Role:      role,
		Phone:     in.Phone,
		Gender:    in.Gender,
	}
	if in.DOB != "" {
		if dob, err := parseDate(in.DOB); err == nil {
			u.DOB = &dob
		}
	}
	return u
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

// Session is an authenticated user plus the signed token to hand back.
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

type AuthService struct {
	accounts
	tokens    *utils.TokenIssuer
	metrics   metrics.Recorder
	log       zerolog.Logger
	dummyHash string
}

func NewAuthService(users UserStore, hasher *utils.PasswordHasher, tokens *utils.TokenIssuer, rec metrics.Recorder, log zerolog.Logger) *AuthService {
	// Compared against when the email is unknown so both failure paths cost a bcrypt round.
	dummy, _ := hasher.HashPassword("not-a-real-password")
	return &AuthService{
		accounts:  accounts{users: users, hasher: hasher, now: time.Now},
		tokens:    tokens,
		metrics:   rec,
		log:       log,
		dummyHash: dummy,
	}
}

// Register self-registers a Patient and signs them in.
func (s *AuthService) Register(ctx context.Context, in AccountInput) (*Session, error) {
	in.trim()
	if err := validateInput("All fields are required", &in); err != nil {
		return nil, err
	}

	u := in.user(models.RolePatient)
	if err := s.create(ctx, u, in.Password, "User already registered"); err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", u.ID.Hex()).Msg("patient registered")
	return s.issue(u)
}

// CreateAdmin creates another Admin account. The caller's role is checked by the HTTP layer.
func (s *AuthService) CreateAdmin(ctx context.Context, in AccountInput) (*models.User, error) {
	in.trim()
	if err := validateInput("All fields are required", &in); err != nil {
		return nil, err
	}

	u := in.user(models.RoleAdmin)
	if err := s.create(ctx, u, in.Password, "Admin already exists"); err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", u.ID.Hex()).Msg("admin created")
	return u, nil
}

// Login returns the same AuthError for an unknown email, a wrong password and
// a role mismatch.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	in.Role = strings.TrimSpace(in.Role)
	if err := validateInput("Email, password and role are required", &in); err != nil {
		return nil, err
	}
	role, ok := models.ParseRole(in.Role)
	if !ok {
		return nil, errs.Validation("Email, password and role are required",
			errs.FieldError{Field: "role", Message: "role must be one of: Patient, Doctor, Admin"})
	}

	u, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, errs.Internal(err, "Failed to look up account")
	}

	hash := s.dummyHash
	if u != nil {
		hash = u.Password
	}
	ok = s.hasher.CheckPasswordHash(in.Password, hash) && u != nil && u.Role == role
	s.metrics.RecordLogin(string(role), ok)
	if !ok {
		s.log.Debug().Str("role", string(role)).Msg("login rejected")
		return nil, errs.Auth(errInvalidCredentials)
	}

	return s.issue(u)
}

func (s *AuthService) issue(u *models.User) (*Session, error) {
	token, exp, err := s.tokens.GenerateJWT(u.ID.Hex(), string(u.Role))
	if err != nil {
		return nil, errs.Internal(err, "Could not generate token")
	}
	return &Session{User: u, Token: token, ExpiresAt: exp}, nil
}

// VerifySession resolves a session token to its account. Tokens are stateless,
// so a token stays valid until it expires even after logout.
func (s *AuthService) VerifySession(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, errs.Auth("User is not authenticated")
	}

	claims, err := s.tokens.ValidateJWT(token)
	if err != nil {
		if errors.Is(err, utils.ErrTokenExpired) {
			return nil, errs.Auth("Session expired. Please login again.")
		}
		return nil, errs.Auth("Invalid token. Please login again.")
	}

	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, errs.Auth("Invalid token. Please login again.")
	}

	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.NotFound("User not found")
		}
		return nil, errs.Internal(err, "Failed to load user")
	}
	if string(u.Role) != claims.Role {
		return nil, errs.Auth("Invalid token. Please login again.")
	}
	return u, nil
}

// RequireRole fails with a ForbiddenError unless u holds one of roles.
func RequireRole(u *models.User, roles ...models.Role) error {
	if u == nil {
		return errs.Auth("User is not authenticated")
	}
	for _, r := range roles {
		if u.Role == r {
			return nil
		}
	}
	return errs.Forbidden(fmt.Sprintf("%s is not allowed to access this resource", u.Role))
}
