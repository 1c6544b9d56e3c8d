package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
	"github.com/BnaryBlade/loyalty-hive-core/internal/port"
)

var authTracer = otel.Tracer("service/auth")

const minPasswordLength = 8

// AuthService orchestrates customer and admin authentication.
type AuthService struct {
	store      port.Store
	accounts   *LoyaltyService
	jwtSecret  []byte
	accessTTL  time.Duration
	bcryptCost int
	logger     *zap.Logger
}

// NewAuthService creates a new auth service. Accounts are opened through
// the loyalty service so registration gets the welcome bonus.
func NewAuthService(store port.Store, accounts *LoyaltyService, jwtSecret string, accessTTL time.Duration, bcryptCost int, logger *zap.Logger) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		store:      store,
		accounts:   accounts,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// ============================================================
// Register — POST /v1/auth/register
// ============================================================

func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Register")
	defer span.End()

	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	if _, err := s.store.GetAccountByEmail(ctx, req.Email); err == nil {
		return nil, &domain.ErrConflict{Message: "email already registered"}
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("check existing account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acc, err := s.accounts.OpenAccount(ctx, domain.Account{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("customer registered", zap.String("account_id", acc.ID))
	return s.issue(acc.ID, domain.SubjectCustomer, acc.FullName())
}

func validateRegistration(req *domain.RegisterRequest) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return &domain.ErrValidation{Field: "email", Message: "is not a valid email address"}
	}
	if len(req.Password) < minPasswordLength {
		return &domain.ErrValidation{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}
	if strings.TrimSpace(req.FirstName) == "" {
		return &domain.ErrValidation{Field: "firstName", Message: "is required"}
	}
	if strings.TrimSpace(req.LastName) == "" {
		return &domain.ErrValidation{Field: "lastName", Message: "is required"}
	}
	return nil
}

// ============================================================
// Login — POST /v1/auth/login, POST /v1/admin/auth/login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	acc, err := s.store.GetAccountByEmail(ctx, req.Email)
	if err != nil {
		if isNotFound(err) {
			return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	span.SetAttributes(attribute.String("account.id", acc.ID))

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("login: wrong password", zap.String("account_id", acc.ID))
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	s.logger.Info("customer logged in", zap.String("account_id", acc.ID))
	return s.issue(acc.ID, domain.SubjectCustomer, acc.FullName())
}

func (s *AuthService) AdminLogin(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.AdminLogin")
	defer span.End()

	admin, err := s.store.GetAdminByEmail(ctx, req.Email)
	if err != nil {
		if isNotFound(err) {
			return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("admin login: wrong password", zap.String("admin_id", admin.ID))
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	s.logger.Info("admin logged in", zap.String("admin_id", admin.ID), zap.String("role", string(admin.Role)))
	return s.issue(admin.ID, domain.SubjectAdmin, admin.Name)
}

// ============================================================
// Admins
// ============================================================

// CreateAdmin registers a back-office user with the role's default permissions.
func (s *AuthService) CreateAdmin(ctx context.Context, email, password, name string, role domain.Role) (*domain.AdminUser, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.CreateAdmin")
	defer span.End()

	if !role.Valid() {
		return nil, &domain.ErrValidation{Field: "role", Message: fmt.Sprintf("unknown role %q", role)}
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		return nil, &domain.ErrValidation{Field: "email", Message: "is not a valid email address"}
	}
	if len(password) < minPasswordLength {
		return nil, &domain.ErrValidation{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	admin, err := s.store.CreateAdmin(ctx, &domain.AdminUser{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		Role:         role,
		Permissions:  domain.DefaultPermissions(role),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin created", zap.String("admin_id", admin.ID), zap.String("role", string(role)))
	return admin, nil
}

// EnsureAdmin creates the admin unless one with that email already exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password, name string) (*domain.AdminUser, error) {
	existing, err := s.store.GetAdminByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	return s.CreateAdmin(ctx, email, password, name, domain.RoleAdmin)
}

// GetAdmin returns a back-office user by id.
func (s *AuthService) GetAdmin(ctx context.Context, adminID string) (*domain.AdminUser, error) {
	return s.store.GetAdmin(ctx, adminID)
}

func isNotFound(err error) bool {
	var nf *domain.ErrNotFound
	return errors.As(err, &nf)
}
