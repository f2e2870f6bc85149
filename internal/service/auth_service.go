package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// MinPasswordLength applies to accounts created by admins.
const MinPasswordLength = 8

// AuthService coordinates login and account provisioning.
type AuthService struct {
	store      repository.Store
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates collaborators for auth service.
type AuthDependencies struct {
	Store  repository.Store
	Tokens *auth.TokenManager
	Logger *zap.Logger
}

// LoginResult carries an issued token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Actor     domain.Actor
	Name      string
}

// CreateUserInput describes a new staff member.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// CreateCompanyInput describes a new customer tenant.
type CreateCompanyInput struct {
	Name     string
	Document string
	Email    string
	Phone    string
	Password string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tokens := deps.Tokens
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes)
	}
	return &AuthService{
		store:      deps.Store,
		tokenMgr:   tokens,
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
	}
}

// LoginStaff authenticates staff and returns a role-bearing token.
func (s *AuthService) LoginStaff(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.store.Repos().Users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errInvalidCredentials()
		}
		return nil, translate(s.logger, err, "user", 0)
	}
	if !user.Active {
		return nil, errInvalidCredentials()
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, errInvalidCredentials()
	}
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, domain.SubjectTypeStaff, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: exp, Actor: domain.StaffActor(user.ID, user.Role), Name: user.Name}, nil
}

// LoginCompany authenticates a company.
func (s *AuthService) LoginCompany(ctx context.Context, email, password string) (*LoginResult, error) {
	company, err := s.store.Repos().Companies.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errInvalidCredentials()
		}
		return nil, translate(s.logger, err, "company", 0)
	}
	if !company.Active {
		return nil, errInvalidCredentials()
	}
	if err := auth.ComparePassword(company.PasswordHash, password); err != nil {
		return nil, errInvalidCredentials()
	}
	token, exp, err := s.tokenMgr.GenerateToken(company.ID, domain.SubjectTypeCompany, "")
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: exp, Actor: domain.CompanyActor(company.ID), Name: company.Name}, nil
}

// CreateUser provisions a staff member. Admin only.
func (s *AuthService) CreateUser(ctx context.Context, actor domain.Actor, input CreateUserInput) (*domain.User, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden()
	}
	role := domain.StaffRole(strings.ToLower(strings.TrimSpace(input.Role)))
	if !role.IsValid() {
		return nil, apperrors.NewValidationError("role: must be admin, attendant or technician", map[string]any{"role": "invalid"})
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.store.Repos().Users.Create(ctx, user); err != nil {
		return nil, translate(s.logger, err, "user", 0)
	}
	return user, nil
}

// CreateCompany provisions a customer tenant. Admin only.
func (s *AuthService) CreateCompany(ctx context.Context, actor domain.Actor, input CreateCompanyInput) (*domain.Company, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden()
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	company := &domain.Company{
		Name:         strings.TrimSpace(input.Name),
		Document:     strings.TrimSpace(input.Document),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:        strings.TrimSpace(input.Phone),
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.store.Repos().Companies.Create(ctx, company); err != nil {
		return nil, translate(s.logger, err, "company", 0)
	}
	return company, nil
}

// EnsureAdmin creates an admin account with the given e-mail unless one is
// already registered. It reports whether a user was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := s.store.Repos().Users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, translate(s.logger, err, "user", 0)
	}
	system := domain.StaffActor(0, domain.StaffRoleAdmin)
	_, err = s.CreateUser(ctx, system, CreateUserInput{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     string(domain.StaffRoleAdmin),
	})
	if err != nil {
		return false, err
	}
	s.logger.Info("bootstrap admin created", zap.String("email", email))
	return true, nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperrors.NewValidationError("password: must be at least 8 characters", map[string]any{"password": "too short"})
	}
	return nil
}

func errInvalidCredentials() error {
	return apperrors.NewUnauthorized("invalid credentials")
}
