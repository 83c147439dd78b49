package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/domain"
	"storefront/internal/logging"
	custrepo "storefront/internal/repository/customer"
	rolerepo "storefront/internal/repository/role"
	tokenrepo "storefront/internal/repository/token"
)

var (
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates the provided token could not be validated.
	ErrInvalidToken = errors.New("invalid token")
)

const searchLimit = 20

// Service handles signup, login, profiles and staff role management.
type Service struct {
	repo        custrepo.Repository
	roles       rolerepo.Repository
	tokens      *tokenManager
	validate    *validator.Validate
	logger      zerolog.Logger
	accessTTL   time.Duration
	refreshTTL  time.Duration
	passwordMin int
}

// New creates a Service with sane defaults.
func New(repo custrepo.Repository, roles rolerepo.Repository, tokens tokenrepo.Repository, logger *zerolog.Logger) *Service {
	lg := zerolog.Nop()
	if logger != nil {
		lg = logging.Component(*logger, "customer")
	}
	return &Service{
		repo:        repo,
		roles:       roles,
		tokens:      newTokenManager(tokens),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      lg,
		accessTTL:   48 * time.Hour,
		refreshTTL:  30 * 24 * time.Hour,
		passwordMin: 8,
	}
}

// SignupInput captures fields expected by the signup endpoint.
type SignupInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Session is the result of a successful login or refresh.
type Session struct {
	Customer     *domain.Customer
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// Signup registers a new customer with the customer role.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*domain.Customer, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: email required", domain.ErrValidation)
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return nil, fmt.Errorf("%w: invalid email", domain.ErrValidation)
	}
	password := strings.TrimSpace(in.Password)
	if err := validatePassword(password, s.passwordMin); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.Create(ctx, domain.Customer{Email: email, PasswordHash: string(hashed)})
	if err != nil {
		return nil, err
	}
	if err := s.roles.Grant(ctx, c.ID, domain.RoleCustomer); err != nil {
		return nil, fmt.Errorf("grant customer role: %w", err)
	}
	c.Roles = []domain.Role{domain.RoleCustomer}

	if in.FirstName != "" || in.LastName != "" {
		if _, err := s.repo.UpsertProfile(ctx, domain.CustomerProfile{
			CustomerID: c.ID,
			FirstName:  strings.TrimSpace(in.FirstName),
			LastName:   strings.TrimSpace(in.LastName),
		}); err != nil {
			s.logger.Warn().Err(err).Str("customer_id", c.ID).Msg("initial profile not saved")
		}
	}
	s.logger.Info().Str("customer_id", c.ID).Msg("customer signed up")
	return c, nil
}

// Login validates credentials and returns issued tokens plus the customer.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	password = strings.TrimSpace(password)
	c, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if c.Roles, err = s.roles.List(ctx, c.ID); err != nil {
		return nil, err
	}
	return s.issue(ctx, c)
}

// Refresh exchanges a refresh token for a new token pair. The old refresh
// token is revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	meta, ok := s.tokens.Validate(ctx, refreshToken, tokenrepo.KindRefresh)
	if !ok {
		return nil, ErrInvalidToken
	}
	c, err := s.load(ctx, meta.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Revoke(ctx, refreshToken); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return s.issue(ctx, c)
}

// Logout revokes a token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

func (s *Service) issue(ctx context.Context, c *domain.Customer) (*Session, error) {
	access, err := s.tokens.Issue(ctx, c.ID, tokenrepo.KindAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.Issue(ctx, c.ID, tokenrepo.KindRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &Session{Customer: c, AccessToken: access, RefreshToken: refresh, ExpiresIn: s.AccessTTLSeconds()}, nil
}

// LookupByToken returns the customer, with roles, bound to a valid access token.
func (s *Service) LookupByToken(ctx context.Context, token string) (*domain.Customer, error) {
	meta, ok := s.tokens.Validate(ctx, token, tokenrepo.KindAccess)
	if !ok {
		return nil, ErrInvalidToken
	}
	return s.load(ctx, meta.CustomerID)
}

func (s *Service) load(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if c.Roles, err = s.roles.List(ctx, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// AccessTTLSeconds exposes the access token lifetime in seconds.
func (s *Service) AccessTTLSeconds() int {
	return int(s.accessTTL.Seconds())
}

// PurgeExpiredTokens deletes expired tokens.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.Purge(ctx, time.Now())
}

// ProfileInput is the editable part of a profile.
type ProfileInput struct {
	FirstName string          `json:"firstName" validate:"max=100"`
	LastName  string          `json:"lastName" validate:"max=100"`
	Phone     string          `json:"phone" validate:"max=40"`
	Address   *domain.Address `json:"address" validate:"omitempty"`
}

// Profile returns the customer's profile, or an empty one when none is saved.
func (s *Service) Profile(ctx context.Context, customerID string) (*domain.CustomerProfile, error) {
	p, err := s.repo.GetProfile(ctx, customerID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.CustomerProfile{CustomerID: customerID}, nil
	}
	return p, err
}

func (s *Service) UpdateProfile(ctx context.Context, customerID string, in ProfileInput) (*domain.CustomerProfile, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return s.repo.UpsertProfile(ctx, domain.CustomerProfile{
		CustomerID: customerID,
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		Phone:      strings.TrimSpace(in.Phone),
		Address:    in.Address,
	})
}

// SetRoles replaces a customer's roles. Unknown roles are rejected.
func (s *Service) SetRoles(ctx context.Context, customerID string, roles []domain.Role) (*domain.Customer, error) {
	seen := map[domain.Role]bool{}
	clean := make([]domain.Role, 0, len(roles))
	for _, r := range roles {
		if !r.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, r)
		}
		if !seen[r] {
			seen[r] = true
			clean = append(clean, r)
		}
	}
	c, err := s.repo.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := s.roles.Set(ctx, customerID, clean); err != nil {
		return nil, err
	}
	c.Roles = clean
	s.logger.Info().Str("customer_id", customerID).Interface("roles", clean).Msg("roles updated")
	return c, nil
}

// SearchByEmail finds customers by email prefix for operator checkout.
func (s *Service) SearchByEmail(ctx context.Context, prefix string) ([]domain.Customer, error) {
	prefix = strings.TrimSpace(prefix)
	if len(prefix) < 2 {
		return nil, fmt.Errorf("%w: email prefix must have at least 2 characters", domain.ErrValidation)
	}
	out, err := s.repo.SearchByEmail(ctx, prefix, searchLimit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Customer{}
	}
	return out, nil
}

func validatePassword(p string, min int) error {
	trimmed := strings.TrimSpace(p)
	if len(trimmed) < min {
		return fmt.Errorf("password must be at least %d characters", min)
	}
	hasUpper := false
	hasLower := false
	hasDigit := false
	for _, r := range trimmed {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return errors.New("password must contain at least 1 uppercase letter, 1 lowercase letter, and 1 number")
	}
	return nil
}
