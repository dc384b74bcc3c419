package service

import (
	"context"
	"errors"

	accountserrors "agendify/internal/accounts/errors"
	"agendify/internal/accounts/repository"
	"agendify/internal/accounts/validator"
	"agendify/pkg/auth"
	"agendify/pkg/config"
	apperrors "agendify/pkg/errors"
	"agendify/pkg/model"
	"agendify/pkg/sanitizer"
)

type AccountService interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error)
	GoogleSignIn(ctx context.Context, req *model.GoogleSignInRequest) (*model.AuthResponse, error)
	Me(ctx context.Context) (*model.PublicAccount, error)

	// ResolveRole backs the auth middleware's identity lookup.
	ResolveRole(ctx context.Context, accountID string) (model.Role, error)
	// IsProfessional backs the booking service's professional check.
	IsProfessional(ctx context.Context, accountID string) (bool, error)
}

// GoogleTokenVerifier is satisfied by auth.GoogleVerifier; tests substitute
// their own.
type GoogleTokenVerifier interface {
	Verify(idToken string) (*auth.GoogleUserInfo, error)
}

type accountService struct {
	repo      repository.AccountRepository
	validator *validator.AccountValidator
	tokens    *auth.TokenManager
	sessions  *auth.SessionCache
	google    GoogleTokenVerifier
	cfg       *config.Config
}

func NewAccountService(
	repo repository.AccountRepository,
	validator *validator.AccountValidator,
	tokens *auth.TokenManager,
	sessions *auth.SessionCache,
	google GoogleTokenVerifier,
	cfg *config.Config,
) AccountService {
	return &accountService{
		repo:      repo,
		validator: validator,
		tokens:    tokens,
		sessions:  sessions,
		google:    google,
		cfg:       cfg,
	}
}

func (s *accountService) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	req.Name = sanitizer.NormalizeName(req.Name)
	req.Email = sanitizer.NormalizeEmail(req.Email)

	if err := s.validator.ValidateRegister(req); err != nil {
		s.cfg.Log.Warn("Registration validation failed", "error", err)
		return nil, apperrors.Validation("Invalid registration input", map[string]any{"error": err.Error()})
	}

	role := model.RoleClient
	if req.Role != "" {
		parsed, err := model.ParseRole(req.Role)
		if err != nil {
			return nil, apperrors.InvalidInput(err.Error())
		}
		role = parsed
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}

	account := &model.Account{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		if errors.Is(err, accountserrors.ErrDuplicateEmail) {
			return nil, apperrors.InvalidInput("Email is already registered")
		}
		s.cfg.Log.Error("Failed to create account", "email", account.Email, "error", err)
		return nil, apperrors.Internal("Failed to create account", err)
	}

	s.cfg.Log.Info("Account registered", "id", account.ID, "role", account.Role)
	return s.issueToken(ctx, account)
}

func (s *accountService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	req.Email = sanitizer.NormalizeEmail(req.Email)

	if err := s.validator.ValidateLogin(req); err != nil {
		return nil, apperrors.Validation("Invalid login input", map[string]any{"error": err.Error()})
	}

	account, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, accountserrors.ErrNotFound) {
			// Same message as a bad password so the endpoint does not leak
			// which emails exist.
			return nil, apperrors.Unauthorized("Invalid email or password")
		}
		s.cfg.Log.Error("Failed to look up account for login", "error", err)
		return nil, apperrors.Internal("Failed to log in", err)
	}

	if account.PasswordHash == "" || !auth.CheckPassword(account.PasswordHash, req.Password) {
		return nil, apperrors.Unauthorized("Invalid email or password")
	}

	s.cfg.Log.Info("Account logged in", "id", account.ID)
	return s.issueToken(ctx, account)
}

// GoogleSignIn verifies the Google ID token, then finds the account by
// Google subject, falls back to linking by email, and finally creates a new
// CLIENT account.
func (s *accountService) GoogleSignIn(ctx context.Context, req *model.GoogleSignInRequest) (*model.AuthResponse, error) {
	if err := s.validator.ValidateGoogleSignIn(req); err != nil {
		return nil, apperrors.Validation("Invalid Google sign-in input", map[string]any{"error": err.Error()})
	}

	info, err := s.google.Verify(req.IDToken)
	if err != nil {
		s.cfg.Log.Warn("Google ID token verification failed", "error", err)
		return nil, apperrors.Unauthorized("Invalid Google ID token")
	}

	account, err := s.repo.FindByGoogleID(ctx, info.Subject)
	if err != nil && !errors.Is(err, accountserrors.ErrNotFound) {
		s.cfg.Log.Error("Failed to look up account by Google ID", "error", err)
		return nil, apperrors.Internal("Failed to sign in with Google", err)
	}

	if account == nil {
		account, err = s.linkOrCreateGoogleAccount(ctx, info)
		if err != nil {
			return nil, err
		}
	}

	s.cfg.Log.Info("Google sign-in succeeded", "id", account.ID)
	return s.issueToken(ctx, account)
}

func (s *accountService) linkOrCreateGoogleAccount(ctx context.Context, info *auth.GoogleUserInfo) (*model.Account, error) {
	existing, err := s.repo.FindByEmail(ctx, info.Email)
	if err == nil {
		if linkErr := s.repo.LinkGoogleID(ctx, existing.ID, info.Subject); linkErr != nil {
			s.cfg.Log.Error("Failed to link Google ID to account", "id", existing.ID, "error", linkErr)
			return nil, apperrors.Internal("Failed to sign in with Google", linkErr)
		}
		existing.GoogleID = info.Subject
		return existing, nil
	}
	if !errors.Is(err, accountserrors.ErrNotFound) {
		s.cfg.Log.Error("Failed to look up account by email", "error", err)
		return nil, apperrors.Internal("Failed to sign in with Google", err)
	}

	name := sanitizer.NormalizeName(info.Name)
	if name == "" {
		name = info.Email
	}

	account := &model.Account{
		Name:     name,
		Email:    info.Email,
		GoogleID: info.Subject,
		Role:     model.RoleClient,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		s.cfg.Log.Error("Failed to create account from Google sign-in", "error", err)
		return nil, apperrors.Internal("Failed to sign in with Google", err)
	}

	s.cfg.Log.Info("Account created from Google sign-in", "id", account.ID)
	return account, nil
}

func (s *accountService) Me(ctx context.Context) (*model.PublicAccount, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	account, err := s.repo.FindByID(ctx, identity.AccountID)
	if err != nil {
		if errors.Is(err, accountserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Account")
		}
		return nil, apperrors.Internal("Failed to load account", err)
	}

	public := account.Public()
	return &public, nil
}

func (s *accountService) ResolveRole(ctx context.Context, accountID string) (model.Role, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	return account.Role, nil
}

func (s *accountService) IsProfessional(ctx context.Context, accountID string) (bool, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, accountserrors.ErrNotFound) || errors.Is(err, accountserrors.ErrInvalidID) {
			return false, nil
		}
		return false, err
	}
	return account.Role == model.RoleProfessional, nil
}

// issueToken mints a JWT and warms the session cache so the first
// authenticated request skips the account lookup.
func (s *accountService) issueToken(ctx context.Context, account *model.Account) (*model.AuthResponse, error) {
	token, err := s.tokens.Generate(account.ID, account.Email)
	if err != nil {
		return nil, apperrors.Internal("Failed to generate token", err)
	}

	s.sessions.Set(ctx, auth.HashToken(token), auth.Identity{
		AccountID: account.ID,
		Role:      account.Role,
	})

	return &model.AuthResponse{
		Token:   token,
		Account: account.Public(),
	}, nil
}
