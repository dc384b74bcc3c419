package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	accountserrors "agendify/internal/accounts/errors"
	"agendify/internal/accounts/validator"
	"agendify/pkg/auth"
	"agendify/pkg/config"
	apperrors "agendify/pkg/errors"
	"agendify/pkg/logger"
	"agendify/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
	nextID   int
}

func newMemoryAccountRepository() *memoryAccountRepository {
	return &memoryAccountRepository{accounts: make(map[string]*model.Account)}
}

func (m *memoryAccountRepository) Create(ctx context.Context, account *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Email == account.Email {
			return accountserrors.ErrDuplicateEmail
		}
	}
	if account.ID == "" {
		m.nextID++
		account.ID = testAccountID(m.nextID)
	}
	account.CreatedAt = time.Now()
	clone := *account
	m.accounts[account.ID] = &clone
	return nil
}

func (m *memoryAccountRepository) FindByID(ctx context.Context, id string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[id]; ok {
		clone := *a
		return &clone, nil
	}
	return nil, accountserrors.ErrNotFound
}

func (m *memoryAccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			clone := *a
			return &clone, nil
		}
	}
	return nil, accountserrors.ErrNotFound
}

func (m *memoryAccountRepository) FindByGoogleID(ctx context.Context, googleID string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.GoogleID == googleID {
			clone := *a
			return &clone, nil
		}
	}
	return nil, accountserrors.ErrNotFound
}

func (m *memoryAccountRepository) LinkGoogleID(ctx context.Context, id, googleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return accountserrors.ErrNotFound
	}
	a.GoogleID = googleID
	return nil
}

func testAccountID(n int) string {
	const base = "65f1a2b3c4d5e6f7a8b9"
	return base + string([]byte{
		'0' + byte(n/1000%10),
		'0' + byte(n/100%10),
		'0' + byte(n/10%10),
		'0' + byte(n%10),
	})
}

type stubGoogleVerifier struct {
	info *auth.GoogleUserInfo
	err  error
}

func (s *stubGoogleVerifier) Verify(idToken string) (*auth.GoogleUserInfo, error) {
	return s.info, s.err
}

func testAccountService(t *testing.T, google GoogleTokenVerifier) (AccountService, *memoryAccountRepository) {
	t.Helper()

	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
	cfg := &config.Config{
		Log:          log,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	repo := newMemoryAccountRepository()
	svc := NewAccountService(
		repo,
		validator.NewAccountValidator(log),
		auth.NewTokenManager("test-secret", time.Hour),
		auth.NewSessionCache(nil, time.Minute), // nil redis: cache is a no-op
		google,
		cfg,
	)
	return svc, repo
}

func TestRegister_DefaultsToClientRole(t *testing.T) {
	svc, _ := testAccountService(t, nil)

	resp, err := svc.Register(context.Background(), &model.RegisterRequest{
		Name:     "Ana Souza",
		Email:    "Ana@Example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, model.RoleClient, resp.Account.Role)
	assert.Equal(t, "ana@example.com", resp.Account.Email, "email should be normalized")
}

func TestRegister_ExplicitRole(t *testing.T) {
	svc, _ := testAccountService(t, nil)

	resp, err := svc.Register(context.Background(), &model.RegisterRequest{
		Name:     "Dr. Silva",
		Email:    "silva@example.com",
		Password: "s3cret-pass",
		Role:     "PROFESSIONAL",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleProfessional, resp.Account.Role)
}

// ADMIN is never self-assignable through signup; admin accounts are
// provisioned directly in the store.
func TestRegister_RejectsAdminRole(t *testing.T) {
	svc, repo := testAccountService(t, nil)

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Name:     "Eve Mallory",
		Email:    "eve@example.com",
		Password: "s3cret-pass",
		Role:     "ADMIN",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.AsAppError(err).Code)

	_, err = repo.FindByEmail(context.Background(), "eve@example.com")
	assert.Error(t, err, "no account may be created for a rejected signup")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := testAccountService(t, nil)

	req := &model.RegisterRequest{
		Name:     "Ana Souza",
		Email:    "ana@example.com",
		Password: "s3cret-pass",
	}
	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.AsAppError(err).Code)
}

func TestRegister_RejectsShortPassword(t *testing.T) {
	svc, _ := testAccountService(t, nil)

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Name:     "Ana Souza",
		Email:    "ana@example.com",
		Password: "short",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.AsAppError(err).Code)
}

func TestLogin(t *testing.T) {
	svc, _ := testAccountService(t, nil)

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Name:     "Ana Souza",
		Email:    "ana@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "ana@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	// Wrong password and unknown email fail identically.
	_, errWrong := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "ana@example.com",
		Password: "wrong-pass",
	})
	require.Error(t, errWrong)
	_, errUnknown := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever1",
	})
	require.Error(t, errUnknown)
	assert.Equal(t, apperrors.AsAppError(errWrong).Message, apperrors.AsAppError(errUnknown).Message)
	assert.Equal(t, 401, apperrors.AsAppError(errWrong).StatusCode())
}

func TestGoogleSignIn_CreatesClientAccount(t *testing.T) {
	svc, repo := testAccountService(t, &stubGoogleVerifier{
		info: &auth.GoogleUserInfo{Subject: "google-sub-1", Email: "novo@example.com", Name: "Novo Usuario"},
	})

	resp, err := svc.GoogleSignIn(context.Background(), &model.GoogleSignInRequest{IDToken: "stub-token"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleClient, resp.Account.Role)

	created, err := repo.FindByGoogleID(context.Background(), "google-sub-1")
	require.NoError(t, err)
	assert.Equal(t, "novo@example.com", created.Email)
	assert.Empty(t, created.PasswordHash)
}

func TestGoogleSignIn_LinksExistingAccountByEmail(t *testing.T) {
	verifier := &stubGoogleVerifier{
		info: &auth.GoogleUserInfo{Subject: "google-sub-2", Email: "ana@example.com", Name: "Ana"},
	}
	svc, repo := testAccountService(t, verifier)

	registered, err := svc.Register(context.Background(), &model.RegisterRequest{
		Name:     "Ana Souza",
		Email:    "ana@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	resp, err := svc.GoogleSignIn(context.Background(), &model.GoogleSignInRequest{IDToken: "stub-token"})
	require.NoError(t, err)
	assert.Equal(t, registered.Account.ID, resp.Account.ID, "existing account is linked, not duplicated")

	linked, err := repo.FindByID(context.Background(), registered.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, "google-sub-2", linked.GoogleID)
}

func TestGoogleSignIn_InvalidToken(t *testing.T) {
	svc, _ := testAccountService(t, &stubGoogleVerifier{err: errors.New("bad signature")})

	_, err := svc.GoogleSignIn(context.Background(), &model.GoogleSignInRequest{IDToken: "garbage"})
	require.Error(t, err)
	assert.Equal(t, 401, apperrors.AsAppError(err).StatusCode())
}

func TestMe(t *testing.T) {
	svc, _ := testAccountService(t, nil)

	registered, err := svc.Register(context.Background(), &model.RegisterRequest{
		Name:     "Ana Souza",
		Email:    "ana@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	ctx := auth.ContextWithIdentity(context.Background(), auth.Identity{
		AccountID: registered.Account.ID,
		Role:      registered.Account.Role,
	})
	me, err := svc.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", me.Email)

	_, err = svc.Me(context.Background())
	require.Error(t, err)
	assert.Equal(t, 401, apperrors.AsAppError(err).StatusCode())
}

func TestIsProfessional(t *testing.T) {
	svc, _ := testAccountService(t, nil)

	prof, err := svc.Register(context.Background(), &model.RegisterRequest{
		Name:     "Dr. Silva",
		Email:    "silva@example.com",
		Password: "s3cret-pass",
		Role:     "PROFESSIONAL",
	})
	require.NoError(t, err)
	client, err := svc.Register(context.Background(), &model.RegisterRequest{
		Name:     "Ana Souza",
		Email:    "ana@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	is, err := svc.IsProfessional(context.Background(), prof.Account.ID)
	require.NoError(t, err)
	assert.True(t, is)

	is, err = svc.IsProfessional(context.Background(), client.Account.ID)
	require.NoError(t, err)
	assert.False(t, is)

	is, err = svc.IsProfessional(context.Background(), "65f1a2b3c4d5e6f7a8b90000")
	require.NoError(t, err)
	assert.False(t, is, "unknown account is not a professional")
}
