package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edutrack/edutrack-api/internal/models"
	appErrors "github.com/edutrack/edutrack-api/pkg/errors"
	"github.com/edutrack/edutrack-api/pkg/mailer"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	userByID         *models.User
	findByEmailErr   error
	findByIDErr      error
	refreshTokens    map[string]*models.RefreshToken
	lastLoginUpdated bool
	passwordUpdated  bool
	tokensRevoked    bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordUpdated = true
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.tokensRevoked = true
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

type mockResetStore struct {
	tokens   map[string]string
	storeErr error
}

func (m *mockResetStore) Store(ctx context.Context, token, userID string, ttl time.Duration) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	if m.tokens == nil {
		m.tokens = make(map[string]string)
	}
	m.tokens[token] = userID
	return nil
}

func (m *mockResetStore) Consume(ctx context.Context, token string) (string, error) {
	userID, ok := m.tokens[token]
	if !ok {
		return "", appErrors.ErrCacheMiss
	}
	delete(m.tokens, token)
	return userID, nil
}

func (m *mockResetStore) RevokeAll(ctx context.Context, userID string) error {
	for token, owner := range m.tokens {
		if owner == userID {
			delete(m.tokens, token)
		}
	}
	return nil
}

type mockSender struct {
	sent    []mailer.Message
	sendErr error
}

func (m *mockSender) Send(ctx context.Context, msg mailer.Message) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newAuthService(repo *mockAuthRepo, store *mockResetStore, sender *mockSender) *AuthService {
	return NewAuthService(repo, store, sender, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "edutrack-api",
		ResetTokenTTL:      30 * time.Minute,
		ResetBaseURL:       "http://localhost/reset",
	})
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "admin@school.test", PasswordHash: string(password), Active: true, Role: models.RoleAdmin}}
	svc := newAuthService(repo, &mockResetStore{}, &mockSender{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "admin@school.test", PasswordHash: string(password), Active: true}}
	svc := newAuthService(repo, &mockResetStore{}, &mockSender{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "admin@school.test", PasswordHash: string(password), Active: false}}
	svc := newAuthService(repo, &mockResetStore{}, &mockSender{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	user := &models.User{ID: "u1", Email: "admin@school.test", Active: true, Role: models.RoleAdmin}
	repo := &mockAuthRepo{userByID: user, refreshTokens: map[string]*models.RefreshToken{
		"token": {ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthService(repo, &mockResetStore{}, &mockSender{})

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked, "used token is revoked")
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	user := &models.User{ID: "u1", Active: true}
	repo := &mockAuthRepo{userByID: user, refreshTokens: map[string]*models.RefreshToken{
		"token": {ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(-time.Minute)},
	}}
	svc := newAuthService(repo, &mockResetStore{}, &mockSender{})

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", PasswordHash: string(oldHash), Active: true}}
	svc := newAuthService(repo, &mockResetStore{}, &mockSender{})

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "old-password", NewPassword: "new-password"})
	require.NoError(t, err)
	assert.NotEqual(t, string(oldHash), repo.userByEmail.PasswordHash)
	assert.True(t, repo.tokensRevoked, "sessions invalidated after change")
}

func TestAuthServiceForgotPasswordIssuesToken(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "student@school.test", FullName: "Student", Active: true}}
	store := &mockResetStore{}
	sender := &mockSender{}
	svc := newAuthService(repo, store, sender)

	err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "student@school.test"})
	require.NoError(t, err)
	assert.Len(t, store.tokens, 1)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "student@school.test", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Body, "token=")
}

func TestAuthServiceForgotPasswordUnknownEmail(t *testing.T) {
	repo := &mockAuthRepo{findByEmailErr: sql.ErrNoRows}
	store := &mockResetStore{}
	sender := &mockSender{}
	svc := newAuthService(repo, store, sender)

	// Unknown addresses are acknowledged without sending anything.
	err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "ghost@school.test"})
	require.NoError(t, err)
	assert.Empty(t, store.tokens)
	assert.Empty(t, sender.sent)
}

func TestAuthServiceResetPassword(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", PasswordHash: string(oldHash), Active: true}}
	store := &mockResetStore{tokens: map[string]string{"reset-token": "u1"}}
	svc := newAuthService(repo, store, &mockSender{})

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: "reset-token", NewPassword: "new-password"})
	require.NoError(t, err)
	assert.True(t, repo.passwordUpdated)
	assert.True(t, repo.tokensRevoked)
	assert.Empty(t, store.tokens, "token consumed")
}

func TestAuthServiceResetPasswordTokenSingleUse(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Active: true}}
	store := &mockResetStore{tokens: map[string]string{"reset-token": "u1"}}
	svc := newAuthService(repo, store, &mockSender{})

	require.NoError(t, svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: "reset-token", NewPassword: "new-password"}))

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: "reset-token", NewPassword: "another-password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateToken(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo, &mockResetStore{}, &mockSender{})
	user := &models.User{ID: "u1", Email: "admin@school.test", Role: models.RoleAdmin}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo, &mockResetStore{}, &mockSender{})

	_, err := svc.ValidateToken("not-a-jwt")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
