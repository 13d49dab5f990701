package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/troyapi/troy/internal/model"
	"github.com/troyapi/troy/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidKey         = errors.New("invalid api key")
)

// KeyPrefixLen is how many characters of the plaintext key are kept as the
// identifying prefix in listings.
const KeyPrefixLen = 12

// dummyHash is compared against when a login targets an unknown username so
// the request costs a bcrypt verification either way. The response for a
// wrong password and an unknown username must be indistinguishable.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("troy-timing-equalizer"), bcrypt.DefaultCost)

// AuthService owns both trust domains: bearer session tokens for account
// management and API keys for the price endpoints.
type AuthService struct {
	store     *store.Store
	jwtSecret []byte
	logger    *slog.Logger
}

func NewAuthService(st *store.Store, jwtSecret string, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:     st,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

// Register creates a new account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, username, password string) (*model.Account, error) {
	if username == "" {
		return nil, errors.New("username is required")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acct := &model.Account{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return acct, nil
}

// Login verifies a username/password pair. Unknown usernames and wrong
// passwords both yield ErrInvalidCredentials; the bcrypt comparison runs
// in both cases so the two are not distinguishable by timing either.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.Account, error) {
	acct, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return acct, nil
}

// ---------------------------------------------------------------------------
// Session tokens
// ---------------------------------------------------------------------------

// IssueToken creates a signed session token for the given account.
func (s *AuthService) IssueToken(acct *model.Account, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   acct.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    "troy",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken verifies a session token and resolves its subject to a live
// account. A structurally valid token whose subject no longer exists fails
// closed with ErrInvalidToken.
func (s *AuthService) ValidateToken(ctx context.Context, tokenStr string) (*model.Account, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	acct, err := s.store.GetAccountByUsername(ctx, claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return acct, nil
}

// ---------------------------------------------------------------------------
// API keys
// ---------------------------------------------------------------------------

// CreateKey generates a fresh API key for an account and returns the
// plaintext exactly once alongside the stored record. A key-hash collision
// is vanishingly unlikely but triggers regeneration rather than an error.
func (s *AuthService) CreateKey(ctx context.Context, accountID int64, label string) (string, *model.APIKey, error) {
	for attempt := 0; attempt < 3; attempt++ {
		plaintext, err := generateKey()
		if err != nil {
			return "", nil, err
		}

		key := &model.APIKey{
			KeyHash:   store.HashKey(plaintext),
			KeyPrefix: plaintext[:KeyPrefixLen],
			Label:     label,
			AccountID: accountID,
			IsActive:  true,
		}
		err = s.store.CreateKey(ctx, key)
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			return "", nil, err
		}
		return plaintext, key, nil
	}
	return "", nil, errors.New("could not generate a unique api key")
}

// ValidateAPIKey checks the provided raw API key against stored key hashes.
// The caller cannot tell a missing key from a revoked one. On success a
// usage record is written in the background; its failure never affects the
// request.
func (s *AuthService) ValidateAPIKey(ctx context.Context, rawKey string) (*model.APIKey, error) {
	key, err := s.store.GetKeyByHash(ctx, store.HashKey(rawKey))
	if err != nil {
		return nil, ErrInvalidKey
	}
	if !key.IsActive {
		return nil, ErrInvalidKey
	}

	// Usage logging is best-effort telemetry, off the response path.
	go func(id int64) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.RecordKeyUsage(ctx, id); err != nil {
			s.logger.Warn("record key usage failed", "key_id", id, "error", err)
		}
	}(key.ID)

	return key, nil
}

// generateKey produces a 256-bit random key, hex encoded with a fixed prefix.
func generateKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return "troy_" + hex.EncodeToString(raw), nil
}
