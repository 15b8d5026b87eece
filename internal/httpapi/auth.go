package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"omset/backend/internal/domain"
)

const tokenIssuer = "omset"

var ErrUnauthorized = errors.New("invalid credentials")

type Authenticator interface {
	Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error)
	ParseToken(token string) (domain.Actor, error)
}

// AuthManager guards the API with a single configured admin account and stateless JWTs.
type AuthManager struct {
	secret       []byte
	tokenTTL     time.Duration
	username     string
	passwordHash []byte
	now          func() time.Time
}

// NewAuthManager accepts either a bcrypt hash or a plain password; the plain one is hashed here
// and never kept.
func NewAuthManager(secret string, tokenTTL time.Duration, username string, password string, passwordHash string) (*AuthManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth secret is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("admin username is required")
	}

	passwordHash = strings.TrimSpace(passwordHash)
	switch {
	case passwordHash != "":
		if !isPasswordHash(passwordHash) {
			return nil, errors.New("admin password hash must be a bcrypt hash")
		}
	case password != "":
		hashed, err := hashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		passwordHash = hashed
	default:
		return nil, errors.New("admin password or password hash is required")
	}

	return &AuthManager{
		secret:       []byte(secret),
		tokenTTL:     tokenTTL,
		username:     username,
		passwordHash: []byte(passwordHash),
		now:          time.Now,
	}, nil
}

func (a *AuthManager) Login(_ context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	userMatches := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	// bcrypt runs even for an unknown user so response time does not reveal the username.
	passwordMatches := req.Password != "" && bcrypt.CompareHashAndPassword(a.passwordHash, []byte(req.Password)) == nil
	if !userMatches || !passwordMatches {
		return domain.LoginResponse{}, ErrUnauthorized
	}

	expiresAt := a.now().UTC().Add(a.tokenTTL)
	token, err := a.sign(a.username, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &jwtlib.RegisteredClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	},
		jwtlib.WithValidMethods([]string{"HS256"}),
		jwtlib.WithIssuer(tokenIssuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return domain.Actor{}, fmt.Errorf("%w: invalid or expired token", ErrUnauthorized)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub != a.username {
		return domain.Actor{}, fmt.Errorf("%w: invalid token subject", ErrUnauthorized)
	}
	return domain.Actor{Username: sub}, nil
}

func (a *AuthManager) sign(username string, expiresAt time.Time) (string, error) {
	claims := jwtlib.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwtlib.NewNumericDate(a.now().UTC()),
		ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		Issuer:    tokenIssuer,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
