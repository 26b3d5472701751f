package auth

import (
	"context"
	"time"

	errors "github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error)
	RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	GetUserWithRoles(ctx context.Context, userID int64) (*User, error)
	HashPassword(password string) (string, error)
}

type RepositoryAPI interface {
	GetPasswordForEmail(ctx context.Context, email string) (passwordHash string, userID int64, err error)
	GetUserWithRoles(ctx context.Context, userID int64) (*User, error)
}

// TokenGenerator creates and verifies signed tokens.
type TokenGenerator interface {
	GenerateAccessToken(userID int64, email string) (string, error)
	GenerateRefreshToken(userID int64, email string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
}

// User is the authenticated principal placed on the request context.
type User struct {
	ID    int64                `json:"id"`
	Email string               `json:"email"`
	Roles []identity.AdminRole `json:"roles,omitempty"`
}

// Actor converts the principal into the explicit actor passed to services.
func (u *User) Actor() identity.Actor {
	return identity.Actor{
		UserID: u.ID,
		Email:  u.Email,
		Roles:  u.Roles,
	}
}

func (u *User) HasAnyScope(kinds ...identity.ScopeKind) bool {
	actor := u.Actor()
	for _, k := range kinds {
		if actor.HasScope(k) {
			return true
		}
	}
	return false
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims represents JWT token claims
type Claims struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
}

type ctxKey string

const ContextUserKey ctxKey = "user"

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(ContextUserKey).(*User)
	return u, ok
}

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ContextUserKey, u)
}

var (
	ErrInvalidCredentials = errors.ErrInvalidCredentials
	ErrInvalidToken       = errors.ErrInvalidToken
	ErrTokenExpired       = errors.ErrTokenExpired
	ErrUserInactive       = errors.ErrUserInactive
)

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
