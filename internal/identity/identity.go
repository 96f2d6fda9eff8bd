// Package identity is the authorization collaborator: it issues and verifies
// the bearer credential whose username claim the score path trusts as the
// authoritative identity.
package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bananagame/banago/internal/domain"
	"github.com/bananagame/banago/internal/errors"
)

const defaultTTL = 24 * time.Hour

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type Config struct {
	// Secret signs and verifies tokens (HS256).
	Secret string
	// TTL is the token lifetime, 24h when unset.
	TTL time.Duration
	// Users maps accepted usernames to passwords for Login. Account
	// management itself lives outside this service.
	Users map[string]string
}

type Service struct {
	secret []byte
	ttl    time.Duration
	users  map[string]string
}

func NewService(c Config) *Service {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Service{
		secret: []byte(c.Secret),
		ttl:    ttl,
		users:  c.Users,
	}
}

// Login checks the credentials and issues a token for the username.
func (s *Service) Login(username, password string) (string, error) {
	want, ok := s.users[username]
	if !ok || want != password {
		return "", errors.Unauthenticatedf("invalid username or password")
	}
	return s.Issue(username)
}

// Issue signs a bearer token embedding the username and an expiry.
func (s *Service) Issue(username string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify validates the token and returns the principal it names.
func (s *Service) Verify(token string) (domain.Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return domain.Principal{}, errors.Unauthenticatedf("invalid or expired token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Username == "" {
		return domain.Principal{}, errors.Unauthenticatedf("invalid or expired token")
	}

	return domain.Principal{Username: claims.Username}, nil
}
