package backend

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	serviceSubject = "orchestrator-service"

	// tokens are re-signed once less than this fraction of the ttl remains
	refreshFraction = 10
)

// ServiceClaims identifies the orchestrator to backend services
type ServiceClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ServiceTokenSource mints short-lived HS256 tokens for backend calls and
// reuses each one until it nears expiry.
type ServiceTokenSource struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewServiceTokenSource returns nil when no secret is configured,
// in which case calls go out unauthenticated.
func NewServiceTokenSource(secret string, ttl time.Duration) *ServiceTokenSource {
	if secret == "" {
		return nil
	}
	return &ServiceTokenSource{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Token returns the cached service token, signing a new one when the
// cached token is missing or close to expiry.
func (s *ServiceTokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Before(s.expires.Add(-s.ttl/refreshFraction)) {
		return s.token, nil
	}

	token, err := s.sign(now)
	if err != nil {
		return "", err
	}
	s.token = token
	s.expires = now.Add(s.ttl)
	return token, nil
}

func (s *ServiceTokenSource) sign(now time.Time) (string, error) {
	claims := ServiceClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   serviceSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
