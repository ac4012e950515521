package auth

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jwalitptl/ed-intake/internal/model"
)

var ErrInvalidToken = stderrors.New("invalid token")

// TokenClaims are the claims carried by an operator token. Role uses the
// remote service's claim name so clients can read it without verifying.
type TokenClaims struct {
	Email string     `json:"email"`
	Role  model.Role `json:"autoridad"`
	jwt.RegisteredClaims
}

// JWTService issues and verifies HS256 operator tokens.
type JWTService interface {
	GenerateAccessToken(profile *model.Profile) (token string, expiresIn time.Duration, err error)
	ValidateToken(token string) (*TokenClaims, error)
}

type jwtService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewJWTService(secret string, ttl time.Duration) JWTService {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &jwtService{secret: []byte(secret), ttl: ttl, issuer: "ed-intake", now: time.Now}
}

func (s *jwtService) GenerateAccessToken(profile *model.Profile) (string, time.Duration, error) {
	now := s.now()
	claims := TokenClaims{
		Email: profile.Email,
		Role:  profile.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign token: %w", err)
	}
	return token, s.ttl, nil
}

func (s *jwtService) ValidateToken(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
