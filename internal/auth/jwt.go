package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken возвращается для недействительного или просроченного токена
var ErrInvalidToken = errors.New("invalid token")

// Claims represents JWT claims of an operator token
type Claims struct {
	Operator string `json:"operator"`
	Level    int    `json:"level"`
	jwt.RegisteredClaims
}

// TokenIssuer выпускает и проверяет токены операторов (HS256)
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer создаёт издателя. secret - base64 не короче 32 байт;
// пустой secret заменяется случайным (токены не переживут перезапуск).
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	ti := &TokenIssuer{ttl: ttl, now: time.Now}

	if secret == "" {
		ti.secret = make([]byte, 32)
		if _, err := rand.Read(ti.secret); err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		return ti, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("secret key must be base64: %w", err)
	}
	if len(decoded) < 32 {
		return nil, errors.New("secret key must be at least 32 bytes")
	}
	ti.secret = decoded
	return ti, nil
}

// GenerateJWT creates a signed token for the operator
func (ti *TokenIssuer) GenerateJWT(op *Operator) (string, error) {
	now := ti.now()
	claims := &Claims{
		Operator: op.Name,
		Level:    op.Level,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "backinv",
			Subject:   op.Name,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ti.secret)
}

// ValidateJWT checks token validity and returns its claims
func (ti *TokenIssuer) ValidateJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return ti.secret, nil
	}, jwt.WithIssuer("backinv"), jwt.WithTimeFunc(ti.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// GenerateSecureSecret generates a new secure secret key (base64, 32 bytes)
func GenerateSecureSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
