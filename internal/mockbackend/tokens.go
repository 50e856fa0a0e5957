package mockbackend

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// issuer — выпуск и проверка JWT HS256 с отзывом по jti.
type issuer struct {
	secret []byte
	ttl    time.Duration
	name   string

	mu      sync.Mutex
	revoked map[string]time.Time // jti → exp
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

func newIssuer(secret string, ttl time.Duration) *issuer {
	return &issuer{
		secret:  []byte(secret),
		ttl:     ttl,
		name:    "console-mock-backend",
		revoked: make(map[string]time.Time),
	}
}

// issue выпускает токен для пользователя.
func (i *issuer) issue(u user) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			Issuer:    i.name,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Email: u.Email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("подпись JWT: %w", err)
	}
	return signed, nil
}

// verify проверяет подпись, срок и отзыв. Возвращает claims.
func (i *issuer) verify(raw string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.name),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("невалидный токен: %w", err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.revoked[claims.ID]; ok {
		return nil, errors.New("токен отозван")
	}
	return claims, nil
}

// revoke отзывает токен до истечения его срока. Истёкшие записи удаляются.
func (i *issuer) revoke(claims *tokenClaims) {
	i.mu.Lock()
	defer i.mu.Unlock()
	now := time.Now()
	for jti, exp := range i.revoked {
		if exp.Before(now) {
			delete(i.revoked, jti)
		}
	}
	if claims.ExpiresAt != nil {
		i.revoked[claims.ID] = claims.ExpiresAt.Time
	}
}
