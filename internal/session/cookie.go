package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const cookieIssuer = "panel"

// ErrInvalidToken 会话Cookie无效或已被篡改
var ErrInvalidToken = errors.New("invalid session token")

// CookieSigner 使用 HS256 签发浏览器会话Cookie
type CookieSigner struct {
	secret []byte
	ttl    time.Duration
	clock  Clock
}

// NewCookieSigner 创建签名器
func NewCookieSigner(secret string, ttl time.Duration, clock Clock) *CookieSigner {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CookieSigner{secret: []byte(secret), ttl: ttl, clock: clock}
}

// Sign 为会话ID签发令牌
func (s *CookieSigner) Sign(sid string) (string, error) {
	now := s.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:  sid,
		Issuer:   cookieIssuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// Parse 校验令牌并返回会话ID
func (s *CookieSigner) Parse(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
