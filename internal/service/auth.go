// 게이트웨이 인증
//
// AI_GATEWAY_SECRET이 설정되면 /api/v1/* 요청은 Bearer 토큰이 필요
//   - 토큰이 secret과 같으면 통과 (수집기/스크립트용)
//   - 또는 secret으로 서명된 HS256 JWT (만료 시각 검증)
// secret이 비어 있으면 인증 생략 (개발 모드)

package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kube-rca/rca-worker/internal/config"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrMisconfigured = errors.New("auth misconfigured")
)

type gatewayClaims struct {
	jwt.RegisteredClaims
}

type GatewayAuth struct {
	secret []byte
	now    func() time.Time
}

func NewGatewayAuth(cfg config.AuthConfig) *GatewayAuth {
	return &GatewayAuth{secret: []byte(cfg.GatewaySecret), now: time.Now}
}

// Enabled - secret 미설정이면 false
func (a *GatewayAuth) Enabled() bool {
	return a != nil && len(a.secret) > 0
}

// Verify - 토큰 검증, 성공 시 호출자 식별자(subject) 반환
func (a *GatewayAuth) Verify(token string) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	if token == "" {
		return "", ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(token), a.secret) == 1 {
		return "shared-secret", nil
	}

	claims := &gatewayClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthorized
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !parsed.Valid {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}

// IssueToken - 수집기용 JWT 발급 (ttl <= 0 이면 만료 없음)
func (a *GatewayAuth) IssueToken(subject string, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", fmt.Errorf("%w: AI_GATEWAY_SECRET is required", ErrMisconfigured)
	}
	now := a.now()
	claims := gatewayClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
