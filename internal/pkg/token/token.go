// Package token 签发与校验用户身份 JWT。
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken 签名不匹配、结构错误或已过期时返回。
var ErrInvalidToken = errors.New("invalid token")

// DefaultTTL 默认有效期。
const DefaultTTL = 7 * 24 * time.Hour

// Claims 是 token 中携带的身份信息。
type Claims struct {
	UserID    uint      `json:"-"`
	Email     string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

type jwtClaims struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service 使用 HS256 签发和校验 token。
//
// 密钥在构造时注入；更换密钥会使所有已签发的 token 失效。
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option 定制 Service。
type Option func(*Service)

// WithClock 替换时钟，测试用。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService 创建 token 服务。ttl <= 0 时使用 DefaultTTL。
func NewService(secret string, ttl time.Duration, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, errors.New("token: empty signing secret")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL 返回 token 有效期。
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue 为给定身份签发 token。
func (s *Service) Issue(userID uint, email string) (string, error) {
	if userID == 0 {
		return "", errors.New("token: empty user id")
	}
	now := s.now()
	claims := jwtClaims{
		ID:    userID,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify 校验 token 并返回其中的身份信息。
func (s *Service) Verify(tokenStr string) (*Claims, error) {
	claims := &jwtClaims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid || claims.ID == 0 || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	if claims.Subject != strconv.FormatUint(uint64(claims.ID), 10) {
		return nil, ErrInvalidToken
	}
	return &Claims{
		UserID:    claims.ID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
