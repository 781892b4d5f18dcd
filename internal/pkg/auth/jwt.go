package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

type Claims struct {
	UserID uint `json:"user_id"`
	jwt.StandardClaims
}

// Identity проверяет bearer-токены; выдача токенов остается за внешним сервисом
type Identity struct {
	key []byte
	ttl time.Duration
}

func NewIdentity(key string) *Identity {
	return &Identity{key: []byte(key), ttl: 24 * time.Hour}
}

// GenerateToken нужен клиентам разработки и тестам
func (i *Identity) GenerateToken(userID uint) (string, error) {
	expirationTime := time.Now().Add(i.ttl)
	claims := &Claims{
		UserID: userID,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expirationTime.Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(i.key)
}

func (i *Identity) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.key, nil
	})

	if err != nil {
		return nil, ErrInvalidToken
	}

	if !tkn.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// UserFromRequest достает пользователя из заголовка Authorization: Bearer <token>
func (i *Identity) UserFromRequest(r *http.Request) (uint, error) {
	header := r.Header.Get("Authorization")
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		// старые клиенты присылают токен в отдельном заголовке Bearer
		tokenStr = r.Header.Get("Bearer")
	}
	if tokenStr == "" {
		// браузерный WebSocket не умеет выставлять заголовки
		tokenStr = r.URL.Query().Get("access_token")
	}
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return 0, ErrMissingToken
	}

	claims, err := i.ValidateToken(tokenStr)
	if err != nil {
		return 0, err
	}

	return claims.UserID, nil
}

type ctxKey struct{}

func WithUser(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

func UserFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(ctxKey{}).(uint)
	return userID, ok && userID != 0
}

// UserFromTokenUnverified читает user_id без проверки подписи.
// Только для клиента, у которого нет ключа; сервер проверит токен сам.
func UserFromTokenUnverified(tokenStr string) (uint, error) {
	claims := &Claims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(tokenStr, claims); err != nil {
		return 0, ErrInvalidToken
	}
	if claims.UserID == 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}
