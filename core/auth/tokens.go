package auth

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/principal"
)

var nowFunc = time.Now // mockable

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	TenantID     string `json:"tenant_id,omitempty"`
	Role         string `json:"role,omitempty"`
	StudentID    string `json:"student_id,omitempty"`
	Username     string `json:"username,omitempty"`
}

// TokenManager signs and parses session credentials. HS256 only; any
// cryptographic or structural failure surfaces as ErrTokenInvalid without
// detail.
type TokenManager struct {
	secret        []byte
	appName       string
	expiry        time.Duration
	refreshExpiry time.Duration
}

func NewTokenManager(conf *core.Config) *TokenManager {
	return &TokenManager{
		secret:        conf.SecretKey,
		appName:       conf.AppName,
		expiry:        conf.Server.JWTExpirationDelta,
		refreshExpiry: conf.Server.JWTRefreshExpirationDelta,
	}
}

// Claims builds the claim set for a principal.
func (tm *TokenManager) Claims(p principal.Principal, origIat ...int64) *Claims {
	now := nowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    tm.appName,
			Subject:   p.ID,
			ExpiresAt: now.Add(tm.expiry).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		TenantID:     p.TenantID,
		Role:         p.Role.String(),
		Username:     p.Username,
	}
	if p.IsStudent() {
		claims.StudentID = p.ID
	}
	return claims
}

// Generate signs the claims into a compact token string.
func (tm *TokenManager) Generate(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(tm.secret)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Parse decodes and checks signature and expiry. It never leaks why a token
// was rejected.
func (tm *TokenManager) Parse(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return tm.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// RefreshExpired reports whether the refresh window anchored at the token's
// original issue time has passed.
func (tm *TokenManager) RefreshExpired(claims *Claims) bool {
	return nowFunc().After(time.Unix(claims.OrigIssuedAt, 0).Add(tm.refreshExpiry))
}
