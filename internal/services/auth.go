package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenService struct {
	Secret    []byte
	Issuer    string
	AccessTTL time.Duration
}

// Claims is what handlers need from a verified access token.
type Claims struct {
	RUT       string
	SessionID string
	Roles     []string
}

// CreateAccessToken signs a token for the person identified by rut. The
// session id ties the token to an entry of the credential's active sessions.
func (t TokenService) CreateAccessToken(rut, sessionID string, roles []string) (string, int64, error) {
	now := time.Now().UTC()
	exp := now.Add(t.AccessTTL)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	claims := jwt.MapClaims{
		"iss":   t.Issuer,
		"sub":   rut,
		"sid":   sessionID,
		"typ":   "access",
		"roles": roles,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.Secret)
	return signed, exp.Unix(), err
}

func (t TokenService) ParseToken(tokenStr string) (*jwt.Token, jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.Secret, nil
	}, jwt.WithIssuer(t.Issuer))
	return token, claims, err
}

// VerifyAccess parses tokenStr and rejects anything that is not a valid
// access token.
func (t TokenService) VerifyAccess(tokenStr string) (Claims, error) {
	token, claims, err := t.ParseToken(tokenStr)
	if err != nil || !token.Valid || claims["typ"] != "access" {
		return Claims{}, ErrUnauthorized("Token inválido o expirado")
	}
	sub, _ := claims["sub"].(string)
	sid, _ := claims["sid"].(string)
	out := Claims{RUT: sub, SessionID: sid}
	if raw, ok := claims["roles"].([]interface{}); ok {
		for _, r := range raw {
			if role, ok := r.(string); ok {
				out.Roles = append(out.Roles, role)
			}
		}
	}
	return out, nil
}
