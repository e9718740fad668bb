package tidal

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

type accessTokenClaims struct {
	UserID string
	Expiry time.Time
}

// parseAccessToken reads the claims of a TIDAL access token without
// verifying its signature. Only the API can say whether it is still good.
func parseAccessToken(raw string) (accessTokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return accessTokenClaims{}, errors.Wrap(err, "[parseAccessToken]")
	}

	var out accessTokenClaims
	switch uid := claims["uid"].(type) {
	case float64:
		out.UserID = fmt.Sprintf("%.0f", uid)
	case string:
		out.UserID = uid
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.Expiry = exp.Time
	}
	return out, nil
}
