package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/microcourse/internal/infrastructure/auth"
	"github.com/pot-code/microcourse/internal/infrastructure/driver"
)

// RevokedTokenPrefix kv key prefix of signed out bearer tokens
const RevokedTokenPrefix = "revoked:"

type SessionHandler struct {
	jwtUtil *auth.JWTUtil
	kv      driver.KeyValueDB
}

func NewSessionHandler(JWTUtil *auth.JWTUtil, KV driver.KeyValueDB) *SessionHandler {
	return &SessionHandler{JWTUtil, KV}
}

// HandleSignOut PUT /session/sign-out, the token stays revoked until it expires
func (sh *SessionHandler) HandleSignOut(c echo.Context) error {
	claims := sh.jwtUtil.GetContextToken(c)
	tokenStr, err := sh.jwtUtil.ExtractToken(c)
	if err != nil {
		return c.NoContent(http.StatusUnauthorized)
	}

	// tokens without expiry are revoked for good
	if err := sh.kv.SetEX(c.Request().Context(), RevokedTokenPrefix+tokenStr, claims.UID, claims.TimeRemaining()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
