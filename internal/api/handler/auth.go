package handler

import (
	"errors"
	"lessonchat/backend/internal/apperr"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	issuer      = "lessonchat-service"
	identityKey = "identity"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for the user.
func IssueToken(secret []byte, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken validates the signature and expiry and returns the caller.
func ParseToken(secret []byte, tokenString string) (*Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, apperr.New(apperr.CodeUnauthorized, "invalid or expired token", err)
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, apperr.New(apperr.CodeUnauthorized, "token lacks subject or email", nil)
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// RequireAuth reads a bearer token, or the token query parameter browsers use for
// WebSocket upgrades.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			abortWithError(c, apperr.New(apperr.CodeUnauthorized, "authorization token missing", nil))
			return
		}

		identity, err := ParseToken(h.JWTSecret, tokenString)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(identityKey, *identity)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func identityFrom(c *gin.Context) Identity {
	id, _ := c.Get(identityKey)
	identity, _ := id.(Identity)
	return identity
}

func abortWithError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || status == http.StatusInternalServerError {
		c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":   apperr.CodeOf(err),
		"message": apperr.PublicMessage(err),
	})
}
