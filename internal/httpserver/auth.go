package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const contextKeyUserID = "auth_user_id"

// authMiddleware validates an HS256 bearer token and stashes the caller's
// user id on the request context. Admin-ness is decided by the identity
// directory, never by token claims.
func authMiddleware(signingKey []byte, issuer string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing bearer token"))
			return
		}
		rawToken := strings.TrimPrefix(header, "Bearer ")

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return signingKey, nil
		}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid token"))
			return
		}
		userID, _ := claims["uid"].(string)
		if strings.TrimSpace(userID) == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "token has no subject"))
			return
		}
		ctx.Set(contextKeyUserID, userID)
		ctx.Next()
	}
}

func callerUserID(ctx *gin.Context) string {
	value, _ := ctx.Get(contextKeyUserID)
	userID, _ := value.(string)
	return userID
}
