package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxResourceIDLen = 128

// RequireValidResourceID ensures the path param ":id" is a non-empty
// provider id made of letters, digits and "-_.:".
func RequireValidResourceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !validResourceID(c.Param("id")) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid resource id"})
			return
		}
		c.Next()
	}
}

func validResourceID(id string) bool {
	if id == "" || len(id) > maxResourceIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}
