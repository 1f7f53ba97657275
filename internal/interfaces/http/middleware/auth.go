package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coursebot/backend/internal/infrastructure/log"
	"github.com/coursebot/backend/internal/interfaces/http/response"
)

const (
	// IdentityHeader 调用方身份请求头，由前置的登录网关写入
	IdentityHeader = "X-User-ID"

	identityKey = "coursebot.identity"
)

// RequireIdentity 要求请求携带身份，缺失时返回 401
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := strings.TrimSpace(c.GetHeader(IdentityHeader))
		if identity == "" {
			response.AbortFail(c, http.StatusUnauthorized, "missing "+IdentityHeader+" header")
			return
		}
		c.Set(identityKey, identity)
		c.Request = c.Request.WithContext(log.WithIdentity(c.Request.Context(), identity))
		c.Next()
	}
}

// Identity 当前请求的调用方身份
func Identity(c *gin.Context) string {
	return c.GetString(identityKey)
}

// RequireInstructor 校验教师令牌
// 未配置令牌时所有修改索引的接口一律拒绝
func RequireInstructor(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			response.AbortFail(c, http.StatusForbidden, "instructor access is not configured")
			return
		}
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) != 1 {
			response.AbortFail(c, http.StatusForbidden, "instructor token required")
			return
		}
		c.Next()
	}
}
