package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/coursebot/backend/internal/infrastructure/log"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func echoBody(c *gin.Context) {
	body, _ := io.ReadAll(c.Request.Body)
	c.Data(http.StatusOK, "application/octet-stream", body)
}

func TestEnsureUTF8Body(t *testing.T) {
	router := gin.New()
	router.Use(EnsureUTF8Body())
	router.POST("/echo", echoBody)

	gbk, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(`{"user_content":"什么是指针"}`))
	require.NoError(t, err)

	t.Run("gbk json is converted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(gbk))
		req.Header.Set("Content-Type", "application/json; charset=gbk")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, `{"user_content":"什么是指针"}`, w.Body.String())
	})

	t.Run("binary upload untouched", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(gbk))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, gbk, w.Body.Bytes())
	})

	t.Run("utf8 untouched", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader([]byte(`{"a":"é"}`)))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, `{"a":"é"}`, w.Body.String())
	})
}

func TestRequireIdentity(t *testing.T) {
	router := gin.New()
	router.Use(RequireIdentity())
	router.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, Identity(c))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(IdentityHeader, " student-7 ")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student-7", w.Body.String())
}

func TestRequireInstructor(t *testing.T) {
	newRouter := func(token string) *gin.Engine {
		router := gin.New()
		router.DELETE("/documents", RequireInstructor(token), func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})
		return router
	}

	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"not configured", "", "Bearer anything", http.StatusForbidden},
		{"missing header", "secret", "", http.StatusForbidden},
		{"wrong token", "secret", "Bearer nope", http.StatusForbidden},
		{"wrong scheme", "secret", "Basic secret", http.StatusForbidden},
		{"ok", "secret", "Bearer secret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/documents", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newRouter(tt.token).ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, log.RequestIDFromContext(c.Request.Context()))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
}
