package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/testcert/internal/dto"
	"github.com/lshigami/testcert/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondError_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "not found", err: fmt.Errorf("%w: test 4", service.ErrNotFound), status: http.StatusNotFound},
		{name: "invalid test", err: fmt.Errorf("%w: no questions", service.ErrInvalidTest), status: http.StatusBadRequest},
		{name: "invalid state", err: fmt.Errorf("%w: session expired", service.ErrInvalidState), status: http.StatusConflict},
		{name: "unavailable", err: fmt.Errorf("%w: not published", service.ErrUnavailable), status: http.StatusForbidden},
		{name: "external failure", err: fmt.Errorf("%w: db down", service.ErrExternalFailure), status: http.StatusBadGateway},
		{name: "unclassified", err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			RespondError(c, tc.err)

			assert.Equal(t, tc.status, w.Code)
			var body dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestRespondError_IncompleteCertificate(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	RespondError(c, &service.IncompleteCertificateError{CertificateID: 12, Stage: "store", Err: errors.New("disk full")})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	var body dto.CertificateIncompleteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, uint(12), body.CertificateID)
	assert.Equal(t, "store", body.Stage)
}

func TestParseID(t *testing.T) {
	router := gin.New()
	router.GET("/items/:item_id", func(c *gin.Context) {
		id, ok := ParseID(c, "item_id")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	for path, status := range map[string]int{
		"/items/17":  http.StatusOK,
		"/items/0":   http.StatusBadRequest,
		"/items/-1":  http.StatusBadRequest,
		"/items/abc": http.StatusBadRequest,
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, status, w.Code, path)
	}
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/ping", func(c *gin.Context) {
		actor := ActorFrom(c, nil)
		c.String(http.StatusOK, actor.RequestID)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-123", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 65))
	router.ServeHTTP(w, req)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36, "oversized ids are replaced")
}

func TestRateLimit_PerClient(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(0.001, 2))
	router.GET("/verify", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(ip string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/verify", nil)
		req.RemoteAddr = ip + ":5000"
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2"), "limits are tracked per client")
}

func TestClientLimiters_PrunesIdleClients(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	limiters := newClientLimiters(0.001, 1, time.Minute, func() time.Time { return now })

	assert.True(t, limiters.allow("10.0.0.1"))
	assert.False(t, limiters.allow("10.0.0.1"))
	now = now.Add(30 * time.Second)
	assert.True(t, limiters.allow("10.0.0.2"))
	assert.Equal(t, 2, limiters.size())

	now = now.Add(40 * time.Second)
	assert.True(t, limiters.allow("10.0.0.3"))
	assert.Equal(t, 2, limiters.size(), "the client idle for over a minute is dropped")

	now = now.Add(2 * time.Minute)
	assert.True(t, limiters.allow("10.0.0.1"), "a pruned client starts with a fresh budget")
	assert.Equal(t, 1, limiters.size())
}
