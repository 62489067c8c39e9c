package controller

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lshigami/testcert/internal/dto"
	"github.com/lshigami/testcert/internal/service"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "request_id"

	maxRequestIDLength = 64
)

// RespondError writes err with the status of its service error class.
func RespondError(c *gin.Context, err error) {
	var incomplete *service.IncompleteCertificateError
	switch {
	case errors.As(err, &incomplete):
		c.JSON(http.StatusBadGateway, dto.CertificateIncompleteResponse{
			Message:       "Certificate was created but its document could not be produced",
			CertificateID: incomplete.CertificateID,
			Stage:         incomplete.Stage,
			Details:       []string{err.Error()},
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Resource not found", Details: []string{err.Error()}})
	case errors.Is(err, service.ErrInvalidTest):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid test definition", Details: []string{err.Error()}})
	case errors.Is(err, service.ErrInvalidState):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Message: "Operation not allowed in the current state", Details: []string{err.Error()}})
	case errors.Is(err, service.ErrUnavailable):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "Resource not available", Details: []string{err.Error()}})
	case errors.Is(err, service.ErrExternalFailure):
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Dependency failure")
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Message: "A dependency failed", Details: []string{err.Error()}})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled service error")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Internal server error"})
	}
}

// ParseID reads a uint path parameter, answering 400 when it is malformed.
func ParseID(c *gin.Context, name string) (uint, bool) {
	val, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || val == 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid " + name + " format"})
		return 0, false
	}
	return uint(val), true
}

// RequestID echoes the caller's X-Request-ID or assigns a new one.
// Oversized ids are replaced.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// ActorFrom describes the caller for the certificate audit trail.
func ActorFrom(c *gin.Context, performedBy *uint) service.Actor {
	return service.Actor{
		UserID:    performedBy,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		RequestID: GetRequestID(c),
	}
}

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters holds one limiter per client IP. Clients idle for longer
// than idleTTL are pruned, at most once per idleTTL.
type clientLimiters struct {
	mu        sync.Mutex
	perSecond rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	lastPrune time.Time
	visitors  map[string]*visitor
}

func newClientLimiters(perSecond float64, burst int, idleTTL time.Duration, now func() time.Time) *clientLimiters {
	return &clientLimiters{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		idleTTL:   idleTTL,
		now:       now,
		lastPrune: now(),
		visitors:  make(map[string]*visitor),
	}
}

func (l *clientLimiters) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastPrune) >= l.idleTTL {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) >= l.idleTTL {
				delete(l.visitors, key)
			}
		}
		l.lastPrune = now
	}
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *clientLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// RateLimit throttles each client IP independently.
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	return rateLimit(newClientLimiters(perSecond, burst, limiterIdleTTL, time.Now))
}

func rateLimit(limiters *clientLimiters) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiters.allow(ip) {
			log.Warn().Str("client_ip", ip).Str("path", c.FullPath()).Msg("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{Message: "Too many requests"})
			return
		}
		c.Next()
	}
}
