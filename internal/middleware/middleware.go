package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	AccountHeader = "X-Account"
	accountKey    = "account"
)

// Account requires a hex address in the X-Account header and stores it on
// the context for handlers.
func Account() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(AccountHeader)
		if !common.IsHexAddress(raw) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": AccountHeader + " header must be a hex address"})
			return
		}
		c.Set(accountKey, common.HexToAddress(raw))
		c.Next()
	}
}

// Caller returns the address set by Account.
func Caller(c *gin.Context) common.Address {
	v, _ := c.Get(accountKey)
	addr, _ := v.(common.Address)
	return addr
}

type RateLimiter struct {
	clients   map[string]time.Time
	mu        sync.Mutex
	limit     time.Duration
	lastSweep time.Time
}

func NewRateLimiter(limit time.Duration) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]time.Time),
		limit:   limit,
	}
}

// Middleware allows one request per limit interval for each account,
// falling back to the client IP for anonymous requests.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetHeader(AccountHeader)
		if clientID == "" {
			clientID = c.ClientIP()
		}
		r.mu.Lock()
		last, exists := r.clients[clientID]
		if exists && time.Since(last) < r.limit {
			r.mu.Unlock()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		now := time.Now()
		r.evict(now)
		r.clients[clientID] = now
		r.mu.Unlock()
		c.Next()
	}
}

// evict drops clients whose last request is older than the limit, at most
// once per limit interval. Callers hold r.mu.
func (r *RateLimiter) evict(now time.Time) {
	if now.Sub(r.lastSweep) < r.limit {
		return
	}
	r.lastSweep = now
	for id, last := range r.clients {
		if now.Sub(last) >= r.limit {
			delete(r.clients, id)
		}
	}
}

func (r *RateLimiter) tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func Logger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infow("http_request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"account", c.GetHeader(AccountHeader),
			"latency", time.Since(start),
		)
	}
}
