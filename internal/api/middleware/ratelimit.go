package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewRateLimiter creates a Gin middleware for server-side advisory rate
// limiting. requests is the number of requests allowed per period. When
// redisURL is empty, counters live in process memory; otherwise they are
// shared across replicas through Redis.
func NewRateLimiter(requests int64, period time.Duration, redisURL string, logger zerolog.Logger) (gin.HandlerFunc, error) {
	if period <= 0 {
		return nil, fmt.Errorf("invalid rate limit period %s", period)
	}

	rate := limiter.Rate{
		Period: period,
		Limit:  requests,
	}

	var store limiter.Store
	if redisURL != "" {
		opts, err := goredis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis URL: %w", err)
		}
		store, err = sredis.NewStoreWithOptions(goredis.NewClient(opts), limiter.StoreOptions{
			Prefix: "plantae_ratelimit",
		})
		if err != nil {
			return nil, fmt.Errorf("create redis rate limit store: %w", err)
		}
		logger.Info().Msg("rate limiter backed by redis")
	} else {
		store = memory.NewStore()
	}

	instance := limiter.New(store, rate)
	return mgin.NewMiddleware(instance), nil
}
