package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/trustcove/trustcove/internal/config"
)

const (
	keyInviteIP     = "invite:ip:%s"
	keyInviteOrg    = "invite:org:%s"
	keyInviteAccept = "invite:accept:%s"

	acceptLockTTL = 10 * time.Second
)

// InviteLimiter throttles the invitation endpoints. Token resolution is
// limited per client IP because the token itself is the only credential;
// creation is limited per organization to cap invite spam.
type InviteLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	rate  float64
	burst int
}

func NewInviteLimiter(cfg config.Config) (*InviteLimiter, error) {
	if !cfg.RateLimitEnabled {
		return nil, nil
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if cfg.InviteRate <= 0 || cfg.InviteBurst <= 0 {
		return nil, errors.New("invite rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	return &InviteLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		rate:    cfg.InviteRate,
		burst:   cfg.InviteBurst,
	}, nil
}

func (l *InviteLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *InviteLimiter) AllowIP(ctx context.Context, ip string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyInviteIP, strings.TrimSpace(ip)), l.rate, l.burst)
}

func (l *InviteLimiter) AllowOrg(ctx context.Context, orgID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyInviteOrg, strings.TrimSpace(orgID)), l.rate, l.burst)
}

// TryLockAccept serializes acceptance attempts for one token across
// instances. The database transaction is still the source of truth; the
// lock just avoids burning both attempts on a conflict.
func (l *InviteLimiter) TryLockAccept(ctx context.Context, token string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, fmt.Sprintf(keyInviteAccept, hashKey(token)), acceptLockTTL)
}

func (l *InviteLimiter) ReleaseAccept(ctx context.Context, token, lockToken string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, fmt.Sprintf(keyInviteAccept, hashKey(token)), lockToken)
}

// hashKey keeps raw invitation tokens out of redis keys.
func hashKey(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}
