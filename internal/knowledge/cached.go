package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"
)

// VerdictCache persists completion answers between runs.
type VerdictCache interface {
	LoadVerdict(ctx context.Context, key string) (verdict, rationale string, ok bool, err error)
	StoreVerdict(ctx context.Context, key, verdict, rationale string) error
}

// Cached memoizes a Service. Cache failures are logged and bypassed.
type Cached struct {
	next   Service
	cache  VerdictCache
	logger *zap.Logger
}

func NewCached(next Service, cache VerdictCache, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, cache: cache, logger: logger}
}

func (c *Cached) Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
	key := cacheKey(req)
	verdict, rationale, ok, err := c.cache.LoadVerdict(ctx, key)
	if err != nil {
		c.logger.Warn("verdict cache read failed", zap.Error(err))
	} else if ok {
		return VerifyResponse{Verdict: Verdict(verdict), Rationale: rationale}, nil
	}

	resp, err := c.next.Verify(ctx, req)
	if err != nil {
		return VerifyResponse{}, err
	}
	if err := c.cache.StoreVerdict(ctx, key, string(resp.Verdict), resp.Rationale); err != nil {
		c.logger.Warn("verdict cache write failed", zap.Error(err))
	}
	return resp, nil
}

func cacheKey(req VerifyRequest) string {
	h := sha256.New()
	for _, part := range []string{req.Language, req.CallerName, req.CandidateCallee, req.CallerBody} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
