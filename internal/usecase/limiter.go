package usecase

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/user/event-harvest/pkg/utils"
)

// hostLimiters hands out one token bucket per origin host.
type hostLimiters struct {
	mu      sync.Mutex
	perHost map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

func newHostLimiters(rps float64, burst int) *hostLimiters {
	if rps <= 0 {
		rps = float64(rate.Inf)
	}
	if burst < 1 {
		burst = 1
	}
	return &hostLimiters{perHost: make(map[string]*rate.Limiter), rps: rate.Limit(rps), burst: burst}
}

func (h *hostLimiters) Wait(ctx context.Context, rawURL string) error {
	host := utils.Host(rawURL)
	h.mu.Lock()
	l, ok := h.perHost[host]
	if !ok {
		l = rate.NewLimiter(h.rps, h.burst)
		h.perHost[host] = l
	}
	h.mu.Unlock()
	return l.Wait(ctx)
}
