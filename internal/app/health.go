package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker verifies the upstream API is reachable and, when the redis
// token backend is configured, that Redis answers pings.
type HealthChecker struct {
	infra       Infrastructure
	upstreamURL string
	client      *http.Client
}

func NewHealthChecker(infra Infrastructure, upstreamURL string) *HealthChecker {
	return &HealthChecker{
		infra:       infra,
		upstreamURL: upstreamURL,
		client:      &http.Client{Timeout: healthCheckTimeout},
	}
}

func (h *HealthChecker) check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- h.pingUpstream(ctx)
	}()

	go func() {
		if h.infra.Redis() == nil {
			errs <- nil
			return
		}
		errs <- h.infra.Redis().Ping(ctx)
	}()

	return errors.Join(<-errs, <-errs)
}

// pingUpstream only needs the upstream to answer; any HTTP status counts as
// reachable.
func (h *HealthChecker) pingUpstream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.upstreamURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build upstream health request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("upstream is unreachable: %w", err)
	}
	_ = resp.Body.Close()

	return nil
}

func (h *HealthChecker) Handler(c *gin.Context) {
	if err := h.check(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "fail",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "pass",
	})
}
