package client

import "context"

// Health checks the liveness of the API
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.doRequest(ctx, "GET", "/healthz", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Ping is a simple connectivity test
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}

// Monitor returns the health reconciler state
func (c *Client) Monitor(ctx context.Context) (*MonitorStatus, error) {
	var status MonitorStatus
	if err := c.doRequest(ctx, "GET", "/api/v1/health/monitor", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
