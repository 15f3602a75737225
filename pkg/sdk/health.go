package fedcat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Health fetches the server's health report. A degraded or failing server is
// reported through HealthStatus.Status, not as an error.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	resp, err := c.send("health", req, http.StatusServiceUnavailable)
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	var hs HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return HealthStatus{}, fmt.Errorf("fedcat: decode health: %w", err)
	}
	return hs, nil
}
