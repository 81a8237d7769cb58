package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Client fetches skill scores from the external profile service. Used
// only by skill-ranked seeding; a failing lookup degrades to a zero
// rating upstream, it never blocks bracket generation.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

type skillResponse struct {
	UserID int     `json:"user_id"`
	Rating float64 `json:"rating"`
}

func (c *Client) SkillRating(ctx context.Context, userID int) (float64, error) {
	url := fmt.Sprintf("%s/users/%d/skill", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build skill request for user %d: %w", userID, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("skill lookup failed",
			slog.Int("user_id", userID),
			slog.String("error", err.Error()))
		return 0, fmt.Errorf("skill lookup for user %d: %w", userID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("skill lookup for user %d returned status %d", userID, resp.StatusCode)
	}

	var body skillResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode skill response for user %d: %w", userID, err)
	}
	return body.Rating, nil
}
