// Package slack posts calculation summaries to an incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"vidasync"
)

type Client struct {
	webhookURL string
	httpClient vidasync.HTTPClient
}

func NewClient(webhookURL string, httpClient vidasync.HTTPClient) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

func (c *Client) PostMessage(ctx context.Context, channel string, message string) error {
	payload, err := json.Marshal(map[string]any{
		"channel": channel,
		"text":    message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}

	return nil
}

// PostResult posts a readable summary of one calculation.
func (c *Client) PostResult(ctx context.Context, channel, foods string, res vidasync.AggregateResult) error {
	return c.PostMessage(ctx, channel, FormatResult(foods, res))
}

// FormatResult renders a calculation as Slack mrkdwn.
func FormatResult(foods string, res vidasync.AggregateResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Nutrition for:* %s\n", foods)

	switch {
	case res.Error != "":
		fmt.Fprintf(&b, ":warning: %s", res.Error)
		return b.String()
	case len(res.InvalidItems) > 0:
		fmt.Fprintf(&b, ":x: Not food: %s", strings.Join(res.InvalidItems, ", "))
		return b.String()
	case res.Nutrition == nil:
		b.WriteString(":warning: no result")
		return b.String()
	}

	n := res.Nutrition
	fmt.Fprintf(&b, "%s | protein %s | carbs %s | fat %s\n", n.Calories, n.Protein, n.Carbs, n.Fat)
	for _, d := range res.Ingredients {
		cached := ""
		if d.Cached {
			cached = " _(cached)_"
		}
		fmt.Fprintf(&b, "• %s: %s%s\n", d.Name, d.Nutrition.Calories, cached)
	}
	for _, c := range res.Corrections {
		fmt.Fprintf(&b, "✎ %s → %s\n", c.Original, c.Corrected)
	}
	return strings.TrimRight(b.String(), "\n")
}
