// Package notify relays new orders to a Discord channel through an incoming
// webhook. Delivery is best effort.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBatchSize  = 10
	DefaultBatchDelay = time.Second

	summaryColor = 0x6b7280
	imageColor   = 0x9ca3af
	testColor    = 0x00ff00
)

// Submission is the finalized order as the channel sees it.
type Submission struct {
	ID                   string
	Name                 string
	Phone                string
	Address              string
	DeliveryInstructions string
	TotalCost            float64
	Tip                  *float64
	ImageURLs            []string
	UserID               string
	UserEmail            string
	SubmittedAt          time.Time
}

type webhookMessage struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Image       *embedImage  `json:"image,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedImage struct {
	URL string `json:"url"`
}

// DiscordNotifier posts a summary message and then the order's images in
// batches, pausing between batches to stay under the webhook rate limit.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
	log        *zap.Logger
	batchSize  int
	batchDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

type Option func(*DiscordNotifier)

func WithHTTPClient(c *http.Client) Option {
	return func(n *DiscordNotifier) { n.client = c }
}

func WithBatching(size int, delay time.Duration) Option {
	return func(n *DiscordNotifier) {
		if size > 0 {
			n.batchSize = size
		}
		n.batchDelay = delay
	}
}

func NewDiscordNotifier(webhookURL string, log *zap.Logger, opts ...Option) *DiscordNotifier {
	n := &DiscordNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 15 * time.Second},
		log:        log,
		batchSize:  DefaultBatchSize,
		batchDelay: DefaultBatchDelay,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends the summary and then the image batches. Only a failed summary
// is returned as an error; failed batches are logged and skipped.
func (n *DiscordNotifier) Notify(ctx context.Context, s Submission) error {
	if n.webhookURL == "" {
		n.log.Info("discord webhook not configured, skipping notification", zap.String("submission", s.ID))
		return nil
	}

	if err := n.send(ctx, summaryMessage(s)); err != nil {
		return fmt.Errorf("notify summary: %w", err)
	}

	batches := chunk(s.ImageURLs, n.batchSize)
	for i, batch := range batches {
		first := i*n.batchSize + 1
		msg := imageMessage(batch, first, len(s.ImageURLs))
		if err := n.send(ctx, msg); err != nil {
			n.log.Warn("image batch not delivered",
				zap.String("submission", s.ID),
				zap.Int("batch", i+1),
				zap.Int("batches", len(batches)),
				zap.Error(err))
		}

		if i < len(batches)-1 {
			if err := n.sleep(ctx, n.batchDelay); err != nil {
				n.log.Warn("image batches abandoned", zap.String("submission", s.ID), zap.Error(err))
				return nil
			}
		}
	}
	return nil
}

// SendTest posts a single message carrying data, for checking the webhook
// from the app. It is a no-op when no webhook is configured.
func (n *DiscordNotifier) SendTest(ctx context.Context, data map[string]any) error {
	if n.webhookURL == "" {
		n.log.Info("discord webhook not configured, skipping test message")
		return nil
	}

	pretty, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return n.send(ctx, webhookMessage{
		Content: "New form submission received",
		Embeds: []embed{{
			Title:       "Form Submission",
			Description: "Data: " + string(pretty),
			Color:       testColor,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	})
}

func (n *DiscordNotifier) send(ctx context.Context, msg webhookMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

func summaryMessage(s Submission) webhookMessage {
	tip := "none"
	if s.Tip != nil {
		tip = formatMoney(*s.Tip)
	}

	return webhookMessage{
		Content: "New order submission!",
		Embeds: []embed{{
			Title:       "New Order: " + s.Name,
			Description: s.DeliveryInstructions,
			Color:       summaryColor,
			Timestamp:   s.SubmittedAt.UTC().Format(time.RFC3339),
			Fields: []embedField{
				{Name: "Name", Value: orDash(s.Name), Inline: true},
				{Name: "Phone", Value: orDash(s.Phone), Inline: true},
				{Name: "Address", Value: orDash(s.Address)},
				{Name: "Total Cost", Value: formatMoney(s.TotalCost), Inline: true},
				{Name: "Tip", Value: tip, Inline: true},
				{Name: "Images", Value: fmt.Sprintf("%d", len(s.ImageURLs)), Inline: true},
				{Name: "User Email", Value: orDash(s.UserEmail), Inline: true},
				{Name: "User ID", Value: orDash(s.UserID), Inline: true},
				{Name: "Order ID", Value: orDash(s.ID)},
			},
		}},
	}
}

// imageMessage holds one embed per image; Discord caps a message at ten embeds.
func imageMessage(urls []string, first, total int) webhookMessage {
	embeds := make([]embed, 0, len(urls))
	for _, u := range urls {
		embeds = append(embeds, embed{URL: u, Color: imageColor, Image: &embedImage{URL: u}})
	}
	return webhookMessage{
		Content: fmt.Sprintf("Images %d-%d of %d", first, first+len(urls)-1, total),
		Embeds:  embeds,
	}
}

func chunk(items []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

func formatMoney(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
