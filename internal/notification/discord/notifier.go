package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiodarr/aiodarr/internal/notification"
)

// Discord embed colors
const (
	ColorSuccess = 0x2ECC71 // Green
	ColorDanger  = 0xE74C3C // Red
	ColorInfo    = 0x3498DB // Blue
)

// Discord webhook limits
const (
	maxEmbedsPerMessage = 10
	maxFieldsPerEmbed   = 25
	maxFieldName        = 256
	maxFieldValue       = 1024
	maxTitle            = 256
)

// Settings contains Discord-specific configuration
type Settings struct {
	WebhookURL string `json:"webhookUrl"`
	Username   string `json:"username,omitempty"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
}

// Notifier sends notifications to Discord via webhook. Failures are held
// until Flush and then sent as one summary.
type Notifier struct {
	settings   Settings
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time

	mu       sync.Mutex
	failures []notification.FailureEvent
}

// New creates a new Discord notifier
func New(settings Settings, httpClient *http.Client, logger zerolog.Logger) *Notifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Notifier{
		settings:   settings,
		httpClient: httpClient,
		logger:     logger.With().Str("notifier", "discord").Logger(),
		now:        time.Now,
	}
}

// Test sends a test message and returns any transport error.
func (n *Notifier) Test(ctx context.Context) error {
	return n.send(ctx, n.buildPayload(Embed{
		Title:       "aiodarr Test Notification",
		Description: "This is a test notification from aiodarr.",
		Color:       ColorInfo,
		Timestamp:   n.now().UTC().Format(time.RFC3339),
	}))
}

func (n *Notifier) NotifySuccess(ctx context.Context, event notification.SuccessEvent) {
	embed := n.successEmbed(event)
	if err := n.send(ctx, n.buildPayload(embed)); err != nil {
		n.logger.Warn().Err(err).Str("title", event.Title).Msg("Failed to send success notification")
		return
	}
	n.logger.Info().Str("kind", string(event.Kind)).Str("title", event.Title).Msg("Sent Discord notification")
}

func (n *Notifier) successEmbed(event notification.SuccessEvent) Embed {
	var fields []EmbedField
	if event.Quality != "" {
		fields = append(fields, EmbedField{Name: "Quality", Value: string(event.Quality), Inline: true})
	}
	if event.IMDbID != "" {
		fields = append(fields, EmbedField{
			Name:   "IMDb",
			Value:  fmt.Sprintf("[%s](https://www.imdb.com/title/%s)", event.IMDbID, event.IMDbID),
			Inline: true,
		})
	}
	if event.Attempts > 1 {
		fields = append(fields, EmbedField{Name: "Attempts", Value: fmt.Sprintf("%d", event.Attempts), Inline: true})
	}
	if event.StreamTitle != "" {
		fields = append(fields, EmbedField{Name: "Stream", Value: truncate(event.StreamTitle, maxFieldValue)})
	}

	return Embed{
		Title:       truncate("✓ "+event.Title, maxTitle),
		Description: fmt.Sprintf("Successfully added %s", event.Kind),
		Color:       ColorSuccess,
		Fields:      fields,
		Timestamp:   timestamp(event.OccurredAt, n.now),
	}
}

func (n *Notifier) CollectFailure(event notification.FailureEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, event)
}

// Flush sends the collected failures as a summary and clears them, whether
// or not delivery succeeded.
func (n *Notifier) Flush(ctx context.Context) {
	n.mu.Lock()
	failures := n.failures
	n.failures = nil
	n.mu.Unlock()

	if len(failures) == 0 {
		return
	}

	for _, payload := range n.failurePayloads(failures) {
		if err := n.send(ctx, payload); err != nil {
			n.logger.Warn().Err(err).Int("failures", len(failures)).Msg("Failed to send failure summary")
			return
		}
	}
	n.logger.Info().Int("failures", len(failures)).Msg("Sent Discord failure summary")
}

func (n *Notifier) failurePayloads(failures []notification.FailureEvent) []WebhookPayload {
	var embeds []Embed
	for start := 0; start < len(failures); start += maxFieldsPerEmbed {
		end := min(start+maxFieldsPerEmbed, len(failures))
		fields := make([]EmbedField, 0, end-start)
		for _, f := range failures[start:end] {
			fields = append(fields, failureField(f))
		}
		embeds = append(embeds, Embed{
			Fields:    fields,
			Color:     ColorDanger,
			Timestamp: n.now().UTC().Format(time.RFC3339),
		})
	}

	noun := "items"
	if len(failures) == 1 {
		noun = "item"
	}
	embeds[0].Title = fmt.Sprintf("✗ %d %s failed", len(failures), noun)

	var payloads []WebhookPayload
	for start := 0; start < len(embeds); start += maxEmbedsPerMessage {
		end := min(start+maxEmbedsPerMessage, len(embeds))
		payloads = append(payloads, WebhookPayload{
			Username:  n.getUsername(),
			AvatarURL: n.settings.AvatarURL,
			Embeds:    embeds[start:end],
		})
	}
	return payloads
}

func failureField(f notification.FailureEvent) EmbedField {
	value := f.Reason
	if len(f.Details) > 0 {
		keys := make([]string, 0, len(f.Details))
		for k := range f.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(value)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s: %s", k, f.Details[k])
		}
		value = b.String()
	}
	if value == "" {
		value = "unknown reason"
	}
	return EmbedField{
		Name:  truncate(fmt.Sprintf("[%s] %s", f.Kind, f.Title), maxFieldName),
		Value: truncate(value, maxFieldValue),
	}
}

func (n *Notifier) buildPayload(embed Embed) WebhookPayload {
	return WebhookPayload{
		Username:  n.getUsername(),
		AvatarURL: n.settings.AvatarURL,
		Embeds:    []Embed{embed},
	}
}

func (n *Notifier) getUsername() string {
	if n.settings.Username != "" {
		return n.settings.Username
	}
	return "aiodarr"
}

func (n *Notifier) send(ctx context.Context, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.settings.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord returned status %d", resp.StatusCode)
	}

	return nil
}

// WebhookPayload is the Discord webhook request body
type WebhookPayload struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Content   string  `json:"content,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
}

// Embed is a Discord embed object
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// EmbedField is a field in an embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the footer section of an embed
type EmbedFooter struct {
	Text    string `json:"text,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

func timestamp(t time.Time, now func() time.Time) string {
	if t.IsZero() {
		t = now()
	}
	return t.UTC().Format(time.RFC3339)
}

// truncate shortens s to at most maxLen runes, which is how Discord counts
// embed limits.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
