package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/slipway-sh/slipway/pkg/events"
	"github.com/slipway-sh/slipway/pkg/log"
)

const (
	// DefaultCooldown suppresses repeat alerts for the same key.
	DefaultCooldown = 5 * time.Minute

	// requestTimeout bounds a single webhook delivery.
	requestTimeout = 10 * time.Second
)

// Alerter forwards failure and recovery events to a Discord-compatible
// webhook. Delivery is best-effort: failures are logged and dropped.
type Alerter struct {
	webhookURL string
	cooldown   time.Duration
	client     *http.Client
	broker     *events.Broker

	mu       sync.Mutex
	lastSent map[string]time.Time

	sub    events.Subscriber
	stopCh chan struct{}
}

// NewAlerter creates an alerter bound to the broker. An empty webhookURL
// disables delivery entirely.
func NewAlerter(broker *events.Broker, webhookURL string, cooldown time.Duration) *Alerter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Alerter{
		webhookURL: webhookURL,
		cooldown:   cooldown,
		client:     &http.Client{Timeout: requestTimeout},
		broker:     broker,
		lastSent:   make(map[string]time.Time),
		stopCh:     make(chan struct{}),
	}
}

// WithClient overrides the HTTP client used for webhook delivery
func (a *Alerter) WithClient(client *http.Client) *Alerter {
	a.client = client
	return a
}

// Start subscribes to the broker and begins forwarding events.
func (a *Alerter) Start() {
	if a.webhookURL == "" {
		log.WithComponent("alert").Info().Msg("Webhook alerting disabled (no URL configured)")
		return
	}
	a.sub = a.broker.Subscribe()
	go a.run()
	log.WithComponent("alert").Info().
		Dur("cooldown", a.cooldown).
		Msg("Webhook alerter started")
}

// Stop detaches from the broker and terminates the forwarding loop.
func (a *Alerter) Stop() {
	if a.sub != nil {
		a.broker.Unsubscribe(a.sub)
	}
	close(a.stopCh)
	log.WithComponent("alert").Info().Msg("Webhook alerter stopped")
}

func (a *Alerter) run() {
	for {
		select {
		case <-a.stopCh:
			return
		case event, ok := <-a.sub:
			if !ok {
				return
			}
			a.handle(event)
		}
	}
}

func (a *Alerter) handle(event *events.Event) {
	if !alertable(event.Type) {
		return
	}

	key := string(event.Type) + "/" + event.WorkspaceID
	if !a.shouldSend(key, time.Now()) {
		log.WithComponent("alert").Debug().
			Str("key", key).
			Msg("Alert suppressed by cooldown")
		return
	}

	a.send(event)
}

// shouldSend records the attempt and reports whether the key is outside
// its cooldown window.
func (a *Alerter) shouldSend(key string, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if last, ok := a.lastSent[key]; ok && now.Sub(last) < a.cooldown {
		return false
	}
	a.lastSent[key] = now
	return true
}

func (a *Alerter) send(event *events.Event) {
	payload := webhookPayload{Content: buildContent(event)}
	body, err := json.Marshal(payload)
	if err != nil {
		log.WithComponent("alert").Error().Err(err).Msg("Failed to encode webhook payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(body))
	if err != nil {
		log.WithComponent("alert").Error().Err(err).Msg("Failed to build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		log.WithComponent("alert").Warn().
			Err(err).
			Str("event_type", string(event.Type)).
			Msg("Webhook delivery failed")
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		log.WithComponent("alert").Warn().
			Int("status", resp.StatusCode).
			Str("event_type", string(event.Type)).
			Msg("Webhook endpoint rejected alert")
		return
	}

	log.WithComponent("alert").Debug().
		Str("event_type", string(event.Type)).
		Str("workspace_id", event.WorkspaceID).
		Msg("Alert delivered")
}

// webhookPayload is the Discord-compatible request body.
type webhookPayload struct {
	Content string `json:"content"`
}

func buildContent(event *events.Event) string {
	var b strings.Builder
	if event.WorkspaceID != "" {
		fmt.Fprintf(&b, "**%s** workspace `%s`: %s", event.Type, event.WorkspaceID, event.Message)
	} else {
		fmt.Fprintf(&b, "**%s**: %s", event.Type, event.Message)
	}
	if len(event.Metadata) > 0 {
		keys := make([]string, 0, len(event.Metadata))
		for k := range event.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s: %s", k, event.Metadata[k])
		}
	}
	return b.String()
}

// alertable reports whether the event type warrants operator attention.
func alertable(t events.EventType) bool {
	switch t {
	case events.EventWorkspaceFailed, events.EventPoolSpawnFailed, events.EventRecoveryTriggered:
		return true
	}
	return false
}
