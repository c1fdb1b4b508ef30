package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"affiliate-ledger/internal/core/domain"
	"affiliate-ledger/internal/core/ports"
	"affiliate-ledger/pkg/metrics"

	"github.com/rs/zerolog"
)

const webhookDeliveryTimeout = 10 * time.Second

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// webhookPayload is the JSON structure posted to merchant endpoints.
type webhookPayload struct {
	Event      string         `json:"event"`
	MerchantID string         `json:"merchant_id"`
	Data       map[string]any `json:"data"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ChannelWebhookNotifier implements ports.WebhookNotifier with a buffered
// queue drained by a single dispatcher goroutine. Publish never blocks: a
// full queue drops the event. Delivery is at most once per endpoint, a
// failure is logged and counted but never retried.
type ChannelWebhookNotifier struct {
	endpointRepo ports.WebhookEndpointRepository
	encSvc       ports.EncryptionService
	sigSvc       ports.SignatureService
	httpClient   HTTPClient
	queue        chan domain.WalletEvent
	done         chan struct{}
	closeOnce    sync.Once
	metrics      *metrics.LedgerMetrics
	log          zerolog.Logger
}

// NewChannelWebhookNotifier creates the notifier and starts its dispatcher.
func NewChannelWebhookNotifier(
	endpointRepo ports.WebhookEndpointRepository,
	encSvc ports.EncryptionService,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	queueSize int,
	m *metrics.LedgerMetrics,
	log zerolog.Logger,
) *ChannelWebhookNotifier {
	if queueSize <= 0 {
		queueSize = 256
	}
	n := &ChannelWebhookNotifier{
		endpointRepo: endpointRepo,
		encSvc:       encSvc,
		sigSvc:       sigSvc,
		httpClient:   httpClient,
		queue:        make(chan domain.WalletEvent, queueSize),
		done:         make(chan struct{}),
		metrics:      m,
		log:          log,
	}
	go n.dispatch()
	return n
}

// Publish enqueues an event for delivery. Never blocks; the event is dropped
// when the queue is full or the notifier is closed.
func (n *ChannelWebhookNotifier) Publish(event domain.WalletEvent) {
	defer func() {
		// Send on closed queue after Close; losing the event is acceptable.
		if r := recover(); r != nil {
			n.metrics.IncWebhook("dropped")
		}
	}()
	select {
	case n.queue <- event:
		n.metrics.SetQueueDepth(len(n.queue))
	default:
		n.metrics.IncWebhook("dropped")
		n.log.Warn().
			Str("event", event.Name).
			Str("merchant_id", event.MerchantID.String()).
			Msg("webhook queue full, event dropped")
	}
}

// Close stops accepting events and waits until the queue is drained.
func (n *ChannelWebhookNotifier) Close() {
	n.closeOnce.Do(func() {
		close(n.queue)
		<-n.done
	})
}

func (n *ChannelWebhookNotifier) dispatch() {
	defer close(n.done)
	for event := range n.queue {
		n.metrics.SetQueueDepth(len(n.queue))
		n.deliver(event)
	}
}

func (n *ChannelWebhookNotifier) deliver(event domain.WalletEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), webhookDeliveryTimeout)
	defer cancel()

	endpoints, err := n.endpointRepo.ListActiveByMerchant(ctx, event.MerchantID)
	if err != nil {
		n.metrics.IncWebhook("failure")
		n.log.Error().Err(err).Str("merchant_id", event.MerchantID.String()).Msg("webhook: failed to list endpoints")
		return
	}
	if len(endpoints) == 0 {
		return
	}

	body, err := json.Marshal(webhookPayload{
		Event:      event.Name,
		MerchantID: event.MerchantID.String(),
		Data:       event.Payload,
		OccurredAt: event.OccurredAt,
	})
	if err != nil {
		n.metrics.IncWebhook("failure")
		n.log.Error().Err(err).Str("event", event.Name).Msg("webhook: failed to marshal payload")
		return
	}

	for _, endpoint := range endpoints {
		n.send(ctx, endpoint, event.Name, body)
	}
}

// send performs the single delivery attempt for one endpoint.
func (n *ChannelWebhookNotifier) send(ctx context.Context, endpoint domain.WebhookEndpoint, eventName string, body []byte) {
	secret, err := n.encSvc.Decrypt(endpoint.SecretEnc)
	if err != nil {
		n.metrics.IncWebhook("failure")
		n.log.Error().Err(err).Str("endpoint_id", endpoint.ID.String()).Msg("webhook: failed to decrypt endpoint secret")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		n.metrics.IncWebhook("failure")
		n.log.Error().Err(err).Str("url", endpoint.URL).Msg("webhook: failed to create request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", n.sigSvc.Sign(secret, string(body)))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.metrics.IncWebhook("failure")
		n.log.Warn().Err(err).Str("url", endpoint.URL).Str("event", eventName).Msg("webhook: delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		n.metrics.IncWebhook("success")
		n.log.Info().
			Str("url", endpoint.URL).
			Str("event", eventName).
			Int("status", resp.StatusCode).
			Msg("webhook: delivered")
		return
	}

	n.metrics.IncWebhook("failure")
	n.log.Warn().
		Str("url", endpoint.URL).
		Str("event", eventName).
		Int("status", resp.StatusCode).
		Msg("webhook: non-2xx response")
}
