package core

// webhook.go delivers a best-effort HTTP notification whenever a deposit is
// matched, storage being the source of truth regardless of delivery
// outcome. The outbound transport is plain net/http, mirroring
// storage.go's own use of *http.Client for its pin/fetch endpoints; a
// uuid-stamped delivery ID is attached to the log line the way
// cross_chain_bridge.go stamps bridge records, so the log lines of one
// delivery attempt can be correlated. Each notification is attempted once;
// there are no retries.

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// WebhookPayload carries the single piece of information spec.md §4.8
// requires the webhook to relay: the matched transaction's hash, appended
// to the configured URL as a query parameter on an otherwise empty POST.
type WebhookPayload struct {
	TxHash string
}

// WebhookNotifier posts best-effort notifications and never returns an
// error that should interrupt the poller: delivery failures are logged,
// not propagated.
type WebhookNotifier struct {
	client *http.Client
	cells  *DurableCells
	logger *log.Logger
}

// NewWebhookNotifier constructs a notifier using the given HTTP client (a
// nil client falls back to http.DefaultClient) and durable cells for the
// configured URL.
func NewWebhookNotifier(client *http.Client, cells *DurableCells, logger *log.Logger) *WebhookNotifier {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &WebhookNotifier{client: client, cells: cells, logger: logger}
}

// Notify POSTs an empty body to "<webhook_url>?tx_hash=<payload.TxHash>".
// If no URL is configured, Notify is a no-op. Delivery is best-effort: any
// failure is logged and never returned to the caller, so it can never
// interrupt the poller's forward progress (spec.md §4.8).
func (w *WebhookNotifier) Notify(ctx context.Context, payload WebhookPayload) {
	base := w.cells.WebhookURL()
	if base == "" {
		return
	}

	deliveryID := uuid.New().String()
	u, err := url.Parse(base)
	if err != nil {
		w.logger.WithError(err).WithField("delivery", deliveryID).Error("webhook: invalid url")
		return
	}
	q := u.Query()
	q.Set("tx_hash", payload.TxHash)
	u.RawQuery = q.Encode()

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, u.String(), nil)
	if err != nil {
		w.logger.WithError(err).WithField("delivery", deliveryID).Error("webhook: build request failed")
		return
	}

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.WithError(err).WithField("delivery", deliveryID).Warn("webhook: delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.logger.WithField("delivery", deliveryID).WithField("status", resp.StatusCode).
			Warn("webhook: non-2xx response")
		return
	}
	w.logger.WithField("delivery", deliveryID).Debug("webhook: delivered")
}

// NotifyFromTransaction sends the tx_hash-bearing notification for a stored
// transaction, a thin convenience over Notify (the poller calls Notify
// directly).
func (w *WebhookNotifier) NotifyFromTransaction(ctx context.Context, tx StoredTransaction) {
	w.Notify(ctx, WebhookPayload{TxHash: tx.Hash})
}
