package push

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"notify-service/internal/credential"
	"notify-service/internal/metrics"
	"notify-service/internal/shared/logging"
	"notify-service/internal/subscription"
)

// State is the lifecycle of one subscription inside one dispatch call.
// PENDING moves to exactly one terminal state and never comes back.
type State string

const (
	StatePending              State = "PENDING"
	StateSentOK               State = "SENT_OK"
	StateSendFailed           State = "SEND_FAILED"
	StateSendFailedReconciled State = "SEND_FAILED_AND_RECONCILED"
)

const (
	// DetailTokenExtractionFailed is the error detail of a subscription
	// whose endpoint yields no device token.
	DetailTokenExtractionFailed = "token_extraction_failed"

	DefaultConcurrency = 8

	endpointDisplayLen = 48
)

// Result is the outcome for one subscription found at batch start.
type Result struct {
	RecipientID        string `json:"recipient_id"`
	DeliveryEndpoint   string `json:"delivery_endpoint"`
	Success            bool   `json:"success"`
	ProviderStatusCode int    `json:"provider_status_code"`
	ErrorDetail        string `json:"error_detail,omitempty"`
	State              State  `json:"state"`
}

// Reconciler removes a subscription the provider reported as dead.
type Reconciler interface {
	Remove(ctx context.Context, recipientID, endpoint string) error
}

type Dispatcher struct {
	sender      Sender
	reconciler  Reconciler
	defaults    Defaults
	concurrency int
}

func NewDispatcher(sender Sender, reconciler Reconciler, defaults Defaults, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Dispatcher{
		sender:      sender,
		reconciler:  reconciler,
		defaults:    defaults,
		concurrency: concurrency,
	}
}

// SendAll sends content to every subscription and returns one result per
// subscription, in input order. Sends run concurrently up to the configured
// limit, are attempted at most once, and a failure of one never stops the
// others.
func (d *Dispatcher) SendAll(ctx context.Context, subs []subscription.Subscription, tok credential.BearerToken, c Content) []Result {
	results := make([]Result, len(subs))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i := range subs {
		g.Go(func() error {
			results[i] = d.sendOne(ctx, subs[i], tok, c)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		metrics.DispatchResults.WithLabelValues(string(r.State)).Inc()
	}
	return results
}

func (d *Dispatcher) sendOne(ctx context.Context, sub subscription.Subscription, tok credential.BearerToken, c Content) Result {
	ctx, span := otel.Tracer("notify-service/push").Start(ctx, "push.send")
	defer span.End()
	span.SetAttributes(attribute.String("recipient_id", sub.RecipientID))

	lg := logging.Component("push").With().
		Str("recipient_id", sub.RecipientID).
		Str("endpoint", logging.Truncate(sub.Endpoint, endpointDisplayLen)).
		Logger()

	res := Result{
		RecipientID:      sub.RecipientID,
		DeliveryEndpoint: logging.Truncate(sub.Endpoint, endpointDisplayLen),
		State:            StatePending,
	}

	deviceToken, ok := ExtractToken(sub.Endpoint)
	if !ok {
		lg.Warn().Msg("token extraction failed")
		res.State = StateSendFailed
		res.ErrorDetail = DetailTokenExtractionFailed
		span.SetStatus(codes.Error, DetailTokenExtractionFailed)
		return res
	}

	resp, err := d.sender.Send(ctx, tok, BuildMessage(deviceToken, c, d.defaults))
	if err != nil {
		lg.Error().Err(err).Msg("provider send failed")
		res.State = StateSendFailed
		res.ErrorDetail = sendErrorDetail(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return res
	}

	res.ProviderStatusCode = resp.StatusCode
	span.SetAttributes(attribute.Int("provider.status_code", resp.StatusCode))

	outcome, detail := Classify(resp.StatusCode, resp.Body)
	switch outcome {
	case OutcomeOK:
		res.Success = true
		res.State = StateSentOK
		return res
	case OutcomeUnregistered:
		res.ErrorDetail = detail
		res.State = StateSendFailed
		if err := d.reconciler.Remove(ctx, sub.RecipientID, sub.Endpoint); err != nil {
			metrics.ReconcileFailures.Inc()
			lg.Error().Err(err).Msg("stale subscription removal failed")
		} else {
			res.State = StateSendFailedReconciled
			lg.Info().Str("detail", detail).Msg("stale subscription removed")
		}
	default:
		res.ErrorDetail = detail
		res.State = StateSendFailed
		lg.Warn().Int("status", resp.StatusCode).Str("detail", detail).Msg("provider rejected message")
	}
	span.SetStatus(codes.Error, detail)
	return res
}

func sendErrorDetail(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "provider_timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return truncateDetail(err.Error())
}
