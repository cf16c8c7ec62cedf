package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"notify-service/internal/credential"
	"notify-service/internal/metrics"
	"notify-service/internal/shared/logging"
	"notify-service/internal/subscription"
)

var (
	ErrInvalidRequest = subscription.ErrInvalidRequest
	ErrStore          = subscription.ErrStore
)

// Request is one notification batch.
type Request struct {
	RecipientIDs []string       `json:"recipient_ids"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	Data         map[string]any `json:"data,omitempty"`
}

// Summary is a completed batch.
type Summary struct {
	BatchID      string         `json:"batch_id"`
	Message      string         `json:"message"`
	RecipientIDs []string       `json:"recipient_ids"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	Data         map[string]any `json:"data,omitempty"`
	Results      []Result       `json:"results"`
	Sent         int            `json:"sent"`
	Failed       int            `json:"failed"`
	Reconciled   int            `json:"reconciled"`
	CompletedAt  time.Time      `json:"completed_at"`
}

// SubscriptionSource reads the delivery endpoints of recipients.
type SubscriptionSource interface {
	Get(ctx context.Context, recipientIDs []string) ([]subscription.Subscription, error)
}

// Hook observes completed batches. Hook errors are logged and never change
// the batch result.
type Hook func(ctx context.Context, s *Summary) error

type Service interface {
	Notify(ctx context.Context, req Request) (*Summary, error)
}

// DefaultHookTimeout bounds each hook so a slow broker or store cannot hold
// the batch response.
const DefaultHookTimeout = 3 * time.Second

type service struct {
	subs        SubscriptionSource
	minter      credential.Minter
	dispatcher  *Dispatcher
	hooks       map[string]Hook
	hookOrder   []string
	hookTimeout time.Duration
}

type Option func(*service)

// WithHook registers a named observer of completed batches.
func WithHook(name string, h Hook) Option {
	return func(s *service) {
		if _, ok := s.hooks[name]; !ok {
			s.hookOrder = append(s.hookOrder, name)
		}
		s.hooks[name] = h
	}
}

// WithHookTimeout overrides DefaultHookTimeout.
func WithHookTimeout(d time.Duration) Option {
	return func(s *service) { s.hookTimeout = d }
}

func NewService(subs SubscriptionSource, minter credential.Minter, d *Dispatcher, opts ...Option) Service {
	s := &service{
		subs:        subs,
		minter:      minter,
		dispatcher:  d,
		hooks:       map[string]Hook{},
		hookTimeout: DefaultHookTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Notify runs the whole pipeline: read subscriptions, mint one bearer token
// for the batch, fan out the sends and collect the results. An empty
// recipient set is rejected; a store or credential failure aborts before any
// send. Per-subscription failures only show up in the results.
func (s *service) Notify(ctx context.Context, req Request) (*Summary, error) {
	start := time.Now()
	ctx, span := otel.Tracer("notify-service/push").Start(ctx, "push.notify")
	defer span.End()

	ids := subscription.NormalizeRecipients(req.RecipientIDs)
	if len(ids) == 0 {
		metrics.Batches.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: recipient_ids is empty", ErrInvalidRequest)
	}
	span.SetAttributes(attribute.Int("recipients", len(ids)))

	lg := logging.Component("push")

	subs, err := s.subs.Get(ctx, ids)
	if err != nil {
		metrics.Batches.WithLabelValues("store_error").Inc()
		if errors.Is(err, ErrInvalidRequest) {
			return nil, err
		}
		if !errors.Is(err, ErrStore) {
			err = fmt.Errorf("%w: %w", ErrStore, err)
		}
		return nil, err
	}

	sum := &Summary{
		BatchID:      uuid.NewString(),
		RecipientIDs: ids,
		Title:        req.Title,
		Body:         req.Body,
		Data:         req.Data,
		Results:      []Result{},
	}

	if len(subs) == 0 {
		sum.Message = "no subscriptions found for recipients"
		sum.CompletedAt = time.Now().UTC()
		metrics.Batches.WithLabelValues("empty").Inc()
		lg.Info().Strs("recipients", ids).Msg(sum.Message)
		return sum, nil
	}

	tok, err := s.minter.Mint(ctx)
	if err != nil {
		metrics.TokenMintFailures.Inc()
		metrics.Batches.WithLabelValues("auth_error").Inc()
		span.RecordError(err)
		return nil, err
	}

	sum.Results = s.dispatcher.SendAll(ctx, subs, tok, Content{Title: req.Title, Body: req.Body, Data: req.Data})
	for _, r := range sum.Results {
		switch {
		case r.Success:
			sum.Sent++
		case r.State == StateSendFailedReconciled:
			sum.Failed++
			sum.Reconciled++
		default:
			sum.Failed++
		}
	}
	sum.Message = fmt.Sprintf("sent %d of %d notifications", sum.Sent, len(sum.Results))
	sum.CompletedAt = time.Now().UTC()

	metrics.Batches.WithLabelValues("completed").Inc()
	metrics.BatchDuration.Observe(time.Since(start).Seconds())
	lg.Info().
		Str("batch_id", sum.BatchID).
		Int("subscriptions", len(subs)).
		Int("sent", sum.Sent).
		Int("failed", sum.Failed).
		Int("reconciled", sum.Reconciled).
		Msg("batch dispatched")

	s.runHooks(ctx, sum)
	return sum, nil
}

// runHooks gives every hook its own deadline, detached from the caller so a
// client hanging up does not drop the inbox entry or the published summary.
func (s *service) runHooks(ctx context.Context, sum *Summary) {
	base := context.WithoutCancel(ctx)
	for _, name := range s.hookOrder {
		hctx, cancel := context.WithTimeout(base, s.hookTimeout)
		err := s.hooks[name](hctx, sum)
		cancel()
		if err != nil {
			lg := logging.Component("push")
			lg.Warn().Err(err).Str("hook", name).Str("batch_id", sum.BatchID).Msg("batch hook failed")
		}
	}
}
