package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/boddenberg/wise-recon-go/internal/domain"
	"github.com/boddenberg/wise-recon-go/internal/infra/observability"
	"github.com/boddenberg/wise-recon-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service")

// SignatureHeader carries the base64 RSA signature of the webhook body.
const SignatureHeader = "X-Signature"

// EventHandler processes one verified webhook event.
type EventHandler interface {
	HandleEvent(ctx context.Context, event domain.WebhookEnvelope) error
}

// Receiver authenticates Wise webhooks and dispatches them by event type.
// The dispatch table is fixed at construction.
type Receiver struct {
	verifier    port.SignatureVerifier
	handlers    map[domain.EventType]EventHandler
	metrics     *observability.Metrics
	logger      *zap.Logger
	logRejected bool
}

// ReceiverOption configures a Receiver.
type ReceiverOption func(*Receiver)

// WithRejectedPayloadLogging re-logs the raw body next to every rejection.
func WithRejectedPayloadLogging(enabled bool) ReceiverOption {
	return func(r *Receiver) { r.logRejected = enabled }
}

// NewReceiver creates a Receiver. handlers is copied.
func NewReceiver(
	verifier port.SignatureVerifier,
	handlers map[domain.EventType]EventHandler,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts ...ReceiverOption,
) *Receiver {
	table := make(map[domain.EventType]EventHandler, len(handlers))
	for k, v := range handlers {
		table[k] = v
	}

	r := &Receiver{
		verifier: verifier,
		handlers: table,
		metrics:  metrics,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle authenticates and processes one webhook delivery.
// A nil error means the delivery was accepted; rejections are typed domain errors.
func (r *Receiver) Handle(ctx context.Context, body []byte, header http.Header) (err error) {
	ctx, span := tracer.Start(ctx, "Receiver.Handle")
	defer span.End()

	// Wise does not redeliver, so the log is the only copy of what was sent.
	r.logger.Info("received wise webhook",
		zap.ByteString("body", body),
		observability.HeaderFields(header),
	)

	eventLabel := "unknown"
	defer func() {
		outcome := observability.OutcomeAccepted
		if err != nil {
			outcome = observability.OutcomeRejected
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if r.logRejected {
				r.logger.Info("rejected wise webhook payload", zap.ByteString("body", body), zap.Error(err))
			}
		}
		r.metrics.IncrWebhook(eventLabel, outcome)
	}()

	event, err := r.authenticate(body, header)
	if err != nil {
		return err
	}

	span.SetAttributes(
		attribute.String("wise.event_type", string(event.EventType)),
		attribute.String("wise.schema_version", event.SchemaVersion),
	)

	if event.SchemaVersion != domain.SupportedSchemaVersion {
		r.logger.Warn("unsupported wise schema version", zap.String("schema_version", event.SchemaVersion))
		return &domain.ErrUnsupportedSchema{Version: event.SchemaVersion}
	}

	handler, ok := r.handlers[event.EventType]
	if !ok {
		r.logger.Warn("unhandled wise webhook event type", zap.String("event_type", string(event.EventType)))
		eventLabel = "unhandled"
		return &domain.ErrUnhandledEvent{EventType: event.EventType}
	}
	eventLabel = string(event.EventType)

	return r.dispatch(ctx, handler, event)
}

// authenticate checks the signature header, body shape and signature, in that order.
func (r *Receiver) authenticate(body []byte, header http.Header) (domain.WebhookEnvelope, error) {
	var event domain.WebhookEnvelope

	encoded, present := header[http.CanonicalHeaderKey(SignatureHeader)]
	if !present || len(encoded) == 0 {
		r.logger.Warn("unable to parse wise webhook request", zap.String("reason", "missing signature"))
		return event, &domain.ErrMalformedWebhook{Reason: "missing " + SignatureHeader + " header"}
	}
	signature, err := base64.StdEncoding.DecodeString(encoded[0])
	if err != nil {
		r.logger.Warn("unable to parse wise webhook request", zap.Error(err))
		return event, &domain.ErrMalformedWebhook{Reason: "signature is not base64", Err: err}
	}

	if !json.Valid(body) {
		r.logger.Warn("unable to parse wise webhook request", zap.String("reason", "body is not JSON"))
		return event, &domain.ErrMalformedWebhook{Reason: "body is not JSON"}
	}
	event, err = decodeEnvelope(body)
	if err != nil {
		r.logger.Warn("unable to parse wise webhook request", zap.Error(err))
		return event, err
	}

	if err := r.verifier.Verify(body, signature); err != nil {
		r.logger.Error("error verifying wise webhook signature", zap.Error(err))
		return event, &domain.ErrInvalidSignature{Err: err}
	}
	return event, nil
}

// dispatch runs handler, turning panics and unexpected errors into
// ErrHandlerFailed. Validation errors pass through untouched.
func (r *Receiver) dispatch(ctx context.Context, handler EventHandler, event domain.WebhookEnvelope) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic during wise webhook",
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			err = &domain.ErrHandlerFailed{EventType: event.EventType, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	if err := handler.HandleEvent(ctx, event); err != nil {
		var verr *domain.ErrValidation
		if errors.As(err, &verr) {
			return err
		}
		r.logger.Error("unhandled exception during wise webhook",
			zap.String("event_type", string(event.EventType)),
			zap.Error(err),
		)
		return &domain.ErrHandlerFailed{EventType: event.EventType, Err: err}
	}
	return nil
}

// decodeEnvelope reads the top-level webhook fields without imposing their
// types. A schema_version or event_type that is not a JSON string is kept as
// its raw text, so it can never match a supported version or a handler.
func decodeEnvelope(body []byte) (domain.WebhookEnvelope, error) {
	var event domain.WebhookEnvelope

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return event, &domain.ErrMalformedWebhook{Reason: "body is not a webhook object", Err: err}
	}
	if fields == nil {
		return event, &domain.ErrMalformedWebhook{Reason: "body is not a webhook object"}
	}

	event.SchemaVersion = rawString(fields["schema_version"])
	event.EventType = domain.EventType(rawString(fields["event_type"]))
	event.SubscriptionID = rawString(fields["subscription_id"])
	event.SentAt = rawString(fields["sent_at"])
	event.Data = fields["data"]
	return event, nil
}

// rawString returns the decoded value of a JSON string, or the raw text of
// anything else. Absent fields yield "".
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}
