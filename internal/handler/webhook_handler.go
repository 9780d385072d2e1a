package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/boddenberg/wise-recon-go/internal/domain"
	"github.com/boddenberg/wise-recon-go/internal/service"

	"go.uber.org/zap"
)

// maxWebhookBody bounds the request body read from Wise.
const maxWebhookBody = 1 << 20

// ============================================================
// Wise webhook: POST /wise-webhook
// ============================================================

func wiseWebhookHandler(receiver *service.Receiver, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			err = &domain.ErrMalformedWebhook{Reason: "unreadable body", Err: err}
		} else {
			err = receiver.Handle(r.Context(), body, r.Header)
		}

		status := webhookStatus(err)
		if err != nil {
			if status >= http.StatusInternalServerError {
				logger.Error("wise webhook failed", zap.Int("status", status), zap.Error(err))
			} else {
				logger.Warn("wise webhook rejected", zap.Int("status", status), zap.Error(err))
			}
			writeError(w, status, http.StatusText(status))
			return
		}
		w.WriteHeader(status)
	}
}

// webhookStatus classifies a Receiver result into the HTTP status Wise sees.
// Unsupported schemas and unknown event types are server errors: they mean
// the subscription and this deployment disagree, which needs an operator.
func webhookStatus(err error) int {
	if err == nil {
		return http.StatusNoContent
	}

	var malformed *domain.ErrMalformedWebhook
	var signature *domain.ErrInvalidSignature
	var validation *domain.ErrValidation
	var schema *domain.ErrUnsupportedSchema
	var unhandled *domain.ErrUnhandledEvent

	switch {
	case errors.As(err, &malformed), errors.As(err, &signature), errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &schema), errors.As(err, &unhandled):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
