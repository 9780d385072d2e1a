package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/wise-recon-go/internal/domain"
	"github.com/boddenberg/wise-recon-go/internal/port"

	"go.uber.org/zap"
)

// apiTokenLength is the length of a Wise personal API token (a UUID).
const apiTokenLength = 36

// Validator checks that the Wise integration is configured and reachable.
type Validator struct {
	environment string
	token       string
	wise        port.WiseAPI
	discovery   *Discovery
	logger      *zap.Logger
}

// NewValidator creates a new Validator.
func NewValidator(environment, token string, wise port.WiseAPI, discovery *Discovery, logger *zap.Logger) *Validator {
	return &Validator{
		environment: environment,
		token:       token,
		wise:        wise,
		discovery:   discovery,
		logger:      logger,
	}
}

// Validate runs the checks in order and stops at the first failure.
func (v *Validator) Validate(ctx context.Context) *domain.ValidationReport {
	ctx, span := tracer.Start(ctx, "Validator.Validate")
	defer span.End()

	report := &domain.ValidationReport{Results: []domain.CheckResult{}}

	switch v.environment {
	case domain.EnvSandbox:
		report.Pass("Sandbox environment being used")
	case domain.EnvLive:
		report.Pass("Live environment being used")
	default:
		report.Fail("No environment configured")
		return report
	}

	if len(v.token) != apiTokenLength {
		report.Fail("Access token not set")
		return report
	}
	report.Pass("Access token set")

	if _, err := v.wise.Me(ctx); err != nil {
		report.Fail(fmt.Sprintf("Unable to connect to Wise: %v", err))
		return report
	}
	report.Pass("Connection to Wise API succeeded")

	profileID, err := v.discovery.RefreshBusinessProfile(ctx)
	if err != nil {
		v.logger.Warn("business profile check failed", zap.Error(err))
		report.Fail("Wise business profile does not exist")
		return report
	}
	report.Pass("Wise business profile exists")

	subs, err := v.wise.ListSubscriptions(ctx, profileID)
	if err != nil {
		v.logger.Warn("subscription check failed", zap.Error(err))
	}
	if err != nil || len(subs) == 0 {
		report.Fail("Webhook event subscriptions are not present")
		return report
	}
	report.Pass("Webhook event subscriptions are present")

	return report
}
