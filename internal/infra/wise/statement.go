package wise

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/wise-recon-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Strong customer authentication headers.
const (
	HeaderApproval       = "X-2FA-Approval"
	HeaderApprovalResult = "X-2FA-Approval-Result"
	HeaderSignature      = "X-Signature"

	approvalRejected = "REJECTED"
	approvalApproved = "APPROVED"
)

// ErrNoChallengeSigner is returned when Wise demands a 2FA signature and no
// private key was configured.
var ErrNoChallengeSigner = errors.New("wise requested 2FA approval but no private key is configured")

// ErrMissingChallenge is returned when Wise rejects a statement request for
// 2FA but sends no challenge to sign.
var ErrMissingChallenge = errors.New("wise rejected 2FA without a challenge")

// FetchStatement retrieves the statement of one balance over q's interval.
// A 403 carrying a REJECTED approval result is answered once with a signed
// challenge; any other outcome than 200 + APPROVED is an error.
func (c *Client) FetchStatement(ctx context.Context, q domain.StatementQuery) (*domain.Statement, error) {
	ctx, span := tracer.Start(ctx, "wise.Client.FetchStatement")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("wise.profile_id", q.ProfileID),
		attribute.Int64("wise.borderless_account_id", q.BorderlessAccountID),
		attribute.String("wise.currency", q.Currency),
	)

	path := fmt.Sprintf("/v3/profiles/%d/borderless-accounts/%d/statement.json", q.ProfileID, q.BorderlessAccountID)
	params := url.Values{}
	params.Set("currency", q.Currency)
	params.Set("intervalStart", q.IntervalStart)
	params.Set("intervalEnd", q.IntervalEnd)

	var statement domain.Statement
	err := c.call(ctx, "FetchStatement", func() error {
		resp, err := c.statementRequest(ctx, path, params, "")
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusForbidden && resp.Header.Get(HeaderApprovalResult) == approvalRejected {
			challenge := resp.Header.Get(HeaderApproval)
			resp.Body.Close()
			if challenge == "" {
				return ErrMissingChallenge
			}

			span.AddEvent("2fa challenge")
			resp, err = c.statementRequest(ctx, path, params, challenge)
			if err != nil {
				return err
			}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return statusError(resp)
		}
		if result := resp.Header.Get(HeaderApprovalResult); result != approvalApproved {
			return fmt.Errorf("statement not approved: %s=%q", HeaderApprovalResult, result)
		}
		return json.NewDecoder(resp.Body).Decode(&statement)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("wise.statement_entries", len(statement.Transactions)))
	return &statement, nil
}

// statementRequest sends one statement GET. A non-empty challenge is signed
// and echoed back with its signature.
func (c *Client) statementRequest(ctx context.Context, path string, params url.Values, challenge string) (*http.Response, error) {
	req, err := c.newRequest(ctx, path, params)
	if err != nil {
		return nil, err
	}

	if challenge != "" {
		if c.signer == nil {
			return nil, ErrNoChallengeSigner
		}
		signature, err := c.signer.SignChallenge(challenge)
		if err != nil {
			return nil, fmt.Errorf("sign 2fa challenge: %w", err)
		}
		req.Header.Set(HeaderSignature, signature)
		req.Header.Set(HeaderApproval, challenge)

		c.metrics.IncrChallengeSigned()
		c.logger.Info("answering wise 2fa challenge", zap.String("path", path))
	}

	return c.httpClient.Do(req)
}
