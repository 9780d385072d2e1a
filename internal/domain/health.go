package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// CheckResult is one line of the Wise configuration self-check.
type CheckResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// ValidationReport is the ordered output of the Wise self-check.
type ValidationReport struct {
	Results []CheckResult `json:"results"`
}

// Healthy reports whether every check passed.
func (r *ValidationReport) Healthy() bool {
	for _, c := range r.Results {
		if !c.OK {
			return false
		}
	}
	return len(r.Results) > 0
}

// Pass records a successful check.
func (r *ValidationReport) Pass(msg string) {
	r.Results = append(r.Results, CheckResult{OK: true, Message: msg})
}

// Fail records a failed check.
func (r *ValidationReport) Fail(msg string) {
	r.Results = append(r.Results, CheckResult{OK: false, Message: msg})
}

// ReconcileMetrics is returned by GET /v1/admin/wise/metrics.
type ReconcileMetrics struct {
	WebhooksAccepted     int64   `json:"webhooksAccepted"`
	WebhooksRejected     int64   `json:"webhooksRejected"`
	TransactionsImported int64   `json:"transactionsImported"`
	StatementFailures    int64   `json:"statementFailures"`
	ChallengesSigned     int64   `json:"challengesSigned"`
	RejectionRate        float64 `json:"rejectionRate"`
	Period               string  `json:"period"`
}

// DiscoveryResult is returned by the account discovery admin route.
type DiscoveryResult struct {
	ProfileID int64         `json:"profileId"`
	Accounts  []BankAccount `json:"accounts"`
	Saved     int           `json:"saved"`
}
