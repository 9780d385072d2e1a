package domain

// ============================================================
// Admin auth: POST /v1/admin/token
// ============================================================

// AdminTokenRequest exchanges the operator API key for a short-lived token.
type AdminTokenRequest struct {
	APIKey string `json:"api_key"`
}

// AdminTokenResponse carries the signed admin access token.
type AdminTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Alert is a failure worth telling an operator about.
type Alert struct {
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}
