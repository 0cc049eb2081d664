package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidrenteria/boltbridge-backend/pkg/config"
	pkgerrors "github.com/davidrenteria/boltbridge-backend/pkg/errors"
	"github.com/davidrenteria/boltbridge-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	apiKeyHeader = "X-API-Key"
	nonceHeader  = "X-Nonce"
	hmacHeader   = "X-Bolt-Hmac-Sha256"

	retryBackoffBase = 500 * time.Millisecond
)

var (
	errAPIKeyRequired = errors.New("bolt api key is required")
	errInvalidBoltEnv = fmt.Errorf("bolt environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired = errors.New("bolt logger is required")
	errEmptyReference = errors.New("transaction reference is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://api-sandbox.bolt.com",
	productionEnv: "https://api.bolt.com",
}

// Client exposes the processor API with centralized auth, logging,
// idempotency keys, and error mapping. Any `errors` or `error_code` field in
// a response body is a failure regardless of HTTP status.
type Client struct {
	httpClient    *http.Client
	apiKey        string
	signingSecret string
	environment   string
	baseURL       string
	maxRetries    int
	logger        *logger.Logger
}

// NewClient initializes the processor wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.BoltConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		apiKey:        apiKey,
		signingSecret: strings.TrimSpace(cfg.SigningSecret),
		environment:   env,
		baseURL:       baseURLs[env],
		maxRetries:    maxRetries,
		logger:        logg,
	}

	logg.Info(ctx, "bolt client initialized")
	return c, nil
}

func normalizeEnv(env string) (string, error) {
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	}
	return "", errInvalidBoltEnv
}

// Environment reports the normalized processor environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret, empty when unset.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// NewIdempotencyKey returns a unique key for state-creating operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "bb"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// FetchTransaction loads the transaction record by reference. Reads are
// idempotent, so transport failures are retried a bounded number of times
// with backoff.
func (c *Client) FetchTransaction(ctx context.Context, reference string) (*Transaction, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, errEmptyReference, "fetch transaction")
	}
	c.log(ctx, "request", "fetch_transaction", map[string]any{"reference": reference})

	var tx Transaction
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "fetch transaction canceled")
			case <-time.After(retryBackoffBase << (attempt - 1)):
			}
		}
		lastErr = c.do(ctx, http.MethodGet, "/v1/merchant/transactions/"+reference, nil, nil, &tx)
		if lastErr == nil {
			c.log(ctx, "response", "fetch_transaction", map[string]any{
				"reference": tx.Reference,
				"status":    tx.Status,
			})
			return &tx, nil
		}
		if !retryable(lastErr) {
			break
		}
	}
	c.log(ctx, "error", "fetch_transaction", map[string]any{"error": lastErr.Error()})
	return nil, lastErr
}

// CreateOrder submits a priced cart and returns the order token for the
// checkout widget.
func (c *Client) CreateOrder(ctx context.Context, payload CartPayload) (*OrderToken, error) {
	c.log(ctx, "request", "create_order", map[string]any{
		"order_reference": payload.OrderReference,
		"total_amount":    payload.TotalAmountCents,
		"items":           len(payload.Items),
	})

	body := struct {
		CartPayload `json:"cart"`
	}{payload}

	var token OrderToken
	if err := c.do(ctx, http.MethodPost, "/v1/merchant/orders", nil, body, &token); err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_order", map[string]any{"order_token": token.Token})
	return &token, nil
}

// Capture settles an authorized transaction. State-creating POSTs carry an
// idempotency key and are never blindly retried.
func (c *Client) Capture(ctx context.Context, reference string, amountCents int64, currency string) (*Transaction, error) {
	req := captureRequest{
		TransactionReference: reference,
		AmountCents:          amountCents,
		CurrencyCode:         currency,
	}
	c.log(ctx, "request", "capture", map[string]any{"reference": reference, "amount": amountCents})

	headers := map[string]string{"Idempotency-Key": c.NewIdempotencyKey("capture")}
	var tx Transaction
	if err := c.do(ctx, http.MethodPost, "/v1/merchant/transactions/capture", headers, req, &tx); err != nil {
		c.log(ctx, "error", "capture", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "capture", map[string]any{"reference": tx.Reference, "status": tx.Status})
	return &tx, nil
}

// Void cancels an authorized transaction before capture.
func (c *Client) Void(ctx context.Context, reference string) (*Transaction, error) {
	req := voidRequest{TransactionReference: reference}
	c.log(ctx, "request", "void", map[string]any{"reference": reference})

	headers := map[string]string{"Idempotency-Key": c.NewIdempotencyKey("void")}
	var tx Transaction
	if err := c.do(ctx, http.MethodPost, "/v1/merchant/transactions/void", headers, req, &tx); err != nil {
		c.log(ctx, "error", "void", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "void", map[string]any{"reference": tx.Reference, "status": tx.Status})
	return &tx, nil
}

// Refund credits a captured transaction.
func (c *Client) Refund(ctx context.Context, reference string, amountCents int64, currency string) (*Transaction, error) {
	req := refundRequest{
		TransactionReference: reference,
		AmountCents:          amountCents,
		CurrencyCode:         currency,
	}
	c.log(ctx, "request", "refund", map[string]any{"reference": reference, "amount": amountCents})

	headers := map[string]string{"Idempotency-Key": c.NewIdempotencyKey("refund")}
	var tx Transaction
	if err := c.do(ctx, http.MethodPost, "/v1/merchant/transactions/credit", headers, req, &tx); err != nil {
		c.log(ctx, "error", "refund", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "refund", map[string]any{"reference": tx.Reference, "status": tx.Status})
	return &tx, nil
}

// SignMerchantUserID asks the processor to sign a merchant-side user id so
// the checkout widget can assert account linkage.
func (c *Client) SignMerchantUserID(ctx context.Context, merchantUserID string) (*SignResponse, error) {
	req := signRequest{MerchantUserID: merchantUserID}
	c.log(ctx, "request", "sign", map[string]any{"merchant_user_id": merchantUserID})

	var signed SignResponse
	if err := c.do(ctx, http.MethodPost, "/v1/merchant/sign", nil, req, &signed); err != nil {
		c.log(ctx, "error", "sign", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "sign", map[string]any{"merchant_user_id": signed.MerchantUserID})
	return &signed, nil
}

// VerifySignature asks the processor to validate a webhook HMAC remotely.
// Used when no signing secret is configured locally (key rotation).
func (c *Client) VerifySignature(ctx context.Context, payload []byte, suppliedHmac string) (bool, error) {
	url := c.baseURL + "/v1/merchant/verify_signature"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build verify request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, c.apiKey)
	httpReq.Header.Set(hmacHeader, suppliedHmac)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify signature call")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read verify response")
	}
	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	if bodyErr := sniffBodyError(body); bodyErr != nil {
		return false, nil
	}
	return true, nil
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request body")
		}
		reqBody = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, c.apiKey)
	httpReq.Header.Set(nonceHeader, uuid.NewString())
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("bolt %s %s", method, path))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read response body")
	}

	if bodyErr := sniffBodyError(body); bodyErr != nil {
		return pkgerrors.Wrap(domainCodeForStatus(resp.StatusCode), bodyErr, fmt.Sprintf("bolt %s failed", path))
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return pkgerrors.New(domainCodeForStatus(resp.StatusCode), fmt.Sprintf("bolt %s returned status %d", path, resp.StatusCode))
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response body")
		}
	}
	return nil
}

// sniffBodyError treats any errors/error_code field in a JSON body as a
// failure, mirroring the processor's documented contract.
func sniffBodyError(body []byte) error {
	if len(body) == 0 {
		return nil
	}
	var probe struct {
		Errors    json.RawMessage `json:"errors"`
		ErrorCode json.RawMessage `json:"error_code"`
		Error     json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil
	}
	if nonEmpty(probe.Errors) || nonEmpty(probe.ErrorCode) || nonEmpty(probe.Error) {
		return fmt.Errorf("processor error body: %s", truncate(string(body), 512))
	}
	return nil
}

func nonEmpty(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null" && trimmed != "[]" && trimmed != "{}" && trimmed != `""`
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func retryable(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return true
	}
	return pkgerrors.MetadataFor(typed.Code()).Retryable
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeUnauthorized
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeValidation
	}
	if status >= http.StatusInternalServerError {
		return pkgerrors.CodeDependency
	}
	return pkgerrors.CodeDependency
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("bolt %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("bolt %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "key", "email", "phone", "card"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
