package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pratikdungano/vastrahub-backend/pkg/config"
	pkgerrors "github.com/pratikdungano/vastrahub-backend/pkg/errors"
	"github.com/pratikdungano/vastrahub-backend/pkg/logger"
)

var (
	errKeyIDRequired  = errors.New("gateway key id is required")
	errSecretRequired = errors.New("gateway secret is required")
	errLoggerRequired = errors.New("gateway logger is required")
)

// Client wraps the hosted payment gateway's REST API with centralized
// auth, logging, and error mapping. Amounts are always paise.
type Client struct {
	httpClient *http.Client
	keyID      string
	secret     string
	baseURL    string
	logger     *logger.Logger
}

// NewClient validates the credentials and builds the gateway wrapper.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errSecretRequired
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		keyID:      keyID,
		secret:     secret,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logg,
	}

	logg.Info(ctx, "gateway client initialized")
	return c, nil
}

// KeyID returns the public key the storefront embeds in the checkout widget.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// SigningSecret returns the secret used to verify callback signatures.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.secret
}

// NewReceipt returns a unique receipt reference for gateway orders.
func (c *Client) NewReceipt(prefix string) string {
	r := strings.TrimSpace(prefix)
	if r == "" {
		r = "vh"
	}
	return fmt.Sprintf("%s-%s", r, uuid.NewString())
}

// OrderCreateParams describes a gateway order session.
type OrderCreateParams struct {
	AmountPaise int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// GatewayOrder is the session the storefront hands to the payment widget.
type GatewayOrder struct {
	ID          string `json:"id"`
	AmountPaise int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
}

// CreateOrder opens a payment session for the given amount.
func (c *Client) CreateOrder(ctx context.Context, params OrderCreateParams) (*GatewayOrder, error) {
	currency := strings.TrimSpace(params.Currency)
	if currency == "" {
		currency = "INR"
	}
	body := map[string]any{
		"amount":   params.AmountPaise,
		"currency": currency,
		"receipt":  params.Receipt,
	}
	if len(params.Notes) > 0 {
		body["notes"] = params.Notes
	}

	c.log(ctx, "request", "create_order", map[string]any{
		"amount":  params.AmountPaise,
		"receipt": params.Receipt,
	})

	var order GatewayOrder
	if err := c.do(ctx, http.MethodPost, "/orders", body, &order); err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_order", map[string]any{
		"gateway_order_id": order.ID,
		"status":           order.Status,
	})
	return &order, nil
}

// Refund is the gateway's record of a refund against a captured payment.
type Refund struct {
	ID          string `json:"id"`
	PaymentID   string `json:"payment_id"`
	AmountPaise int64  `json:"amount"`
	Status      string `json:"status"`
}

// CreateRefund refunds the given amount against a captured payment.
func (c *Client) CreateRefund(ctx context.Context, paymentID string, amountPaise int64, notes map[string]string) (*Refund, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	body := map[string]any{"amount": amountPaise}
	if len(notes) > 0 {
		body["notes"] = notes
	}

	c.log(ctx, "request", "create_refund", map[string]any{
		"payment_id": paymentID,
		"amount":     amountPaise,
	})

	var refund Refund
	path := fmt.Sprintf("/payments/%s/refund", paymentID)
	if err := c.do(ctx, http.MethodPost, path, body, &refund); err != nil {
		c.log(ctx, "error", "create_refund", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_refund", map[string]any{
		"refund_id": refund.ID,
		"status":    refund.Status,
	})
	return &refund, nil
}

// VerifyPaymentSignature checks the callback signature the widget posts after
// a capture. The gateway signs "<gateway_order_id>|<payment_id>" with the
// shared secret and hex-encodes the digest.
func (c *Client) VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool {
	if gatewayOrderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return verifySignature([]byte(gatewayOrderID+"|"+paymentID), c.secret, signature)
}

// VerifyWebhookSignature checks the signature header on asynchronous
// gateway webhooks against the raw request body.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) bool {
	return verifySignature(payload, c.secret, signature)
}

func verifySignature(payload []byte, secret, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type gatewayAPIError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.SetBasicAuth(c.keyID, c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call payment gateway")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr gatewayAPIError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Description != "" {
			return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("gateway %s: %s", apiErr.Error.Code, apiErr.Error.Description))
		}
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("gateway returned status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
	}
	return nil
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
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("gateway %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("gateway %s", phase))
	}
}
