// File: internal/infra/adapters/smm/client.go
package smm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-smm-autoboost/internal/domain/model"
	"telegram-smm-autoboost/internal/domain/ports/adapter"
	derror "telegram-smm-autoboost/internal/error"
	"telegram-smm-autoboost/internal/infra/metrics"
)

var _ adapter.SMMPanel = (*Client)(nil)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20
	userAgent      = "smm-autoboost-bot/1.0"
)

// Client talks to SMM panels using the common "API v2" convention: a
// form-encoded POST to the panel URL with key/action/service/link/quantity.
type Client struct {
	http   *http.Client
	logger *zerolog.Logger
}

// NewClient builds a panel client whose calls are bounded by timeout.
func NewClient(timeout time.Duration, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return NewClientWithHTTP(&http.Client{Timeout: timeout}, logger)
}

// NewClientWithHTTP uses hc as-is. hc must carry its own timeout.
func NewClientWithHTTP(hc *http.Client, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "smm_client").Logger()
	return &Client{http: hc, logger: &l}
}

func (c *Client) CheckBalance(ctx context.Context, cred model.Credential) (model.Balance, error) {
	form := url.Values{}
	form.Set("key", cred.APIKey)
	form.Set("action", string(model.ActionBalance))

	var out struct {
		Balance  json.RawMessage `json:"balance"`
		Currency json.RawMessage `json:"currency"`
		Error    json.RawMessage `json:"error"`
	}
	if err := c.post(ctx, cred.APIURL, model.ActionBalance, form, &out); err != nil {
		return model.Balance{}, err
	}
	raw := flexString(out.Balance)
	if raw == "" {
		return model.Balance{}, &derror.PanelError{Kind: derror.PanelMalformed, Detail: orDefault(flexString(out.Error), "balance missing")}
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return model.Balance{}, &derror.PanelError{Kind: derror.PanelMalformed, Detail: "balance is not a number: " + raw, Err: err}
	}
	return model.Balance{Amount: amount, Currency: flexString(out.Currency)}, nil
}

func (c *Client) PlaceOrder(ctx context.Context, cred model.Credential, link string, quantity int) (model.OrderReceipt, error) {
	form := url.Values{}
	form.Set("key", cred.APIKey)
	form.Set("action", string(model.ActionAdd))
	form.Set("service", cred.ServiceID)
	form.Set("link", link)
	form.Set("quantity", strconv.Itoa(quantity))

	var out struct {
		Order json.RawMessage `json:"order"`
		Price json.RawMessage `json:"price"`
		Error json.RawMessage `json:"error"`
	}
	if err := c.post(ctx, cred.APIURL, model.ActionAdd, form, &out); err != nil {
		return model.OrderReceipt{}, err
	}
	orderID := flexString(out.Order)
	if orderID == "" || orderID == "0" {
		return model.OrderReceipt{}, &derror.PanelError{Kind: derror.PanelMissingOrderID, Detail: flexString(out.Error)}
	}
	receipt := model.OrderReceipt{OrderID: orderID}
	if p := flexString(out.Price); p != "" {
		if d, err := decimal.NewFromString(p); err == nil {
			receipt.Price = &d
		}
	}
	return receipt, nil
}

// post sends the form and decodes a 200 JSON body into out.
func (c *Client) post(ctx context.Context, endpoint string, action model.OrderAction, form url.Values, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if pe, ok := derror.AsPanelError(err); ok {
			outcome = string(pe.Kind)
		}
		metrics.ObservePanelRequest(string(action), outcome, time.Since(start))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &derror.PanelError{Kind: derror.PanelTransport, Detail: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return &derror.PanelError{Kind: derror.PanelTimeout, Detail: err.Error(), Err: err}
		}
		return &derror.PanelError{Kind: derror.PanelTransport, Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return &derror.PanelError{Kind: derror.PanelTimeout, Detail: err.Error(), Err: err}
		}
		return &derror.PanelError{Kind: derror.PanelTransport, Detail: err.Error(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Debug().Int("status", resp.StatusCode).Str("action", string(action)).Msg("panel returned non-200")
		return &derror.PanelError{Kind: derror.PanelHTTPStatus, StatusCode: resp.StatusCode, Detail: snippet(body)}
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), out); err != nil {
		return &derror.PanelError{Kind: derror.PanelMalformed, Detail: snippet(body), Err: err}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// flexString reads a JSON string or number (panels use both) as a string.
func flexString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return fmt.Sprintf("%s...", s[:limit])
	}
	return s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
