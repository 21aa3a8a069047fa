package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.stripe.com/v1"

// stripeGateway talks to the Stripe charges API. Only the three calls the
// engine needs are implemented.
type stripeGateway struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewStripeGateway(secretKey string) PaymentGateway {
	return &stripeGateway{
		secretKey: secretKey,
		baseURL:   defaultBaseURL,
		client:    &http.Client{Timeout: 20 * time.Second},
	}
}

type chargeResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		Message     string `json:"message"`
		DeclineCode string `json:"decline_code"`
	} `json:"error"`
}

func (g *stripeGateway) Authorize(ctx context.Context, req ChargeRequest) (string, error) {
	req.Capture = false
	return g.createCharge(ctx, req)
}

func (g *stripeGateway) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	req.Capture = true
	return g.createCharge(ctx, req)
}

func (g *stripeGateway) Capture(ctx context.Context, chargeID string) error {
	_, err := g.post(ctx, "/charges/"+chargeID+"/capture", url.Values{})
	return err
}

func (g *stripeGateway) createCharge(ctx context.Context, req ChargeRequest) (string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(int64(math.Round(req.Amount*100)), 10))
	form.Set("currency", "usd")
	form.Set("customer", req.BuyerID.String())
	form.Set("capture", strconv.FormatBool(req.Capture))
	for key, value := range req.Metadata {
		form.Set("metadata["+key+"]", value)
	}
	return g.post(ctx, "/charges", form)
}

func (g *stripeGateway) post(ctx context.Context, path string, form url.Values) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build gateway request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.secretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	var body chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode gateway response: %w", err)
	}

	if body.Error != nil {
		if body.Error.Type == "card_error" {
			code := body.Error.DeclineCode
			if code == "" {
				code = body.Error.Code
			}
			return "", &DeclineError{Code: code, Message: body.Error.Message}
		}
		return "", fmt.Errorf("gateway error: %s", body.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return body.ID, nil
}
