package rpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
)

const (
	ChargesPath    = "/charges"
	TransfersPath  = "/transfers"
	IdempotencyKey = "Idempotency-Key"
)

// Maximum size of a response body accepted from the ledger
const MaxResponseSize = 1 << 20

var ErrMissingTransactionId = errors.New("transfer answer carries no transaction id")

type (
	Charge struct {
		Name      string `json:"name"`
		Amount    uint64 `json:"amount"`
		Status    string `json:"status"`
		AppliesTo string `json:"appliesTo,omitempty"`
	}
	ChargesResponse struct {
		Charges []Charge `json:"charges"`
	}
	TransferRequest struct {
		ReceiverOrSenderEmail string `json:"receiverOrSenderEmail"`
		Amount                uint64 `json:"amount"`
		Pin                   string `json:"pin"`
		TransactionFee        uint64 `json:"transactionFee"`
	}
	TransferResponse struct {
		TransactionId string `json:"transactionId,omitempty"`
		Message       string `json:"message"`
	}
	ErrorResponse struct {
		Error string `json:"error"`
	}
)

// Error is a non successful answer of the ledger
type Error struct {
	// HTTP status code
	Status int
	// Machine readable code. Empty when the body carried none
	Code string
}

func (e *Error) Error() (s string) {
	if e.Code == "" {
		return fmt.Sprintf("ledger answered with status %d", e.Status)
	}
	return e.Code
}

type Client struct {
	config Config
}

func New(config Config) (c *Client) {
	if config.Client == nil {
		config.Client = http.DefaultClient
	}
	config.Url = strings.TrimRight(config.Url, "/")
	return &Client{config: config}
}

func (c *Client) do(ctx context.Context, method, path, token string, headers map[string]string, body, out any) (err error) {
	var reader io.Reader
	if body != nil {
		contents, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(contents)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.Url+path, reader)
	if err != nil {
		return fmt.Errorf("failed to prepare request: %w", err)
	}
	for key, value := range c.config.CustomHeaders {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.config.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to do request: %w", err)
	}
	defer res.Body.Close()

	contents, err := io.ReadAll(io.LimitReader(res.Body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var errRes ErrorResponse
	_ = json.Unmarshal(contents, &errRes)
	code := strings.TrimSpace(errRes.Error)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &Error{Status: res.StatusCode, Code: code}
	}
	// Some ledgers report failures with a success status
	if code != "" {
		return &Error{Status: res.StatusCode, Code: code}
	}

	err = json.Unmarshal(contents, out)
	if err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) ListCharges(ctx context.Context, token string) (res *ChargesResponse, err error) {
	res = new(ChargesResponse)
	err = c.do(ctx, http.MethodGet, ChargesPath, token, nil, nil, res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) SubmitTransfer(ctx context.Context, token, idempotencyKey string, req *TransferRequest) (res *TransferResponse, err error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{IdempotencyKey: idempotencyKey}
	}

	res = new(TransferResponse)
	err = c.do(ctx, http.MethodPost, TransfersPath, token, headers, req, res)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.TransactionId) == "" {
		return nil, ErrMissingTransactionId
	}
	return res, nil
}
