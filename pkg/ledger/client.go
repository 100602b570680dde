// Package ledger provides a client for the remote ledger API used to list
// recent transactions and apply annotation mutations.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Transaction is a ledger transaction with its amount converted to minor
// units. Notes of "" mean the transaction has never been annotated.
type Transaction struct {
	ID         int64
	OccurredAt time.Time
	Payee      string
	Amount     int64
	Notes      string
	CategoryID int64
}

// Status values accepted by the ledger for transactions and split lines.
const (
	StatusCleared   = "cleared"
	StatusUncleared = "uncleared"
)

// SplitLine is one line of a split mutation. Amounts are minor units; the
// category id is inherited from the parent transaction by the caller.
type SplitLine struct {
	Amount     int64
	Notes      string
	CategoryID int64
	Status     string
}

// Client provides access to the ledger API.
type Client struct {
	apiURL     string
	token      string
	httpClient *http.Client
}

// NewClient creates a new ledger API client with a bearer credential.
func NewClient(apiURL, token string) *Client {
	return &Client{
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// wire shapes

type wireTransaction struct {
	ID         int64   `json:"id"`
	Date       string  `json:"date"`
	Payee      string  `json:"payee"`
	Amount     string  `json:"amount"`
	Notes      *string `json:"notes"`
	CategoryID int64   `json:"category_id"`
}

type listResponse struct {
	Transactions []wireTransaction `json:"transactions"`
}

// ListTransactions fetches transactions between start and end (inclusive)
// with the given status, optionally restricted to pending ones.
func (c *Client) ListTransactions(ctx context.Context, start, end time.Time, status string, pending bool) ([]Transaction, error) {
	params := url.Values{}
	params.Set("start_date", start.Format("2006-01-02"))
	params.Set("end_date", end.Format("2006-01-02"))
	params.Set("status", status)
	params.Set("pending", fmt.Sprintf("%t", pending))

	var result listResponse
	if err := c.do(ctx, http.MethodGet, "/v1/transactions?"+params.Encode(), nil, &result); err != nil {
		return nil, err
	}

	txns := make([]Transaction, 0, len(result.Transactions))
	for _, wt := range result.Transactions {
		// A transaction whose amount cannot be represented in minor units
		// can never satisfy a match predicate; dropping it keeps the rest of
		// the window usable instead of failing the whole fetch.
		amount, err := ParseAmount(wt.Amount)
		if err != nil {
			slog.Warn("skipping transaction with unrepresentable amount",
				"transaction_id", wt.ID, "amount", wt.Amount, "error", err)
			continue
		}

		occurredAt, err := time.Parse("2006-01-02", wt.Date)
		if err != nil {
			slog.Warn("skipping transaction with invalid date",
				"transaction_id", wt.ID, "date", wt.Date, "error", err)
			continue
		}

		notes := ""
		if wt.Notes != nil {
			notes = *wt.Notes
		}

		txns = append(txns, Transaction{
			ID:         wt.ID,
			OccurredAt: occurredAt,
			Payee:      wt.Payee,
			Amount:     amount,
			Notes:      notes,
			CategoryID: wt.CategoryID,
		})
	}

	return txns, nil
}

// UpdateTransaction sets the note and status on a single transaction.
func (c *Client) UpdateTransaction(ctx context.Context, id int64, notes, status string) error {
	body := map[string]interface{}{
		"transaction": map[string]interface{}{
			"id":     id,
			"notes":  notes,
			"status": status,
		},
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/v1/transactions/%d", id), body, nil)
}

// SplitTransaction replaces a transaction with the given split lines in one
// call. Line amounts are converted to the ledger's decimal representation.
func (c *Client) SplitTransaction(ctx context.Context, id int64, lines []SplitLine) error {
	type wireSplit struct {
		Amount     string `json:"amount"`
		Notes      string `json:"notes"`
		CategoryID int64  `json:"category_id"`
		Status     string `json:"status"`
	}

	split := make([]wireSplit, len(lines))
	for i, line := range lines {
		split[i] = wireSplit{
			Amount:     FormatAmount(line.Amount),
			Notes:      line.Notes,
			CategoryID: line.CategoryID,
			Status:     line.Status,
		}
	}

	body := map[string]interface{}{"split": split}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/v1/transactions/%d", id), body, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+endpoint, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ledger API error: %s", resp.Status)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
