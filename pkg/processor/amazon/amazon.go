// Package amazon processes Amazon order confirmation emails. The order
// details are pulled out of the plain text body by the LLM extraction
// collaborator; the order total's tax overage is allocated across items to
// build an exact split.
package amazon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/mailfin/ledgermail/pkg/action"
	"github.com/mailfin/ledgermail/pkg/allocate"
	"github.com/mailfin/ledgermail/pkg/extract"
	"github.com/mailfin/ledgermail/pkg/mail"
)

const prompt = `
You are a precise and detail-oriented parser that extracts structured data
from Amazon plain text order confirmation emails.

Do not make up or infer any data. Use the exact words from the email when
setting product names and prices.

Respond with a single JSON object:

{
  "order_id": "The Amazon order number, typically formatted 123-1234567-1234567",
  "order_items": [
    {
      "name": "The full product title exactly as listed under 'Ordered'",
      "short_name": "A concise 2-4 word summary of the product (brand + descriptor)",
      "quantity": "The quantity of this item, as an integer",
      "price_each_usd": "The price per unit in USD, as a number"
    }
  ],
  "total_cost_usd": "The total cost of the order in USD under 'Total', as a number"
}
`

// order is the wire shape returned by the extraction collaborator.
type order struct {
	OrderID    string      `json:"order_id"`
	OrderItems []orderItem `json:"order_items"`
	TotalUSD   float64     `json:"total_cost_usd"`
}

type orderItem struct {
	Name      string  `json:"name"`
	ShortName string  `json:"short_name"`
	Quantity  int64   `json:"quantity"`
	PriceUSD  float64 `json:"price_each_usd"`
}

var (
	orderStartPattern = regexp.MustCompile(`(?i)Order #\s*\n.+\n`)
	footerPattern     = regexp.MustCompile(`©\d{4} Amazon\.com`)
)

// ExtractOrderBlock returns the main order block of an Amazon plain text
// email: from the "Order #" line up to the copyright footer. Empty string
// when either marker is missing.
func ExtractOrderBlock(emailText string) string {
	start := orderStartPattern.FindStringIndex(emailText)
	if start == nil {
		return ""
	}

	footer := footerPattern.FindStringIndex(emailText)
	if footer == nil || footer[0] < start[0] {
		return ""
	}

	return strings.TrimSpace(emailText[start[0]:footer[0]])
}

// Processor handles Amazon order confirmation emails.
type Processor struct {
	payee     string
	extractor extract.Extractor
	logger    *slog.Logger
}

// New creates an Amazon processor.
func New(payee string, extractor extract.Extractor, logger *slog.Logger) *Processor {
	return &Processor{payee: payee, extractor: extractor, logger: logger}
}

// Identifier implements processor.Processor.
func (p *Processor) Identifier() string { return "amazon" }

// Matches claims order confirmation emails from amazon.com.
func (p *Processor) Matches(email *mail.Email) bool {
	return strings.HasSuffix(email.From, "amazon.com") &&
		strings.HasPrefix(email.Subject, "Ordered")
}

// Process extracts the order and builds a split action for multi-item
// orders, or an update action for a single item.
func (p *Processor) Process(ctx context.Context, email *mail.Email) (*action.Action, error) {
	block := ExtractOrderBlock(email.Text)
	if block == "" {
		return nil, fmt.Errorf("failed to extract order block from amazon email")
	}

	data, err := p.extractor.ExtractJSON(ctx, prompt, block)
	if err != nil {
		return nil, fmt.Errorf("failed to extract amazon order: %w", err)
	}

	var o order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to decode amazon order: %w", err)
	}
	if len(o.OrderItems) == 0 {
		return nil, fmt.Errorf("amazon order %q has no items", o.OrderID)
	}

	p.logger.Info("got order details from amazon email",
		"order_id", o.OrderID, "items", len(o.OrderItems))

	return p.makeAction(o)
}

func (p *Processor) makeAction(o order) (*action.Action, error) {
	totalCents := usdToCents(o.TotalUSD)

	// Per-item cost including quantity; the tax overage is allocated
	// proportionally over these so the split sums exactly to the total.
	itemCosts := make([]int64, len(o.OrderItems))
	for i, item := range o.OrderItems {
		itemCosts[i] = usdToCents(item.PriceUSD) * item.Quantity
	}

	taxShares, err := allocate.Overage(itemCosts, totalCents)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate order tax: %w", err)
	}

	match := action.Match{ExpectedPayee: p.payee, ExpectedTotal: totalCents}

	if len(o.OrderItems) == 1 {
		return &action.Action{
			Match:    match,
			Mutation: action.Update{Note: itemNote(o, o.OrderItems[0])},
		}, nil
	}

	items := make([]action.SplitItem, len(o.OrderItems))
	for i, item := range o.OrderItems {
		items[i] = action.SplitItem{
			Amount: itemCosts[i] + taxShares[i],
			Note:   itemNote(o, item),
		}
	}

	return &action.Action{Match: match, Mutation: action.Split{Items: items}}, nil
}

func itemNote(o order, item orderItem) string {
	return fmt.Sprintf("%s (%s)", item.ShortName, o.OrderID)
}

func usdToCents(usd float64) int64 {
	return int64(math.Round(usd * 100))
}
