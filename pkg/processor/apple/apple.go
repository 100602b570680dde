// Package apple processes App Store receipt emails. Receipts carry a
// single purchase, so the result is always an update action.
package apple

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mailfin/ledgermail/pkg/action"
	"github.com/mailfin/ledgermail/pkg/mail"
)

var (
	totalCostPattern = regexp.MustCompile(`TOTAL \$(\d+)\.(\d{2})`)

	// The receipt lists the order id, then an app icon marker like
	// "[App icon]" followed by the item name and its sub-item (the
	// subscription tier or in-app purchase) on the two lines below.
	orderDetailsPattern = regexp.MustCompile(
		`ORDER ID\n([A-Z0-9]+)(?s:.*?)\[[^\n]+\]\n([^\n]+)\n([^\n]+)\n`)
)

// Processor handles App Store receipt emails.
type Processor struct {
	payee  string
	logger *slog.Logger
}

// New creates an Apple receipt processor.
func New(payee string, logger *slog.Logger) *Processor {
	return &Processor{payee: payee, logger: logger}
}

// Identifier implements processor.Processor.
func (p *Processor) Identifier() string { return "apple" }

// Matches claims receipt emails from apple.com.
func (p *Processor) Matches(email *mail.Email) bool {
	return strings.HasSuffix(email.From, "apple.com") &&
		email.Subject == "Your receipt from Apple."
}

// Process builds an update action naming the purchased item.
func (p *Processor) Process(_ context.Context, email *mail.Email) (*action.Action, error) {
	text := mail.HTMLToText(email.HTML)

	order := orderDetailsPattern.FindStringSubmatch(text)
	if order == nil {
		return nil, fmt.Errorf("failed to match order details in apple receipt")
	}

	cost := totalCostPattern.FindStringSubmatch(text)
	if cost == nil {
		return nil, fmt.Errorf("failed to match total cost in apple receipt")
	}

	var dollars, cents int64
	fmt.Sscanf(cost[1], "%d", &dollars)
	fmt.Sscanf(cost[2], "%d", &cents)
	totalCents := dollars*100 + cents

	orderID, itemName, subItem := order[1], order[2], order[3]

	p.logger.Info("got receipt details from apple email",
		"order_id", orderID, "item", itemName)

	return &action.Action{
		Match:    action.Match{ExpectedPayee: p.payee, ExpectedTotal: totalCents},
		Mutation: action.Update{Note: fmt.Sprintf("%s, %s", itemName, subItem)},
	}, nil
}
