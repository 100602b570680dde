package amazon

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mailfin/ledgermail/pkg/action"
	"github.com/mailfin/ledgermail/pkg/mail"
)

type fakeExtractor struct {
	document string
	response string
	err      error
}

func (f *fakeExtractor) ExtractJSON(_ context.Context, _ string, document string) ([]byte, error) {
	f.document = document
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.response), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const orderEmail = `Hello,

Thank you for shopping with us.

Order #
123-4567890-1234567

Ordered

Anker USB-C Cable 6ft
$12.99
Quantity: 2

Logitech MX Master 3S Wireless Mouse
$99.99

Total
$135.78

©2026 Amazon.com, Inc. or its affiliates.
`

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		subject string
		want    bool
	}{
		{"order confirmation", "auto-confirm@amazon.com", "Ordered: \"Anker USB-C Cable...\"", true},
		{"shipping notice", "shipment-tracking@amazon.com", "Shipped: your package", false},
		{"other sender", "orders@example.com", "Ordered: widgets", false},
	}

	p := New("Amazon", nil, discardLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Matches(&mail.Email{From: tt.from, Subject: tt.subject})
			if got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractOrderBlock(t *testing.T) {
	block := ExtractOrderBlock(orderEmail)
	if !strings.HasPrefix(block, "Order #") {
		t.Errorf("block should start at the order number, got %q", block)
	}
	if strings.Contains(block, "Amazon.com, Inc.") {
		t.Error("block should not include the footer")
	}
	if !strings.Contains(block, "Logitech MX Master") {
		t.Error("block should include the item listing")
	}

	if got := ExtractOrderBlock("no markers here"); got != "" {
		t.Errorf("ExtractOrderBlock() without markers = %q, want empty", got)
	}
}

func TestProcessMultiItemSplit(t *testing.T) {
	ex := &fakeExtractor{response: `{
		"order_id": "123-4567890-1234567",
		"order_items": [
			{"name": "Anker USB-C Cable 6ft", "short_name": "Anker Cable", "quantity": 2, "price_each_usd": 12.99},
			{"name": "Logitech MX Master 3S Wireless Mouse", "short_name": "Logitech Mouse", "quantity": 1, "price_each_usd": 99.99}
		],
		"total_cost_usd": 135.78
	}`}

	p := New("Amazon", ex, discardLogger())
	act, err := p.Process(context.Background(), &mail.Email{Text: orderEmail})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if !strings.HasPrefix(ex.document, "Order #") {
		t.Error("extractor should receive the trimmed order block")
	}
	if act.Match.ExpectedPayee != "Amazon" {
		t.Errorf("ExpectedPayee = %q, want Amazon", act.Match.ExpectedPayee)
	}
	if act.Match.ExpectedTotal != 13578 {
		t.Errorf("ExpectedTotal = %d, want 13578", act.Match.ExpectedTotal)
	}

	split, ok := act.Mutation.(action.Split)
	if !ok {
		t.Fatalf("Mutation = %T, want Split", act.Mutation)
	}
	if len(split.Items) != 2 {
		t.Fatalf("split has %d items, want 2", len(split.Items))
	}

	var sum int64
	for _, item := range split.Items {
		sum += item.Amount
	}
	if sum != 13578 {
		t.Errorf("split amounts sum to %d, want 13578", sum)
	}

	// Costs: 2598 and 9999 (subtotal 12597), overage 981.
	if split.Items[0].Amount != 2598+202 {
		t.Errorf("first split amount = %d, want 2800", split.Items[0].Amount)
	}
	if split.Items[0].Note != "Anker Cable (123-4567890-1234567)" {
		t.Errorf("first split note = %q", split.Items[0].Note)
	}
	if split.Items[1].Note != "Logitech Mouse (123-4567890-1234567)" {
		t.Errorf("second split note = %q", split.Items[1].Note)
	}
}

func TestProcessSingleItemUpdate(t *testing.T) {
	ex := &fakeExtractor{response: `{
		"order_id": "111-2223334-5556667",
		"order_items": [
			{"name": "AA Batteries 24 Pack", "short_name": "AA Batteries", "quantity": 1, "price_each_usd": 18.99}
		],
		"total_cost_usd": 20.65
	}`}

	p := New("Amazon", ex, discardLogger())
	act, err := p.Process(context.Background(), &mail.Email{Text: orderEmail})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	update, ok := act.Mutation.(action.Update)
	if !ok {
		t.Fatalf("Mutation = %T, want Update", act.Mutation)
	}
	if update.Note != "AA Batteries (111-2223334-5556667)" {
		t.Errorf("Note = %q", update.Note)
	}
	if act.Match.ExpectedTotal != 2065 {
		t.Errorf("ExpectedTotal = %d, want 2065", act.Match.ExpectedTotal)
	}
}

func TestProcessMissingOrderBlock(t *testing.T) {
	p := New("Amazon", &fakeExtractor{}, discardLogger())
	if _, err := p.Process(context.Background(), &mail.Email{Text: "not an order"}); err == nil {
		t.Error("Process() should fail without an order block")
	}
}

func TestProcessEmptyItems(t *testing.T) {
	ex := &fakeExtractor{response: `{"order_id": "X", "order_items": [], "total_cost_usd": 10}`}
	p := New("Amazon", ex, discardLogger())
	if _, err := p.Process(context.Background(), &mail.Email{Text: orderEmail}); err == nil {
		t.Error("Process() should fail with no order items")
	}
}
