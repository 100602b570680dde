// Package cloudflare processes Cloudflare invoice emails. The invoice
// itself arrives as a PDF attachment; its text is pulled out and handed to
// the LLM extraction collaborator.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/mailfin/ledgermail/pkg/action"
	"github.com/mailfin/ledgermail/pkg/extract"
	"github.com/mailfin/ledgermail/pkg/mail"
)

const prompt = `
You are a precise and detail-oriented parser that extracts structured data
from the text of Cloudflare PDF invoices.

Do not make up or infer any data. Use the exact words from the invoice when
setting descriptions.

Respond with a single JSON object:

{
  "invoiceId": "The Cloudflare invoice number, found near the top as 'Invoice number' and typically formatted 'IN-12345678'",
  "lineItems": [
    {
      "description": "The full service description exactly as listed under 'Description'",
      "shortDescription": "A concise summary of the service, focusing on the key service or domain name",
      "quantity": "The quantity from the 'Qty' column, as an integer",
      "totalCents": "The line item amount in cents USD from the 'Amount' column, as an integer. Example: 2520 is $25.20 USD"
    }
  ],
  "totalCents": "The total amount due in cents USD, shown under 'Amount due' or 'Total', as an integer"
}
`

// invoice is the wire shape returned by the extraction collaborator.
type invoice struct {
	InvoiceID  string     `json:"invoiceId"`
	LineItems  []lineItem `json:"lineItems"`
	TotalCents int64      `json:"totalCents"`
}

type lineItem struct {
	Description      string `json:"description"`
	ShortDescription string `json:"shortDescription"`
	Quantity         int64  `json:"quantity"`
	TotalCents       int64  `json:"totalCents"`
}

// Processor handles Cloudflare invoice emails.
type Processor struct {
	payee     string
	extractor extract.Extractor
	logger    *slog.Logger

	// pdfText is swappable so tests do not need to construct real PDFs.
	pdfText func(content []byte) (string, error)
}

// New creates a Cloudflare invoice processor.
func New(payee string, extractor extract.Extractor, logger *slog.Logger) *Processor {
	return &Processor{
		payee:     payee,
		extractor: extractor,
		logger:    logger,
		pdfText:   extractPDFText,
	}
}

// Identifier implements processor.Processor.
func (p *Processor) Identifier() string { return "cloudflare" }

// Matches claims invoice emails from cloudflare.com carrying a PDF.
func (p *Processor) Matches(email *mail.Email) bool {
	return strings.Contains(email.From, "cloudflare.com") &&
		strings.Contains(strings.ToLower(email.Subject), "invoice") &&
		findPDF(email) != nil
}

func findPDF(email *mail.Email) *mail.Attachment {
	for i := range email.Attachments {
		if email.Attachments[i].MimeType == "application/pdf" {
			return &email.Attachments[i]
		}
	}
	return nil
}

// Process extracts the invoice from the PDF attachment and builds a split
// across its line items, or an update when there is only one.
func (p *Processor) Process(ctx context.Context, email *mail.Email) (*action.Action, error) {
	attachment := findPDF(email)
	if attachment == nil {
		return nil, fmt.Errorf("no pdf attachment found in cloudflare email")
	}

	text, err := p.pdfText(attachment.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to extract pdf text: %w", err)
	}

	data, err := p.extractor.ExtractJSON(ctx, prompt, text)
	if err != nil {
		return nil, fmt.Errorf("failed to extract cloudflare invoice: %w", err)
	}

	var inv invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to decode cloudflare invoice: %w", err)
	}
	if len(inv.LineItems) == 0 {
		return nil, fmt.Errorf("cloudflare invoice %q has no line items", inv.InvoiceID)
	}

	p.logger.Info("got invoice details from cloudflare email",
		"invoice_id", inv.InvoiceID, "line_items", len(inv.LineItems))

	match := action.Match{ExpectedPayee: p.payee, ExpectedTotal: inv.TotalCents}

	if len(inv.LineItems) == 1 {
		return &action.Action{
			Match:    match,
			Mutation: action.Update{Note: itemNote(inv, inv.LineItems[0])},
		}, nil
	}

	items := make([]action.SplitItem, len(inv.LineItems))
	for i, item := range inv.LineItems {
		items[i] = action.SplitItem{Amount: item.TotalCents, Note: itemNote(inv, item)}
	}

	return &action.Action{Match: match, Mutation: action.Split{Items: items}}, nil
}

func itemNote(inv invoice, item lineItem) string {
	return fmt.Sprintf("%s (%s)", item.ShortDescription, inv.InvoiceID)
}

// extractPDFText renders every page of the PDF as plain text.
func extractPDFText(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read pdf page %d: %w", pageNum, err)
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(text)
	}

	return strings.TrimSpace(b.String()), nil
}
