package lyft

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/mailfin/ledgermail/pkg/action"
	"github.com/mailfin/ledgermail/pkg/mail"
)

// Bike receipts list the start and end stations above "Start" / "End"
// markers inside the "Your Trip" section.
var bikeTripPattern = regexp.MustCompile(
	`Your Trip(?s:.*?)(.+?)\s+Start\s+(\d{1,2}:\d{2}\s*(?:AM|PM|am|pm)?)(?s:.*?)(.+?)\s+End\s+(\d{1,2}:\d{2}\s*(?:AM|PM|am|pm)?)`)

// BikeProcessor handles Lyft Bike ride receipt emails.
type BikeProcessor struct {
	payee  string
	logger *slog.Logger
}

// NewBike creates a Lyft Bike processor.
func NewBike(payee string, logger *slog.Logger) *BikeProcessor {
	return &BikeProcessor{payee: payee, logger: logger}
}

// Identifier implements processor.Processor.
func (p *BikeProcessor) Identifier() string { return "lyft-bike" }

// Matches claims bike receipts from lyftmail.com.
func (p *BikeProcessor) Matches(email *mail.Email) bool {
	return hasLyftSender(email.From) && email.Subject == "Your Lyft Bike ride"
}

// Process builds an update action with the station path and duration.
// Zero-cost rides (membership-covered trips) produce no action.
func (p *BikeProcessor) Process(_ context.Context, email *mail.Email) (*action.Action, error) {
	text := mail.HTMLToText(email.HTML)

	trip := bikeTripPattern.FindStringSubmatch(text)
	if trip == nil {
		return nil, fmt.Errorf("failed to match trip details in bike receipt")
	}

	totalCents, err := extractTotalCents(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bike receipt: %w", err)
	}

	startStation, endStation := trip[1], trip[3]

	if totalCents == 0 {
		p.logger.Info("ignoring zero-cost bike ride",
			"start", startStation, "end", endStation)
		return nil, nil
	}

	start, err := parseClock(trip[2])
	if err != nil {
		return nil, fmt.Errorf("failed to parse trip start time: %w", err)
	}
	end, err := parseClock(trip[4])
	if err != nil {
		return nil, fmt.Errorf("failed to parse trip end time: %w", err)
	}

	return &action.Action{
		Match:    action.Match{ExpectedPayee: p.payee, ExpectedTotal: totalCents},
		Mutation: action.Update{Note: tripNote([]string{startStation, endStation}, start, end)},
	}, nil
}
