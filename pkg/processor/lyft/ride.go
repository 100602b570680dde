package lyft

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mailfin/ledgermail/pkg/action"
	"github.com/mailfin/ledgermail/pkg/mail"
)

// Ride events appear one per line as "Pickup 12:45 PM 805 Leavenworth St".
// A multi-stop ride lists one or more Stop lines between them.
var rideEventsPattern = regexp.MustCompile(
	`(?m)(Pickup|Drop-off|Stop)\s+(\d{1,2}:\d{2}\s*[AP]M)\s+(.+?)\s*$`)

// RideProcessor handles Lyft ride receipt emails.
type RideProcessor struct {
	payee  string
	logger *slog.Logger
}

// NewRide creates a Lyft ride processor.
func NewRide(payee string, logger *slog.Logger) *RideProcessor {
	return &RideProcessor{payee: payee, logger: logger}
}

// Identifier implements processor.Processor.
func (p *RideProcessor) Identifier() string { return "lyft-ride" }

// Matches claims ride receipts from lyftmail.com.
func (p *RideProcessor) Matches(email *mail.Email) bool {
	return hasLyftSender(email.From) && strings.HasPrefix(email.Subject, "Your ride with")
}

func hasLyftSender(from string) bool {
	return strings.HasSuffix(from, "lyftmail.com")
}

// Process builds an update action with the full ride path and duration.
func (p *RideProcessor) Process(_ context.Context, email *mail.Email) (*action.Action, error) {
	text := mail.HTMLToText(email.HTML)

	events := rideEventsPattern.FindAllStringSubmatch(text, -1)
	if len(events) == 0 {
		return nil, fmt.Errorf("failed to match pickup / stop / drop-off events in ride receipt")
	}

	totalCents, err := extractTotalCents(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ride receipt: %w", err)
	}

	addresses := make([]string, len(events))
	for i, event := range events {
		addresses[i] = event[3]
	}

	start, err := parseClock(events[0][2])
	if err != nil {
		return nil, fmt.Errorf("failed to parse pickup time: %w", err)
	}
	end, err := parseClock(events[len(events)-1][2])
	if err != nil {
		return nil, fmt.Errorf("failed to parse drop-off time: %w", err)
	}

	p.logger.Info("got ride details from lyft email",
		"stops", len(events), "total_cents", totalCents)

	return &action.Action{
		Match:    action.Match{ExpectedPayee: p.payee, ExpectedTotal: totalCents},
		Mutation: action.Update{Note: tripNote(addresses, start, end)},
	}, nil
}
