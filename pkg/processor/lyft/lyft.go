// Package lyft processes Lyft ride and Lyft Bike receipt emails. Both
// receipts carry the charge as "Visa *1234  $12.99" in the rendered body;
// the ride path and times come from vendor-specific patterns.
package lyft

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var totalCostPattern = regexp.MustCompile(`Visa \*\d+\s+\$(\d+)\.(\d{2})`)

// extractTotalCents pulls the charged amount out of the receipt text.
func extractTotalCents(text string) (int64, error) {
	m := totalCostPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("failed to match total cost in receipt")
	}

	var dollars, cents int64
	fmt.Sscanf(m[1], "%d", &dollars)
	fmt.Sscanf(m[2], "%d", &cents)
	return dollars*100 + cents, nil
}

// parseClock parses a wall clock time like "12:45 PM" or "9:07am". The
// returned time sits on the zero date so only the clock component matters.
func parseClock(s string) (time.Time, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	// Tolerate a missing space before the meridiem.
	if strings.HasSuffix(s, "AM") || strings.HasSuffix(s, "PM") {
		s = strings.TrimSpace(s[:len(s)-2]) + " " + s[len(s)-2:]
		return time.Parse("3:04 PM", s)
	}
	return time.Parse("15:04", s)
}

// tripNote renders the shared note format: the address path, the start
// time, and the trip duration in minutes. An end clock earlier than the
// start clock means the trip crossed midnight.
func tripNote(addresses []string, start, end time.Time) string {
	if end.Before(start) {
		end = end.AddDate(0, 0, 1)
	}
	duration := int(end.Sub(start).Minutes())
	return fmt.Sprintf("%s [%s, %dm]", strings.Join(addresses, " → "), start.Format("15:04"), duration)
}
