package lyft

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/mailfin/ledgermail/pkg/action"
	"github.com/mailfin/ledgermail/pkg/mail"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const singleStopRideHTML = `<html><body>
<p>Thanks for riding with Alex!</p>
<table>
<tr><td>Pickup 12:45 PM 805 Leavenworth St, San Francisco, CA</td></tr>
<tr><td>Drop-off 1:04 PM 1000 3rd Street, San Francisco, CA</td></tr>
</table>
<p>Payment</p>
<p>Visa *4242 $12.99</p>
</body></html>`

const multiStopRideHTML = `<html><body>
<p>Pickup 9:00 AM 326 E 4th St, New York, NY</p>
<p>Stop 9:18 AM 27 Essex St, New York, NY</p>
<p>Drop-off 9:45 AM 2312 Summit Ave, Union City, NJ</p>
<p>Visa *1111 $49.19</p>
</body></html>`

const bikeHTML = `<html><body>
<h2>Your Trip</h2>
<table>
<tr><td>E 2 St &amp; Ave C</td></tr>
<tr><td>Start 12:37 PM</td></tr>
<tr><td>E 5 St &amp; Ave C</td></tr>
<tr><td>End 12:46 PM</td></tr>
</table>
<p>Visa *4242 $2.45</p>
</body></html>`

const freeBikeHTML = `<html><body>
<h2>Your Trip</h2>
<p>E 2 St &amp; Ave C</p>
<p>Start 8:00 AM</p>
<p>E 5 St &amp; Ave C</p>
<p>End 8:12 AM</p>
<p>Visa *4242 $0.00</p>
</body></html>`

func TestRideMatches(t *testing.T) {
	p := NewRide("Lyft", discardLogger())

	tests := []struct {
		name    string
		from    string
		subject string
		want    bool
	}{
		{"ride receipt", "no-reply@lyftmail.com", "Your ride with Alex", true},
		{"bike receipt", "no-reply@lyftmail.com", "Your Lyft Bike ride", false},
		{"other sender", "no-reply@example.com", "Your ride with Alex", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Matches(&mail.Email{From: tt.from, Subject: tt.subject})
			if got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRideProcessSingleStop(t *testing.T) {
	p := NewRide("Lyft", discardLogger())
	act, err := p.Process(context.Background(), &mail.Email{HTML: singleStopRideHTML})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if act.Match.ExpectedPayee != "Lyft" || act.Match.ExpectedTotal != 1299 {
		t.Errorf("Match = %+v, want Lyft / 1299", act.Match)
	}

	update, ok := act.Mutation.(action.Update)
	if !ok {
		t.Fatalf("Mutation = %T, want Update", act.Mutation)
	}
	want := "805 Leavenworth St, San Francisco, CA → 1000 3rd Street, San Francisco, CA [12:45, 19m]"
	if update.Note != want {
		t.Errorf("Note = %q, want %q", update.Note, want)
	}
}

func TestRideProcessMultiStop(t *testing.T) {
	p := NewRide("Lyft", discardLogger())
	act, err := p.Process(context.Background(), &mail.Email{HTML: multiStopRideHTML})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if act.Match.ExpectedTotal != 4919 {
		t.Errorf("ExpectedTotal = %d, want 4919", act.Match.ExpectedTotal)
	}

	update := act.Mutation.(action.Update)
	want := "326 E 4th St, New York, NY → 27 Essex St, New York, NY → 2312 Summit Ave, Union City, NJ [09:00, 45m]"
	if update.Note != want {
		t.Errorf("Note = %q, want %q", update.Note, want)
	}
}

func TestRideProcessNoEvents(t *testing.T) {
	p := NewRide("Lyft", discardLogger())
	if _, err := p.Process(context.Background(), &mail.Email{HTML: "<p>nothing here</p>"}); err == nil {
		t.Error("Process() should fail without ride events")
	}
}

func TestBikeMatches(t *testing.T) {
	p := NewBike("Lyft Bike", discardLogger())

	if !p.Matches(&mail.Email{From: "no-reply@lyftmail.com", Subject: "Your Lyft Bike ride"}) {
		t.Error("should match a bike receipt")
	}
	if p.Matches(&mail.Email{From: "no-reply@lyftmail.com", Subject: "Your ride with Alex"}) {
		t.Error("should not match a car ride receipt")
	}
}

func TestBikeProcess(t *testing.T) {
	p := NewBike("Lyft Bike", discardLogger())
	act, err := p.Process(context.Background(), &mail.Email{HTML: bikeHTML})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if act.Match.ExpectedPayee != "Lyft Bike" || act.Match.ExpectedTotal != 245 {
		t.Errorf("Match = %+v, want Lyft Bike / 245", act.Match)
	}

	update := act.Mutation.(action.Update)
	want := "E 2 St & Ave C → E 5 St & Ave C [12:37, 9m]"
	if update.Note != want {
		t.Errorf("Note = %q, want %q", update.Note, want)
	}
}

func TestBikeProcessZeroCost(t *testing.T) {
	p := NewBike("Lyft Bike", discardLogger())
	act, err := p.Process(context.Background(), &mail.Email{HTML: freeBikeHTML})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if act != nil {
		t.Errorf("zero-cost ride should be ignored, got %+v", act)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12:45 PM", "12:45"},
		{"9:07am", "09:07"},
		{"12:01 AM", "00:01"},
		{"15:30", "15:30"},
	}
	for _, tt := range tests {
		got, err := parseClock(tt.in)
		if err != nil {
			t.Errorf("parseClock(%q) error = %v", tt.in, err)
			continue
		}
		if got.Format("15:04") != tt.want {
			t.Errorf("parseClock(%q) = %s, want %s", tt.in, got.Format("15:04"), tt.want)
		}
	}
}

func TestTripNoteCrossesMidnight(t *testing.T) {
	start, _ := parseClock("11:50 PM")
	end, _ := parseClock("12:10 AM")

	got := tripNote([]string{"A", "B"}, start, end)
	want := "A → B [23:50, 20m]"
	if got != want {
		t.Errorf("tripNote() = %q, want %q", got, want)
	}
}
