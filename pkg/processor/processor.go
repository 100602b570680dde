// Package processor defines the vendor processor contract and the explicit
// registry the ingest path dispatches through.
package processor

import (
	"context"

	"github.com/mailfin/ledgermail/pkg/action"
	"github.com/mailfin/ledgermail/pkg/mail"
)

// Processor turns a vendor's notification email into a pending action.
type Processor interface {
	// Identifier names this processor; it is recorded as the action source.
	Identifier() string
	// Matches reports whether this processor is responsible for the email.
	Matches(email *mail.Email) bool
	// Process extracts a pending action from the email. A nil action with a
	// nil error means the email was deliberately ignored.
	Process(ctx context.Context, email *mail.Email) (*action.Action, error)
}

// Registry is an explicitly constructed processor list. The first processor
// whose Matches returns true handles the email.
type Registry struct {
	processors []Processor
}

// NewRegistry creates a registry over the given processors, in dispatch
// order.
func NewRegistry(processors ...Processor) *Registry {
	return &Registry{processors: processors}
}

// Dispatch routes the email to its processor. The returned source is the
// processor identifier; ok is false when no processor claimed the email.
func (r *Registry) Dispatch(ctx context.Context, email *mail.Email) (source string, act *action.Action, ok bool, err error) {
	for _, p := range r.processors {
		if !p.Matches(email) {
			continue
		}
		act, err := p.Process(ctx, email)
		return p.Identifier(), act, true, err
	}
	return "", nil, false, nil
}
