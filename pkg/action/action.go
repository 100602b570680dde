// Package action defines the pending ledger annotation produced by vendor
// processors and consumed by the reconciliation engine.
package action

import (
	"encoding/json"
	"fmt"
	"time"
)

// Match is the predicate used to locate the target ledger transaction.
type Match struct {
	// ExpectedPayee is the exact payee name to match.
	ExpectedPayee string `json:"expectedPayee"`
	// ExpectedTotal is the expected transaction total in minor units (cents).
	ExpectedTotal int64 `json:"expectedTotal"`
}

// Mutation is the annotation to apply once a transaction is matched. It is a
// closed sum: the only implementations are Update and Split, and the engine
// handles both exhaustively at the single site that issues ledger mutations.
type Mutation interface {
	mutation()
}

// Update sets a single note on the matched transaction.
type Update struct {
	Note         string `json:"note"`
	MarkReviewed bool   `json:"markReviewed,omitempty"`
}

func (Update) mutation() {}

// SplitItem is one line of a Split mutation.
type SplitItem struct {
	// Amount is the line amount in minor units. The producer guarantees the
	// items sum exactly to Match.ExpectedTotal; this is not re-validated here.
	Amount       int64  `json:"amount"`
	Note         string `json:"note"`
	MarkReviewed bool   `json:"markReviewed,omitempty"`
}

// Split divides the matched transaction into per-item lines, each with its
// own note and reviewed state.
type Split struct {
	Items []SplitItem `json:"split"`
}

func (Split) mutation() {}

// Action pairs the match predicate with the mutation to apply.
type Action struct {
	Match    Match
	Mutation Mutation
}

// Row is a persisted backlog entry as stored in the pending actions table.
type Row struct {
	ID            int64
	DateCreated   time.Time
	Source        string
	Action        Action
	StaleNotified bool
}

// envelope is the serialized wire shape, tagged by mutation type.
type envelope struct {
	Type         string          `json:"type"`
	Match        Match           `json:"match"`
	Note         string          `json:"note,omitempty"`
	MarkReviewed bool            `json:"markReviewed,omitempty"`
	Split        json.RawMessage `json:"split,omitempty"`
}

// MarshalJSON serializes the action with a "type" tag of "update" or "split".
func (a Action) MarshalJSON() ([]byte, error) {
	switch m := a.Mutation.(type) {
	case Update:
		return json.Marshal(struct {
			Type         string `json:"type"`
			Match        Match  `json:"match"`
			Note         string `json:"note"`
			MarkReviewed bool   `json:"markReviewed,omitempty"`
		}{Type: "update", Match: a.Match, Note: m.Note, MarkReviewed: m.MarkReviewed})
	case Split:
		return json.Marshal(struct {
			Type  string      `json:"type"`
			Match Match       `json:"match"`
			Split []SplitItem `json:"split"`
		}{Type: "split", Match: a.Match, Split: m.Items})
	default:
		return nil, fmt.Errorf("action: unknown mutation type %T", a.Mutation)
	}
}

// UnmarshalJSON decodes the tagged wire shape back into the sum type.
func (a *Action) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("action: decode envelope: %w", err)
	}

	a.Match = env.Match

	switch env.Type {
	case "update":
		a.Mutation = Update{Note: env.Note, MarkReviewed: env.MarkReviewed}
	case "split":
		var items []SplitItem
		if err := json.Unmarshal(env.Split, &items); err != nil {
			return fmt.Errorf("action: decode split items: %w", err)
		}
		a.Mutation = Split{Items: items}
	default:
		return fmt.Errorf("action: unknown action type %q", env.Type)
	}

	return nil
}

// Kind returns the wire tag of the mutation, for logs and reports.
func (a Action) Kind() string {
	switch a.Mutation.(type) {
	case Split:
		return "split"
	default:
		return "update"
	}
}
