// Package contract holds contract payloads and the terms the settlement
// worker executes.
package contract

import (
	"time"

	"github.com/xraph/tally/id"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusExpired    Status = "expired"
	StatusFulfilled  Status = "fulfilled"
	StatusTerminated Status = "terminated"
)

type TermType string

const (
	TermRecurringTransfer TermType = "recurringTransfer"
)

type TermStatus string

const (
	TermProposed        TermStatus = "proposed"
	TermAgreed          TermStatus = "agreed"
	TermReviewRequested TermStatus = "reviewRequested"
	TermFulfilled       TermStatus = "fulfilled"
	TermRejected        TermStatus = "rejected"
)

// Contract is the payload of a contract asset.
type Contract struct {
	Title      string     `json:"title"`
	Summary    string     `json:"summary"`
	Status     Status     `json:"status"`
	Terms      []Term     `json:"terms"`
	ExpireDate *time.Time `json:"expire_date,omitempty"`
}

// Term is one obligation of a contract. Interval is the period between
// occurrences of a recurring term.
type Term struct {
	ID                id.TermID          `json:"id"`
	Description       string             `json:"description"`
	Type              TermType           `json:"type"`
	Interval          time.Duration      `json:"interval"`
	Status            TermStatus         `json:"status"`
	RecurringTransfer *RecurringTransfer `json:"recurring_transfer,omitempty"`
}

type RecurringTransfer struct {
	Amount int64 `json:"amount"`
}

// Executable reports whether the settlement worker may act on the term.
func (t Term) Executable() bool {
	return t.Status == TermAgreed &&
		t.Type == TermRecurringTransfer &&
		t.RecurringTransfer != nil &&
		t.Interval > 0
}

// Clone returns a deep copy of c.
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	out := *c
	out.Terms = make([]Term, len(c.Terms))
	for k, t := range c.Terms {
		if t.RecurringTransfer != nil {
			rt := *t.RecurringTransfer
			t.RecurringTransfer = &rt
		}
		out.Terms[k] = t
	}
	if c.ExpireDate != nil {
		d := *c.ExpireDate
		out.ExpireDate = &d
	}
	return &out
}
