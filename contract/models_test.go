package contract_test

import (
	"testing"
	"time"

	"github.com/xraph/tally/contract"
	"github.com/xraph/tally/id"
)

func TestTermExecutable(t *testing.T) {
	base := contract.Term{
		ID:                id.NewTermID(),
		Type:              contract.TermRecurringTransfer,
		Interval:          time.Second,
		Status:            contract.TermAgreed,
		RecurringTransfer: &contract.RecurringTransfer{Amount: 1},
	}

	tests := []struct {
		name   string
		mutate func(*contract.Term)
		want   bool
	}{
		{"agreed", func(*contract.Term) {}, true},
		{"proposed", func(t *contract.Term) { t.Status = contract.TermProposed }, false},
		{"rejected", func(t *contract.Term) { t.Status = contract.TermRejected }, false},
		{"zero interval", func(t *contract.Term) { t.Interval = 0 }, false},
		{"missing payload", func(t *contract.Term) { t.RecurringTransfer = nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := base
			tt.mutate(&term)
			if got := term.Executable(); got != tt.want {
				t.Errorf("Executable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContractCloneIsDeep(t *testing.T) {
	c := &contract.Contract{
		Title:  "c",
		Status: contract.StatusActive,
		Terms: []contract.Term{{
			ID:                id.NewTermID(),
			RecurringTransfer: &contract.RecurringTransfer{Amount: 1},
		}},
	}
	cp := c.Clone()
	cp.Terms[0].RecurringTransfer.Amount = 5
	cp.Terms[0].Status = contract.TermRejected

	if c.Terms[0].RecurringTransfer.Amount != 1 {
		t.Error("clone shares RecurringTransfer with original")
	}
	if c.Terms[0].Status == contract.TermRejected {
		t.Error("clone shares Terms slice with original")
	}
}
