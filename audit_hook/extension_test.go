package audithook_test

import (
	"context"
	"errors"
	"testing"

	audithook "github.com/xraph/tally/audit_hook"
	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/owner"
)

type captured struct {
	events []*audithook.AuditEvent
}

func (c *captured) recorder() audithook.RecorderFunc {
	return func(_ context.Context, evt *audithook.AuditEvent) error {
		c.events = append(c.events, evt)
		return nil
	}
}

func TestExtensionRecordsEvents(t *testing.T) {
	ctx := context.Background()
	var c captured
	ext := audithook.New(c.recorder())

	o := &owner.Owner{ID: id.NewOwnerID(), Role: owner.RoleUser, Name: "alice"}
	if err := ext.OnOwnerCreated(ctx, o); err != nil {
		t.Fatal(err)
	}

	act := &activity.Activity{
		ID: id.NewActivityID(),
		Transfer: &activity.Transfer{
			Type:   activity.TransferValuesFromOwnerToOwner,
			FromID: id.NewOwnerID(),
			ToID:   o.ID,
			IDs:    []id.ID{id.NewValueID()},
		},
	}
	if err := ext.OnValueTransferred(ctx, act, 1); err != nil {
		t.Fatal(err)
	}

	if len(c.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(c.events))
	}

	tests := []struct {
		name     string
		evt      *audithook.AuditEvent
		action   string
		resource string
		resID    string
	}{
		{"owner", c.events[0], audithook.ActionOwnerCreated, audithook.ResourceOwner, o.ID.String()},
		{"transfer", c.events[1], audithook.ActionValueTransferred, audithook.ResourceActivity, act.ID.String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.evt.Action != tt.action {
				t.Errorf("action = %q, want %q", tt.evt.Action, tt.action)
			}
			if tt.evt.Resource != tt.resource {
				t.Errorf("resource = %q, want %q", tt.evt.Resource, tt.resource)
			}
			if tt.evt.ResourceID != tt.resID {
				t.Errorf("resource id = %q, want %q", tt.evt.ResourceID, tt.resID)
			}
		})
	}

	if got := c.events[1].Metadata["transfer_type"]; got != string(activity.TransferValuesFromOwnerToOwner) {
		t.Errorf("transfer_type = %v", got)
	}
	if got := c.events[1].Metadata["amount"]; got != int64(1) {
		t.Errorf("amount = %v", got)
	}
}

func TestExtensionFailureCarriesReason(t *testing.T) {
	var c captured
	ext := audithook.New(c.recorder())

	pending := &activity.Activity{ID: id.NewActivityID()}
	cause := errors.New("pool exhausted")
	if err := ext.OnObligationFailed(context.Background(), id.NewTermID(), pending, cause); err != nil {
		t.Fatal(err)
	}

	if len(c.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(c.events))
	}
	evt := c.events[0]
	if evt.Outcome != audithook.OutcomeFailure {
		t.Errorf("outcome = %q", evt.Outcome)
	}
	if evt.Reason != "pool exhausted" {
		t.Errorf("reason = %q", evt.Reason)
	}
}

func TestActionFiltering(t *testing.T) {
	ctx := context.Background()
	o := &owner.Owner{ID: id.NewOwnerID(), Role: owner.RoleTeam}
	act := &activity.Activity{ID: id.NewActivityID(), OwnerID: o.ID}

	tests := []struct {
		name string
		opts []audithook.Option
		want int
	}{
		{"all enabled", nil, 2},
		{"enabled subset", []audithook.Option{audithook.WithEnabledActions(audithook.ActionOwnerCreated)}, 1},
		{"disabled", []audithook.Option{audithook.WithDisabledActions(audithook.ActionOwnerCreated, audithook.ActionAccountChecked)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c captured
			ext := audithook.New(c.recorder(), tt.opts...)
			_ = ext.OnOwnerCreated(ctx, o)
			_ = ext.OnAccountChecked(ctx, act)
			if len(c.events) != tt.want {
				t.Errorf("got %d events, want %d", len(c.events), tt.want)
			}
		})
	}
}

func TestRecorderErrorIsSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))
	if err := ext.OnOwnerCreated(context.Background(), &owner.Owner{ID: id.NewOwnerID()}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
