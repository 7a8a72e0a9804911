package domain

import (
	"testing"
	"time"
)

func TestActionSatisfies(t *testing.T) {
	tests := []struct {
		granted  Action
		required Action
		want     bool
	}{
		{ActionWildcard, ActionRead, true},
		{ActionWildcard, ActionWrite, true},
		{ActionWildcard, ActionWildcard, true},
		{ActionWrite, ActionRead, true},
		{ActionWrite, ActionWrite, true},
		{ActionWrite, ActionWildcard, false},
		{ActionRead, ActionRead, true},
		{ActionRead, ActionWrite, false},
		{ActionRead, ActionWildcard, false},
		{Action("bogus"), ActionRead, false},
	}

	for _, tt := range tests {
		if got := tt.granted.Satisfies(tt.required); got != tt.want {
			t.Errorf("%s satisfies %s: got %v, want %v", tt.granted, tt.required, got, tt.want)
		}
	}
}

func TestPolicyIsActive(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	p := &Policy{Action: ActionRead}
	if !p.IsActive(now) {
		t.Error("policy without expiry should be active")
	}

	p.ExpiresAt = &future
	if !p.IsActive(now) {
		t.Error("policy expiring in the future should be active")
	}

	p.ExpiresAt = &past
	if p.IsActive(now) {
		t.Error("expired policy should be inactive")
	}

	p.ExpiresAt = nil
	p.MarkDeleted()
	if p.IsActive(now) {
		t.Error("soft-deleted policy should be inactive")
	}
}

func TestKindValidity(t *testing.T) {
	if !ChartKindChord.Valid() || !ChartKindProgression.Valid() {
		t.Error("known chart kinds should be valid")
	}
	if ChartKind("song").Valid() {
		t.Error("unknown chart kind should be invalid")
	}
	if !TagKindDescriptor.Valid() || !TagKindList.Valid() {
		t.Error("known tag kinds should be valid")
	}
	if TagKind("folder").Valid() {
		t.Error("unknown tag kind should be invalid")
	}
}
