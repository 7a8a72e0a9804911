package domain

import "time"

// ResourceType names the kind of resource a grant applies to.
// Tags are currently the only shareable resource.
type ResourceType string

const (
	ResourceTag ResourceType = "tag"
)

// Valid checks if the resource type is one of the known values.
func (t ResourceType) Valid() bool {
	return t == ResourceTag
}

// Action is an access level on a resource. Actions are totally ordered:
// wildcard > write > read. A grant at a given level satisfies checks for any
// lower level.
type Action string

const (
	ActionRead     Action = "read"
	ActionWrite    Action = "write"
	ActionWildcard Action = "*"
)

// rank maps actions onto their ordering. Unknown actions rank below read.
func (a Action) rank() int {
	switch a {
	case ActionWildcard:
		return 3
	case ActionWrite:
		return 2
	case ActionRead:
		return 1
	default:
		return 0
	}
}

// Valid checks if the action is one of the known values.
func (a Action) Valid() bool {
	return a.rank() > 0
}

// Satisfies reports whether a grant at this level permits an operation
// requiring the given action.
func (a Action) Satisfies(required Action) bool {
	return a.rank() >= required.rank()
}

// Policy is a durable access grant from a resource owner to a grantee.
//
// CreatorID is always the resource owner; only the owner may create or
// delete a policy for their resource (the grantee may delete their own).
// A policy with a nil ExpiresAt never lapses. An expired policy must be
// treated as absent even if not yet soft-deleted.
type Policy struct {
	Base
	ResourceType ResourceType `json:"resource_type"`
	ResourceID   string       `json:"resource_id"`
	GranteeID    string       `json:"grantee_id"`
	Action       Action       `json:"action"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	InvitationID string       `json:"invitation_id,omitempty"` // originating invitation, if any
	CreatorID    string       `json:"creator_id"`
}

// IsActive reports whether the policy currently grants anything:
// not soft-deleted and not past its expiry.
func (p *Policy) IsActive(now time.Time) bool {
	if p.IsDeleted() {
		return false
	}
	if p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
		return false
	}
	return true
}
