package domain

import "time"

// Invitation is an owner-created offer of access to a resource.
//
// It is not itself a grant: redeeming its signed token materializes a Policy
// with the invitation's resource, action and expiry. The same invitation can
// be exchanged any number of times by different grantees. Deleting the
// invitation invalidates every outstanding copy of its token; policies
// already materialized from it are unaffected.
type Invitation struct {
	Base
	ResourceType ResourceType `json:"resource_type"`
	ResourceID   string       `json:"resource_id"`
	Action       Action       `json:"action"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"` // expiry of the resulting policy, not the token
	CreatorID    string       `json:"creator_id"`
}
