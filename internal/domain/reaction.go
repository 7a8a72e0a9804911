package domain

import "time"

// ReactionKind is the set of reactions a user can leave on a chart.
type ReactionKind string

const (
	ReactionStar  ReactionKind = "star"
	ReactionFlag  ReactionKind = "flag"
	ReactionSmile ReactionKind = "smile"
)

// Valid checks if the reaction kind is one of the known values.
func (k ReactionKind) Valid() bool {
	switch k {
	case ReactionStar, ReactionFlag, ReactionSmile:
		return true
	default:
		return false
	}
}

// Reaction is a (chart, user) unique pair with a kind.
//
// Reactions are upserted as a toggle: a second identical reaction removes it,
// a different one replaces it. The toggle absorbs duplicate-insert races
// instead of surfacing conflicts.
type Reaction struct {
	ChartID   string       `json:"chart_id"`
	UserID    string       `json:"user_id"`
	Kind      ReactionKind `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
}
