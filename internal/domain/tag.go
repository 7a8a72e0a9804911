package domain

// TagKind distinguishes the two flavors of tags.
type TagKind string

const (
	// TagKindDescriptor is a plain label ("practice", "jazz").
	TagKindDescriptor TagKind = "descriptor"
	// TagKindList is an ordered list: charts attached to it carry a position.
	TagKindList TagKind = "list"
)

// Valid checks if the tag kind is one of the known values.
func (k TagKind) Valid() bool {
	switch k {
	case TagKindDescriptor, TagKindList:
		return true
	default:
		return false
	}
}

// Tag groups charts under a user-defined name.
//
// Munge is the normalized identity of the name (case and whitespace
// insensitive) used for de-duplication: within one owner's namespace, munge
// keys are unique per tag kind.
type Tag struct {
	Base
	Name    string  `json:"name"`
	Munge   string  `json:"-"` // normalized name, storage-level identity
	Kind    TagKind `json:"kind"`
	OwnerID string  `json:"owner_id"`
	Scope   string  `json:"scope"` // owner ID or ScopePublic
}

// ChartTag represents the many-to-many relationship between charts and tags.
// Position orders the chart within a list-kind tag; it is zero for
// descriptor tags.
type ChartTag struct {
	ChartID  string `json:"chart_id"`
	TagID    string `json:"tag_id"`
	Position int    `json:"position"`
}
