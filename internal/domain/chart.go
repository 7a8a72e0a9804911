package domain

// ChartKind is the content-type discriminant for charts.
type ChartKind string

const (
	// ChartKindChord is a single chord voicing.
	ChartKindChord ChartKind = "chord"
	// ChartKindProgression is a sequence of chords.
	ChartKindProgression ChartKind = "progression"
)

// Valid checks if the chart kind is one of the known values.
func (k ChartKind) Valid() bool {
	switch k {
	case ChartKindChord, ChartKindProgression:
		return true
	default:
		return false
	}
}

// Note is a musical root or bass note ("C", "F#", "Bb", ...).
// Stored verbatim; the server does not enharmonically normalize.
type Note string

// ChartQuality describes the chord quality for chord-kind charts.
type ChartQuality string

const (
	QualityMajor      ChartQuality = "major"
	QualityMinor      ChartQuality = "minor"
	QualityDominant   ChartQuality = "dominant"
	QualityDiminished ChartQuality = "diminished"
	QualityAugmented  ChartQuality = "augmented"
	QualitySuspended  ChartQuality = "suspended"
)

// Chart is a user-owned content item: a chord voicing or a chord progression
// with optional audio and image attachments.
//
// A chart is owned exclusively by its creator; only the owner may mutate or
// delete it. Any caller with sufficient scope or an active policy on one of
// its tags may read it and react to it.
type Chart struct {
	Base
	Kind     ChartKind `json:"kind"`
	OwnerID  string    `json:"owner_id"`
	Scope    string    `json:"scope"` // owner ID or ScopePublic
	AudioURL string    `json:"audio_url,omitempty"`
	ImageURL string    `json:"image_url,omitempty"`
	Hint     string    `json:"hint,omitempty"`  // free-text playing hint
	Notes    string    `json:"notes,omitempty"` // free-text description

	// Musical attributes, meaningful for chord-kind charts.
	Root    Note         `json:"root,omitempty"`
	Quality ChartQuality `json:"quality,omitempty"`
	Bass    Note         `json:"bass,omitempty"`

	// Denormalized associations, loaded on demand.
	Tags       []*Tag       `json:"tags,omitempty"`
	Extensions []*Extension `json:"extensions,omitempty"`
}

// Extension is a small fixed reference entity describing a chord alteration
// (e.g. "7", "9", "sus4"). Rows are seeded with the schema and never mutated
// through the API.
type Extension struct {
	ID     string `json:"id"`
	Name   string `json:"name"`   // display name, e.g. "Dominant 7th"
	Symbol string `json:"symbol"` // notation symbol, e.g. "7"
}
