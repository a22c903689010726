package music

import (
	"time"

	"github.com/jorgead/ritmatiza/core"
)

// Suggestion statuses
const (
	StatusPending   = "PENDING"
	StatusApproved  = "APPROVED"
	StatusSuspended = "SUSPENDED"
)

type Suggestion struct {
	ID          string    `json:"id" db:"id"`
	TrackRef    string    `json:"track_ref" db:"track_ref"` // external catalog track id
	Title       string    `json:"title" db:"title"`
	Artist      string    `json:"artist" db:"artist"`
	SuggestedBy string    `json:"suggested_by" db:"suggested_by"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
}

// SuggestionInfo is a Suggestion joined with the proposer's display name.
type SuggestionInfo struct {
	Suggestion
	SuggestedByName string `json:"suggested_by_name"`
}

type PlaylistEntry struct {
	ID        string    `json:"id" db:"id"`
	TrackRef  string    `json:"track_ref" db:"track_ref"`
	Title     string    `json:"title" db:"title"`
	Artist    string    `json:"artist" db:"artist"`
	AddedBy   string    `json:"added_by" db:"added_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

// NewSuggestion contains information needed to propose a song.
type NewSuggestion struct {
	TrackRef string `json:"track_ref" validate:"required,max=100"`
	Title    string `json:"title" validate:"required,max=255"`
	Artist   string `json:"artist" validate:"required,max=255"`
}

func (ns *NewSuggestion) Validate() error {
	ns.TrackRef = core.CleanString(ns.TrackRef)
	ns.Title = core.CleanString(ns.Title)
	ns.Artist = core.CleanString(ns.Artist)
	return core.Validate.Struct(ns)
}

// ApproveSuggestion contains the track data copied into the playlist when an
// admin accepts a suggestion.
type ApproveSuggestion struct {
	TrackRef string `json:"track_ref" validate:"required,max=100"`
	Title    string `json:"title" validate:"required,max=255"`
	Artist   string `json:"artist" validate:"required,max=255"`
}

func (as *ApproveSuggestion) Validate() error {
	as.TrackRef = core.CleanString(as.TrackRef)
	as.Title = core.CleanString(as.Title)
	as.Artist = core.CleanString(as.Artist)
	return core.Validate.Struct(as)
}

// SearchQuery is a catalog search request.
type SearchQuery struct {
	Query string `json:"query" validate:"required,min=3"`
}

func (sq *SearchQuery) Validate() error {
	sq.Query = core.CleanString(sq.Query)
	return core.Validate.Struct(sq)
}
