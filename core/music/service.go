package music

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/jorgead/ritmatiza/core"
	"github.com/jorgead/ritmatiza/core/user"
)

var (
	// errors
	ErrSuggestionNotFound = errors.New("no pending suggestion found for this track")
	ErrEntryNotFound      = errors.New("playlist entry not found")
	ErrTrackInPlaylist    = errors.New("this track is already in the playlist")
	ErrTrackSuggested     = errors.New("this track was already suggested")
)

type (
	Repository interface {
		// GetSuggestionByTrackRef returns the suggestion for a track ref, or
		// ErrSuggestionNotFound.
		GetSuggestionByTrackRef(ctx context.Context, trackRef string) (Suggestion, error)
		// CreateSuggestion returns ErrTrackSuggested when a suggestion for the
		// track already exists; concurrent first suggestions yield exactly one row.
		CreateSuggestion(ctx context.Context, sug Suggestion) (Suggestion, error)
		UpdateSuggestion(ctx context.Context, sug Suggestion) (Suggestion, error)
		QueryPendingSuggestions(ctx context.Context) ([]SuggestionInfo, error)
		QuerySuggestionsByUser(ctx context.Context, userID string) ([]SuggestionInfo, error)
		// SuspendPendingSuggestions flips PENDING suggestions for a track to
		// SUSPENDED and reports how many rows changed.
		SuspendPendingSuggestions(ctx context.Context, trackRef string) (int, error)

		// AddPlaylistEntry inserts the entry and marks the track's suggestions
		// APPROVED as one atomic unit. Returns ErrTrackInPlaylist when the track
		// is already present; concurrent approvals of the same track yield
		// exactly one entry.
		AddPlaylistEntry(ctx context.Context, entry PlaylistEntry) (PlaylistEntry, error)
		QueryPlaylist(ctx context.Context) ([]PlaylistEntry, error)
		DeletePlaylistEntry(ctx context.Context, trackRef string) error
	}

	Service struct {
		repo    Repository
		catalog CatalogService
		logger  core.Logger
	}
)

func NewService(repo Repository, catalog CatalogService, logger core.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, logger: logger}
}

// Suggest proposes a song for the playlist. A track with a PENDING or APPROVED
// suggestion cannot be re-suggested; a SUSPENDED one can, which revives the
// suggestion under the new proposer.
func (svc *Service) Suggest(ctx context.Context, principal user.User, ns NewSuggestion) (Suggestion, error) {
	prev, err := svc.repo.GetSuggestionByTrackRef(ctx, ns.TrackRef)
	switch err {
	case nil:
		if prev.Status == StatusPending || prev.Status == StatusApproved {
			return Suggestion{}, core.NewConflictError("track_ref", ErrTrackSuggested.Error())
		}
		prev.Title = ns.Title
		prev.Artist = ns.Artist
		prev.SuggestedBy = principal.ID
		prev.Status = StatusPending
		prev.CreatedAt = time.Now().UTC()
		return svc.repo.UpdateSuggestion(ctx, prev)
	case ErrSuggestionNotFound:
		sug := Suggestion{
			TrackRef:    ns.TrackRef,
			Title:       ns.Title,
			Artist:      ns.Artist,
			SuggestedBy: principal.ID,
			Status:      StatusPending,
			CreatedAt:   time.Now().UTC(),
		}
		sug, err = svc.repo.CreateSuggestion(ctx, sug)
		if err == ErrTrackSuggested { // lost the race to another first suggestion
			return Suggestion{}, core.NewConflictError("track_ref", err.Error())
		}
		return sug, err
	default:
		return Suggestion{}, errors.Wrap(err, "finding suggestion by track ref")
	}
}

// List returns all PENDING suggestions for teachers/admins, or the principal's
// own suggestions for everyone else.
func (svc *Service) List(ctx context.Context, principal user.User) ([]SuggestionInfo, error) {
	if user.Allows(principal.Role, user.CapTeacherOrAdmin) {
		return svc.repo.QueryPendingSuggestions(ctx)
	}
	return svc.repo.QuerySuggestionsByUser(ctx, principal.ID)
}

// Approve copies a suggested track into the playlist and marks its suggestions
// APPROVED; admin only.
func (svc *Service) Approve(ctx context.Context, principal user.User, as ApproveSuggestion) (PlaylistEntry, error) {
	if !user.Allows(principal.Role, user.CapAdminOnly) {
		return PlaylistEntry{}, core.ErrPermissionDenied
	}

	entry := PlaylistEntry{
		TrackRef:  as.TrackRef,
		Title:     as.Title,
		Artist:    as.Artist,
		AddedBy:   principal.ID,
		CreatedAt: time.Now().UTC(),
	}
	entry, err := svc.repo.AddPlaylistEntry(ctx, entry)
	if err != nil {
		if err == ErrTrackInPlaylist {
			return PlaylistEntry{}, core.NewConflictError("track_ref", err.Error())
		}
		return PlaylistEntry{}, errors.Wrap(err, "adding playlist entry")
	}
	return entry, nil
}

// Reject suspends the PENDING suggestions for a track; admin only.
func (svc *Service) Reject(ctx context.Context, principal user.User, trackRef string) error {
	if !user.Allows(principal.Role, user.CapAdminOnly) {
		return core.ErrPermissionDenied
	}

	n, err := svc.repo.SuspendPendingSuggestions(ctx, core.CleanString(trackRef))
	if err != nil {
		return errors.Wrap(err, "suspending suggestions")
	}
	if n == 0 {
		return ErrSuggestionNotFound
	}
	return nil
}

// Playlist returns the curated playlist; any authenticated role.
func (svc *Service) Playlist(ctx context.Context) ([]PlaylistEntry, error) {
	return svc.repo.QueryPlaylist(ctx)
}

// RemoveEntry hard-deletes a playlist entry; admin only.
func (svc *Service) RemoveEntry(ctx context.Context, principal user.User, trackRef string) error {
	if !user.Allows(principal.Role, user.CapAdminOnly) {
		return core.ErrPermissionDenied
	}
	return svc.repo.DeletePlaylistEntry(ctx, core.CleanString(trackRef))
}

// Search queries the external catalog with an app-level token. Gateway
// failures surface as core.ErrServiceUnavailable rather than hanging or
// leaking transport detail.
func (svc *Service) Search(ctx context.Context, sq SearchQuery) ([]Track, error) {
	token, err := svc.catalog.ClientCredentialsToken(ctx)
	if err != nil {
		svc.logger.Error("fetching catalog client token", err)
		return nil, core.ErrServiceUnavailable
	}

	tracks, err := svc.catalog.Search(ctx, sq.Query, token)
	if err != nil {
		svc.logger.Error("searching catalog", err)
		return nil, core.ErrServiceUnavailable
	}
	return tracks, nil
}
