package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/jorgead/ritmatiza/core/music"
)

type suggestionInfoRow struct {
	music.Suggestion
	SuggestedByName string `db:"suggested_by_name"`
}

const suggestionInfoQuery = `
	SELECT s.id, s.track_ref, s.title, s.artist, s.suggested_by, s.status, s.created_at,
		   u.name AS suggested_by_name
	FROM song_suggestion s
	JOIN "user" u ON u.id = s.suggested_by`

type musicRepository struct {
	db *sqlx.DB
}

var _ music.Repository = (*musicRepository)(nil) // interface compliance check

func NewMusicRepository(db *sqlx.DB) *musicRepository {
	return &musicRepository{db: db}
}

func (repo musicRepository) GetSuggestionByTrackRef(ctx context.Context, trackRef string) (music.Suggestion, error) {
	var sug music.Suggestion
	query := `SELECT * FROM song_suggestion WHERE track_ref = $1`
	if err := repo.db.GetContext(ctx, &sug, query, trackRef); err != nil {
		if err == sql.ErrNoRows {
			return music.Suggestion{}, music.ErrSuggestionNotFound
		}
		return music.Suggestion{}, errors.Wrap(err, "finding suggestion by track ref")
	}
	return sug, nil
}

func (repo musicRepository) CreateSuggestion(ctx context.Context, sug music.Suggestion) (music.Suggestion, error) {
	sug.ID = uuid.New().String()
	query := `INSERT INTO song_suggestion (id, track_ref, title, artist, suggested_by, status, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.db.ExecContext(ctx, query, sug.ID, sug.TrackRef, sug.Title, sug.Artist, sug.SuggestedBy, sug.Status, sug.CreatedAt)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return music.Suggestion{}, music.ErrTrackSuggested
		}
		return music.Suggestion{}, errors.Wrap(err, "inserting suggestion")
	}
	return sug, nil
}

func (repo musicRepository) UpdateSuggestion(ctx context.Context, sug music.Suggestion) (music.Suggestion, error) {
	query := `UPDATE song_suggestion
			  SET title = $2, artist = $3, suggested_by = $4, status = $5, created_at = $6
			  WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, sug.ID, sug.Title, sug.Artist, sug.SuggestedBy, sug.Status, sug.CreatedAt)
	if err != nil {
		return music.Suggestion{}, errors.Wrap(err, "updating suggestion")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return music.Suggestion{}, music.ErrSuggestionNotFound
	}
	return sug, nil
}

func (repo musicRepository) QueryPendingSuggestions(ctx context.Context) ([]music.SuggestionInfo, error) {
	var rows []suggestionInfoRow
	query := suggestionInfoQuery + ` WHERE s.status = $1 ORDER BY s.created_at`
	if err := repo.db.SelectContext(ctx, &rows, query, music.StatusPending); err != nil {
		return nil, errors.Wrap(err, "querying pending suggestions")
	}
	return suggestionInfosFromRows(rows), nil
}

func (repo musicRepository) QuerySuggestionsByUser(ctx context.Context, userID string) ([]music.SuggestionInfo, error) {
	var rows []suggestionInfoRow
	query := suggestionInfoQuery + ` WHERE s.suggested_by = $1 ORDER BY s.created_at`
	if err := repo.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, errors.Wrap(err, "querying suggestions by user")
	}
	return suggestionInfosFromRows(rows), nil
}

func suggestionInfosFromRows(rows []suggestionInfoRow) []music.SuggestionInfo {
	infos := make([]music.SuggestionInfo, 0, len(rows))
	for _, r := range rows {
		infos = append(infos, music.SuggestionInfo{Suggestion: r.Suggestion, SuggestedByName: r.SuggestedByName})
	}
	return infos
}

func (repo musicRepository) SuspendPendingSuggestions(ctx context.Context, trackRef string) (int, error) {
	query := `UPDATE song_suggestion SET status = $2 WHERE track_ref = $1 AND status = $3`
	res, err := repo.db.ExecContext(ctx, query, trackRef, music.StatusSuspended, music.StatusPending)
	if err != nil {
		return 0, errors.Wrap(err, "suspending suggestions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting suspended suggestions")
	}
	return int(n), nil
}

// AddPlaylistEntry relies on the unique index on playlist_entry.track_ref: of
// two concurrent approvals for the same track, exactly one insert succeeds.
func (repo musicRepository) AddPlaylistEntry(ctx context.Context, entry music.PlaylistEntry) (music.PlaylistEntry, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return music.PlaylistEntry{}, errors.Wrap(err, "beginning approval transaction")
	}
	defer func() { _ = tx.Rollback() }()

	entry.ID = uuid.New().String()
	insert := `INSERT INTO playlist_entry (id, track_ref, title, artist, added_by, created_at)
			   VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = tx.ExecContext(ctx, insert, entry.ID, entry.TrackRef, entry.Title, entry.Artist, entry.AddedBy, entry.CreatedAt)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return music.PlaylistEntry{}, music.ErrTrackInPlaylist
		}
		return music.PlaylistEntry{}, errors.Wrap(err, "inserting playlist entry")
	}

	approve := `UPDATE song_suggestion SET status = $2 WHERE track_ref = $1`
	if _, err := tx.ExecContext(ctx, approve, entry.TrackRef, music.StatusApproved); err != nil {
		return music.PlaylistEntry{}, errors.Wrap(err, "approving suggestions")
	}

	if err := tx.Commit(); err != nil {
		return music.PlaylistEntry{}, errors.Wrap(err, "committing approval transaction")
	}
	return entry, nil
}

func (repo musicRepository) QueryPlaylist(ctx context.Context) ([]music.PlaylistEntry, error) {
	var entries []music.PlaylistEntry
	query := `SELECT * FROM playlist_entry ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, errors.Wrap(err, "querying playlist")
	}
	return entries, nil
}

func (repo musicRepository) DeletePlaylistEntry(ctx context.Context, trackRef string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM playlist_entry WHERE track_ref = $1`, trackRef)
	if err != nil {
		return errors.Wrap(err, "deleting playlist entry")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return music.ErrEntryNotFound
	}
	return nil
}
