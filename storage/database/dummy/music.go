package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jorgead/ritmatiza/core/music"
)

type musicRepository struct {
	db    *musicTable
	users *userTable
}

var _ music.Repository = (*musicRepository)(nil) // interface compliance check

func NewMusicRepository(db *DB) *musicRepository {
	return &musicRepository{db: db.music, users: db.user}
}

func (repo *musicRepository) userName(id string) string {
	repo.users.RLock()
	defer repo.users.RUnlock()

	if usr, ok := repo.users.table[id]; ok {
		return usr.Name
	}
	return ""
}

func (repo *musicRepository) GetSuggestionByTrackRef(ctx context.Context, trackRef string) (music.Suggestion, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sug := range repo.db.suggestions {
		if sug.TrackRef == trackRef {
			return *sug, nil
		}
	}
	return music.Suggestion{}, music.ErrSuggestionNotFound
}

// CreateSuggestion mirrors the production unique constraint on track_ref: of
// two concurrent first suggestions, exactly one insert succeeds.
func (repo *musicRepository) CreateSuggestion(ctx context.Context, sug music.Suggestion) (music.Suggestion, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, prev := range repo.db.suggestions {
		if prev.TrackRef == sug.TrackRef {
			return music.Suggestion{}, music.ErrTrackSuggested
		}
	}

	sug.ID = uuid.New().String()
	repo.db.suggestions[sug.ID] = &sug
	return sug, nil
}

func (repo *musicRepository) UpdateSuggestion(ctx context.Context, sug music.Suggestion) (music.Suggestion, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.suggestions[sug.ID]; !ok {
		return music.Suggestion{}, music.ErrSuggestionNotFound
	}
	repo.db.suggestions[sug.ID] = &sug
	return sug, nil
}

func (repo *musicRepository) querySuggestions(match func(music.Suggestion) bool) []music.SuggestionInfo {
	var infos []music.SuggestionInfo
	for _, sug := range repo.db.suggestions {
		if !match(*sug) {
			continue
		}
		infos = append(infos, music.SuggestionInfo{
			Suggestion:      *sug,
			SuggestedByName: repo.userName(sug.SuggestedBy),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })
	return infos
}

func (repo *musicRepository) QueryPendingSuggestions(ctx context.Context) ([]music.SuggestionInfo, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.querySuggestions(func(sug music.Suggestion) bool { return sug.Status == music.StatusPending }), nil
}

func (repo *musicRepository) QuerySuggestionsByUser(ctx context.Context, userID string) ([]music.SuggestionInfo, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.querySuggestions(func(sug music.Suggestion) bool { return sug.SuggestedBy == userID }), nil
}

func (repo *musicRepository) SuspendPendingSuggestions(ctx context.Context, trackRef string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for _, sug := range repo.db.suggestions {
		if sug.TrackRef == trackRef && sug.Status == music.StatusPending {
			sug.Status = music.StatusSuspended
			n++
		}
	}
	return n, nil
}

// AddPlaylistEntry mirrors the production repo's unique constraint: the
// presence check and insert happen under one lock, so concurrent approvals of
// the same track yield exactly one entry.
func (repo *musicRepository) AddPlaylistEntry(ctx context.Context, entry music.PlaylistEntry) (music.PlaylistEntry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.playlist[entry.TrackRef]; ok {
		return music.PlaylistEntry{}, music.ErrTrackInPlaylist
	}

	entry.ID = uuid.New().String()
	repo.db.playlist[entry.TrackRef] = &entry
	for _, sug := range repo.db.suggestions {
		if sug.TrackRef == entry.TrackRef {
			sug.Status = music.StatusApproved
		}
	}
	return entry, nil
}

func (repo *musicRepository) QueryPlaylist(ctx context.Context) ([]music.PlaylistEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := make([]music.PlaylistEntry, 0, len(repo.db.playlist))
	for _, entry := range repo.db.playlist {
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries, nil
}

func (repo *musicRepository) DeletePlaylistEntry(ctx context.Context, trackRef string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.playlist[trackRef]; !ok {
		return music.ErrEntryNotFound
	}
	delete(repo.db.playlist, trackRef)
	return nil
}
