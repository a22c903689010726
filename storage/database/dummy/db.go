package dummydb

import (
	"sync"

	"github.com/jorgead/ritmatiza/core/music"
	"github.com/jorgead/ritmatiza/core/task"
	"github.com/jorgead/ritmatiza/core/user"
)

type (
	DB struct {
		user  *userTable
		task  *taskTable
		music *musicTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	taskTable struct {
		sync.RWMutex
		tasks       map[string]*task.Task
		submissions map[string]*task.Submission
	}

	musicTable struct {
		sync.RWMutex
		suggestions map[string]*music.Suggestion
		playlist    map[string]*music.PlaylistEntry // keyed by track ref
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		task: &taskTable{
			tasks:       make(map[string]*task.Task),
			submissions: make(map[string]*task.Submission),
		},
		music: &musicTable{
			suggestions: make(map[string]*music.Suggestion),
			playlist:    make(map[string]*music.PlaylistEntry),
		},
	}
	return db, nil
}
