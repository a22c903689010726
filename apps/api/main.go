package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/jorgead/ritmatiza/apps/api/echo"
	"github.com/jorgead/ritmatiza/core"
	"github.com/jorgead/ritmatiza/core/music"
	"github.com/jorgead/ritmatiza/core/task"
	"github.com/jorgead/ritmatiza/core/user"
	emailsvc "github.com/jorgead/ritmatiza/services/email"
	logsvc "github.com/jorgead/ritmatiza/services/logger"
	"github.com/jorgead/ritmatiza/services/spotify"
	"github.com/jorgead/ritmatiza/storage/database"
	sqlxrepos "github.com/jorgead/ritmatiza/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig(core.Getwd())
	if err != nil {
		log.Fatalf("loading config: %+v", err)
	}

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()
	dbx := sqlx.NewDb(db, conf.Database.Engine)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	catalog := spotify.NewService(conf)

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(dbx))
	taskSvc := task.NewService(sqlxrepos.NewTaskRepository(dbx))
	musicSvc := music.NewService(sqlxrepos.NewMusicRepository(dbx), catalog, logger)

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:      conf,
		Logger:    logger,
		UserSvc:   usrSvc,
		TaskSvc:   taskSvc,
		MusicSvc:  musicSvc,
		Connector: spotify.NewConnector(catalog),
		MailSvc:   mailSvc,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

const shutdownTimeout = 5 * time.Second

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
