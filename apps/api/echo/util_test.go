package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/jorgead/ritmatiza/apps/api/echo"
	"github.com/jorgead/ritmatiza/core"
	"github.com/jorgead/ritmatiza/core/music"
	"github.com/jorgead/ritmatiza/core/task"
	"github.com/jorgead/ritmatiza/core/user"
	emailsvc "github.com/jorgead/ritmatiza/services/email"
	"github.com/jorgead/ritmatiza/services/spotify"
	dummyspotify "github.com/jorgead/ritmatiza/services/spotify/dummy"
	dummydb "github.com/jorgead/ritmatiza/storage/database/dummy"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	conf      *core.Config
	server    *echoapi.Server
	usrRepo   user.Repository
	taskRepo  task.Repository
	catalog   *dummyspotify.Service
	connector *spotify.Connector
}

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	usrRepo := dummydb.NewUserRepository(db)
	taskRepo := dummydb.NewTaskRepository(db)
	musicRepo := dummydb.NewMusicRepository(db)

	conf := &core.Config{
		AppName:      "Ritmatiza",
		Env:          "TEST",
		TestMode:     true,
		SecretKey:    []byte("secret"),
		ContactEmail: "contact@test.cd",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}

	logger := nopLogger{}
	catalog := dummyspotify.NewService()
	connector := spotify.NewConnector(catalog)

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		DisableReqLogs: true,
		UserSvc:        user.NewService(usrRepo),
		TaskSvc:        task.NewService(taskRepo),
		MusicSvc:       music.NewService(musicRepo, catalog, logger),
		Connector:      connector,
		MailSvc:        emailsvc.NewConsoleServiceMock(conf),
	})
	return &testEnv{
		conf:      conf,
		server:    server,
		usrRepo:   usrRepo,
		taskRepo:  taskRepo,
		catalog:   catalog,
		connector: connector,
	}
}

func createUser(t *testing.T, repo user.Repository, name, email, role string, teacherID *string) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		TeacherID: teacherID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword("secret1"); err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func createTask(t *testing.T, repo task.Repository, title string, reward int, creator user.User, allowResubmit bool) task.Task {
	t.Helper()

	tsk, err := repo.CreateTask(context.Background(), task.Task{
		Title:         title,
		Body:          "body of " + title,
		Reward:        reward,
		CreatorID:     creator.ID,
		AllowResubmit: allowResubmit,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("createTask() failed: %v", err)
	}
	return tsk
}

func createSubmission(t *testing.T, repo task.Repository, tsk task.Task, student user.User, status string) task.Submission {
	t.Helper()

	sub, err := repo.CreateSubmission(context.Background(), task.Submission{
		TaskID:    tsk.ID,
		StudentID: student.ID,
		Artifact:  "https://done.test.cd/" + tsk.ID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("createSubmission() failed: %v", err)
	}
	return sub
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	t.Helper()

	claims := echoapi.GetUserClaims(conf, usr)
	token, err := echoapi.GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantCode == http.StatusNoContent {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
