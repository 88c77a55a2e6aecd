package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/flowboard-labs/flowboard/dao/query"
	"github.com/flowboard-labs/flowboard/internal/handler"
	"github.com/flowboard-labs/flowboard/internal/middleware"
	"github.com/flowboard-labs/flowboard/internal/resputil"
	"github.com/flowboard-labs/flowboard/pkg/alert"
	"github.com/flowboard-labs/flowboard/pkg/config"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "flowboard-test")
	if err != nil {
		panic(err)
	}
	conf := fmt.Sprintf(`host: http://flowboard.test
auth:
  accessTokenSecret: test-access-secret
  refreshTokenSecret: test-refresh-secret
storage:
  uploadDir: %s
`, filepath.Join(dir, "uploads"))
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(conf), 0o600); err != nil {
		panic(err)
	}
	os.Setenv("FLOWBOARD_DEBUG_CONFIG_PATH", filepath.Join(dir, "config.yaml"))
	// Resolve the singleton while gin is still in debug mode so the
	// file above is the one that gets loaded.
	config.GetConfig()

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// newTestServer wires the full route table against an in-memory
// database, the same way the production router does.
func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, query.MigrateForTest(db))

	conf := handler.RegisterConfig{
		DB:         db,
		Dispatcher: alert.New(alert.Discard, "http://flowboard.test"),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	public := engine.Group("/v1")
	protected := engine.Group("/v1")
	protected.Use(middleware.AuthProtected(db))
	for _, register := range handler.Registers {
		mgr := register(conf)
		mgr.RegisterPublic(public)
		mgr.RegisterProtected(protected)
	}
	return engine, db
}

func do(t *testing.T, engine *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code resputil.ErrorCode `json:"code"`
	Data json.RawMessage    `json:"data"`
	Msg  string             `json:"msg"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) resputil.ErrorCode {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Code
}

// register creates an account through the public API and returns the
// auth response with tokens.
func register(t *testing.T, engine *gin.Engine, username, orgMode, orgName, orgCode string) handler.AuthResp {
	t.Helper()
	w := do(t, engine, http.MethodPost, "/v1/auth/register", "", handler.RegisterReq{
		Username: username,
		Email:    username + "@example.com",
		Password: "hunter2hunter2",
		OrgMode:  orgMode,
		OrgName:  orgName,
		OrgCode:  orgCode,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[handler.AuthResp](t, w)
}

// createWorkspace returns the new workspace's id; the creator becomes
// its admin.
func createWorkspace(t *testing.T, engine *gin.Engine, token, name string) uint {
	t.Helper()
	w := do(t, engine, http.MethodPost, "/v1/workspaces", token, handler.WorkspaceReq{Name: name})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[handler.WorkspaceResp](t, w).ID
}

func createProject(t *testing.T, engine *gin.Engine, token string, wid uint, name string) uint {
	t.Helper()
	path := fmt.Sprintf("/v1/workspaces/%d/projects", wid)
	w := do(t, engine, http.MethodPost, path, token, handler.ProjectReq{Name: name})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[handler.ProjectResp](t, w).ID
}
