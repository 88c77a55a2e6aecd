package handler_test

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowboard-labs/flowboard/dao/model"
	"github.com/flowboard-labs/flowboard/internal/handler"
)

func TestFileLinks(t *testing.T) {
	engine, _ := newTestServer(t)
	owner := register(t, engine, "grace", handler.OrgModeCreate, "Acme", "")
	wid := createWorkspace(t, engine, owner.AccessToken, "Apollo")
	base := fmt.Sprintf("/v1/workspaces/%d/files", wid)

	w := do(t, engine, http.MethodPost, base+"/link", owner.AccessToken, handler.AddLinkReq{
		Name: "Design doc",
		URL:  "https://docs.example.com/design",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	link := decode[handler.FileResp](t, w)
	assert.Equal(t, model.FileKindLink, link.Kind)

	w = do(t, engine, http.MethodPost, base+"/link", owner.AccessToken, handler.AddLinkReq{
		Name: "Broken",
		URL:  "not a url",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// a link has no stored bytes to download
	w = do(t, engine, http.MethodGet, fmt.Sprintf("%s/%d/download", base, link.ID),
		owner.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, engine, http.MethodGet, base, owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]handler.FileResp](t, w), 1)

	w = do(t, engine, http.MethodDelete, fmt.Sprintf("%s/%d", base, link.ID),
		owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, engine, http.MethodGet, base, owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]handler.FileResp](t, w))
}

func TestFileUploadAndDownload(t *testing.T) {
	engine, _ := newTestServer(t)
	owner := register(t, engine, "grace", handler.OrgModeCreate, "Acme", "")
	wid := createWorkspace(t, engine, owner.AccessToken, "Apollo")
	base := fmt.Sprintf("/v1/workspaces/%d/files", wid)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("launch at dawn"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, base+"/upload", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+owner.AccessToken)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	file := decode[handler.FileResp](t, w)
	assert.Equal(t, model.FileKindUpload, file.Kind)
	assert.Equal(t, "notes.txt", file.Name)
	assert.Equal(t, int64(len("launch at dawn")), file.Size)

	w2 := do(t, engine, http.MethodGet, fmt.Sprintf("%s/%d/download", base, file.ID),
		owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, "launch at dawn", w2.Body.String())
	assert.Contains(t, w2.Header().Get("Content-Disposition"), "notes.txt")
}

func TestFileManagementRequiresAdmin(t *testing.T) {
	engine, _ := newTestServer(t)
	owner := register(t, engine, "grace", handler.OrgModeCreate, "Acme", "")
	member := register(t, engine, "ada", handler.OrgModeJoin, "", owner.Context.OrgCode)
	wid := createWorkspace(t, engine, owner.AccessToken, "Apollo")
	addWorkspaceMember(t, engine, owner.AccessToken, wid, member.Context.UserID, "member")
	base := fmt.Sprintf("/v1/workspaces/%d/files", wid)

	w := do(t, engine, http.MethodPost, base+"/link", member.AccessToken, handler.AddLinkReq{
		Name: "Design doc",
		URL:  "https://docs.example.com/design",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// members still get read access
	w = do(t, engine, http.MethodGet, base, member.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
