package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowboard-labs/flowboard/dao/model"
	"github.com/flowboard-labs/flowboard/internal/handler"
)

func addWorkspaceMember(t *testing.T, engine *gin.Engine, token string, wid, userID uint, role string) uint {
	t.Helper()
	path := fmt.Sprintf("/v1/workspaces/%d/members", wid)
	w := do(t, engine, http.MethodPost, path, token, handler.AddMemberReq{UserID: userID, Role: role})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[handler.WorkspaceMemberResp](t, w).MembershipID
}

func TestWorkspaceLifecycle(t *testing.T) {
	engine, _ := newTestServer(t)
	owner := register(t, engine, "grace", handler.OrgModeCreate, "Acme", "")
	wid := createWorkspace(t, engine, owner.AccessToken, "Apollo")
	createProject(t, engine, owner.AccessToken, wid, "Lander")

	w := do(t, engine, http.MethodGet, "/v1/workspaces", owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]handler.WorkspaceResp](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, model.WorkspaceRoleAdmin, list[0].Role)

	w = do(t, engine, http.MethodGet, fmt.Sprintf("/v1/workspaces/%d", wid), owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[handler.WorkspaceDetailResp](t, w)
	assert.Equal(t, int64(1), detail.MemberCount)
	assert.Equal(t, int64(1), detail.ProjectCount)

	w = do(t, engine, http.MethodPut, fmt.Sprintf("/v1/workspaces/%d", wid), owner.AccessToken,
		handler.WorkspaceReq{Name: "Apollo 11", Description: "renamed"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, engine, http.MethodGet, fmt.Sprintf("/v1/workspaces/%d", wid), owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Apollo 11", decode[handler.WorkspaceDetailResp](t, w).Name)
}

func TestWorkspaceRoleGuards(t *testing.T) {
	engine, _ := newTestServer(t)
	owner := register(t, engine, "grace", handler.OrgModeCreate, "Acme", "")
	pm := register(t, engine, "ada", handler.OrgModeJoin, "", owner.Context.OrgCode)
	member := register(t, engine, "linus", handler.OrgModeJoin, "", owner.Context.OrgCode)
	outsider := register(t, engine, "ken", handler.OrgModeJoin, "", owner.Context.OrgCode)

	wid := createWorkspace(t, engine, owner.AccessToken, "Apollo")
	addWorkspaceMember(t, engine, owner.AccessToken, wid, pm.Context.UserID, "pm")
	addWorkspaceMember(t, engine, owner.AccessToken, wid, member.Context.UserID, "member")

	path := fmt.Sprintf("/v1/workspaces/%d/projects", wid)

	w := do(t, engine, http.MethodPost, path, pm.AccessToken, handler.ProjectReq{Name: "Lander"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// members can read but not manage
	w = do(t, engine, http.MethodPost, path, member.AccessToken, handler.ProjectReq{Name: "Rover"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, engine, http.MethodGet, path, member.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// org colleagues without a membership see nothing
	w = do(t, engine, http.MethodGet, fmt.Sprintf("/v1/workspaces/%d", wid), outsider.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWorkspaceLastAdminGuards(t *testing.T) {
	engine, _ := newTestServer(t)
	owner := register(t, engine, "grace", handler.OrgModeCreate, "Acme", "")
	helper := register(t, engine, "ada", handler.OrgModeJoin, "", owner.Context.OrgCode)
	wid := createWorkspace(t, engine, owner.AccessToken, "Apollo")

	w := do(t, engine, http.MethodGet, fmt.Sprintf("/v1/workspaces/%d/members", wid),
		owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	members := decode[[]handler.WorkspaceMemberResp](t, w)
	require.Len(t, members, 1)
	ownMembership := members[0].MembershipID

	rolePath := fmt.Sprintf("/v1/workspaces/%d/members/%d/role", wid, ownMembership)
	w = do(t, engine, http.MethodPut, rolePath, owner.AccessToken, handler.ChangeRoleReq{Role: "member"})
	assert.Equal(t, http.StatusConflict, w.Code)

	removePath := fmt.Sprintf("/v1/workspaces/%d/members/%d", wid, ownMembership)
	w = do(t, engine, http.MethodDelete, removePath, owner.AccessToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// with a second admin the demotion goes through
	addWorkspaceMember(t, engine, owner.AccessToken, wid, helper.Context.UserID, "admin")
	w = do(t, engine, http.MethodPut, rolePath, owner.AccessToken, handler.ChangeRoleReq{Role: "member"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAddMemberRequiresSameOrganization(t *testing.T) {
	engine, _ := newTestServer(t)
	owner := register(t, engine, "grace", handler.OrgModeCreate, "Acme", "")
	stranger := register(t, engine, "mallory", handler.OrgModeCreate, "Globex", "")
	wid := createWorkspace(t, engine, owner.AccessToken, "Apollo")

	path := fmt.Sprintf("/v1/workspaces/%d/members", wid)
	w := do(t, engine, http.MethodPost, path, owner.AccessToken,
		handler.AddMemberReq{UserID: stranger.Context.UserID, Role: "member"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWorkspaceDeleteNeedsOrgAdmin(t *testing.T) {
	engine, _ := newTestServer(t)
	owner := register(t, engine, "grace", handler.OrgModeCreate, "Acme", "")
	colleague := register(t, engine, "ada", handler.OrgModeJoin, "", owner.Context.OrgCode)

	// colleague is a workspace admin but only a plain org member
	wid := createWorkspace(t, engine, colleague.AccessToken, "Side Project")

	w := do(t, engine, http.MethodDelete, fmt.Sprintf("/v1/workspaces/%d", wid),
		colleague.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// the org owner still needs a workspace admin seat to even reach the gate
	addWorkspaceMember(t, engine, colleague.AccessToken, wid, owner.Context.UserID, "admin")
	w = do(t, engine, http.MethodDelete, fmt.Sprintf("/v1/workspaces/%d", wid),
		owner.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestWorkspaceCascadeDelete(t *testing.T) {
	engine, db := newTestServer(t)
	owner := register(t, engine, "grace", handler.OrgModeCreate, "Acme", "")
	wid := createWorkspace(t, engine, owner.AccessToken, "Apollo")
	pid := createProject(t, engine, owner.AccessToken, wid, "Lander")

	taskPath := fmt.Sprintf("/v1/workspaces/%d/tasks", wid)
	w := do(t, engine, http.MethodPost, taskPath, owner.AccessToken, handler.TaskReq{
		ProjectID:   pid,
		Title:       "Design landing gear",
		AssigneeIDs: []uint{owner.Context.UserID},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	task := decode[handler.TaskResp](t, w)

	w = do(t, engine, http.MethodPost, fmt.Sprintf("%s/%d/subtasks", taskPath, task.ID),
		owner.AccessToken, handler.SubtaskReq{Title: "Pick the alloy"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, engine, http.MethodPost, fmt.Sprintf("%s/%d/comments", taskPath, task.ID),
		owner.AccessToken, handler.CommentReq{Content: "ship it"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, engine, http.MethodDelete, fmt.Sprintf("/v1/workspaces/%d", wid),
		owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for table, modelPtr := range map[string]any{
		"projects":    &model.Project{},
		"tasks":       &model.Task{},
		"subtasks":    &model.Subtask{},
		"comments":    &model.Comment{},
		"memberships": &model.WorkspaceMembership{},
	} {
		var n int64
		require.NoError(t, db.Model(modelPtr).Count(&n).Error, table)
		assert.Zero(t, n, table)
	}
	var links int64
	require.NoError(t, db.Table("task_assignees").Count(&links).Error)
	assert.Zero(t, links)

	// the workspace itself reads as gone
	w = do(t, engine, http.MethodGet, fmt.Sprintf("/v1/workspaces/%d", wid), owner.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
