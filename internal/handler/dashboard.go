package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/flowboard-labs/flowboard/dao/model"
	"github.com/flowboard-labs/flowboard/internal/resputil"
	"github.com/flowboard-labs/flowboard/internal/util"
	"github.com/flowboard-labs/flowboard/pkg/rbac"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewDashboardMgr)
}

type DashboardMgr struct {
	name string
	db   *gorm.DB
}

func NewDashboardMgr(conf RegisterConfig) Manager {
	return &DashboardMgr{name: "dashboard", db: conf.DB}
}

func (mgr *DashboardMgr) GetName() string { return mgr.name }

func (mgr *DashboardMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *DashboardMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/dashboard", mgr.Get)
}

type DashboardResp struct {
	// Role is the strongest workspace role the user holds anywhere;
	// it selects which view the aggregates describe. Empty when the
	// user has no workspace at all.
	Role           model.WorkspaceRole        `json:"role"`
	WorkspaceCount int                        `json:"workspaceCount"`
	ProjectCount   int64                      `json:"projectCount"`
	TasksByStatus  map[model.TaskStatus]int64 `json:"tasksByStatus"`
	OverdueCount   int64                      `json:"overdueCount"`
	DueSoonCount   int64                      `json:"dueSoonCount"`
	AssignedTasks  []TaskResp                 `json:"assignedTasks,omitempty"`
}

// Get godoc
// @Summary Role-dependent dashboard
// @Description Admin anywhere gets the admin view over admin workspaces, else pm, else the member view of assigned tasks
// @Tags Dashboard
// @Produce json
// @Security Bearer
// @Success 200 {object} resputil.Response[DashboardResp] "aggregates"
// @Router /dashboard [get]
func (mgr *DashboardMgr) Get(c *gin.Context) {
	token := util.GetToken(c)

	role, ok := rbac.HighestRole(mgr.db, token.UserID)
	if !ok {
		resputil.Success(c, DashboardResp{TasksByStatus: map[model.TaskStatus]int64{}})
		return
	}

	switch role {
	case model.WorkspaceRoleAdmin, model.WorkspaceRolePM:
		mgr.managerView(c, token.UserID, role)
	default:
		mgr.memberView(c, token.UserID)
	}
}

// managerView aggregates over the workspaces where the user holds the
// given role.
func (mgr *DashboardMgr) managerView(c *gin.Context, userID uint, role model.WorkspaceRole) {
	var workspaceIDs []uint
	err := mgr.db.Model(&model.WorkspaceMembership{}).
		Where("user_id = ? AND role = ?", userID, role).
		Pluck("workspace_id", &workspaceIDs).Error
	if err != nil {
		resputil.Error(c, "failed to load dashboard", resputil.NotSpecified)
		return
	}

	resp := DashboardResp{
		Role:           role,
		WorkspaceCount: len(workspaceIDs),
		TasksByStatus:  map[model.TaskStatus]int64{},
	}
	if len(workspaceIDs) == 0 {
		resputil.Success(c, resp)
		return
	}

	var projectIDs []uint
	err = mgr.db.Model(&model.Project{}).
		Where("workspace_id IN ?", workspaceIDs).
		Pluck("id", &projectIDs).Error
	if err != nil {
		resputil.Error(c, "failed to load dashboard", resputil.NotSpecified)
		return
	}
	resp.ProjectCount = int64(len(projectIDs))
	if len(projectIDs) == 0 {
		resputil.Success(c, resp)
		return
	}

	type statusCount struct {
		Status model.TaskStatus
		N      int64
	}
	var counts []statusCount
	err = mgr.db.Model(&model.Task{}).
		Select("status, COUNT(*) AS n").
		Where("project_id IN ?", projectIDs).
		Group("status").Scan(&counts).Error
	if err != nil {
		resputil.Error(c, "failed to load dashboard", resputil.NotSpecified)
		return
	}
	for _, sc := range counts {
		resp.TasksByStatus[sc.Status] = sc.N
	}

	today := time.Now().Format(dateLayout)
	weekOut := time.Now().AddDate(0, 0, 8).Format(dateLayout)
	openStatuses := []model.TaskStatus{model.TaskStatusTodo, model.TaskStatusInProgress}

	mgr.db.Model(&model.Task{}).
		Where("project_id IN ? AND status IN ? AND due_date < ?", projectIDs, openStatuses, today).
		Count(&resp.OverdueCount)
	mgr.db.Model(&model.Task{}).
		Where("project_id IN ? AND status IN ? AND due_date >= ? AND due_date < ?",
			projectIDs, openStatuses, today, weekOut).
		Count(&resp.DueSoonCount)

	resputil.Success(c, resp)
}

// memberView lists the user's assigned tasks across all workspaces.
func (mgr *DashboardMgr) memberView(c *gin.Context, userID uint) {
	var tasks []model.Task
	err := mgr.db.Preload("Assignees").
		Joins("JOIN task_assignees ON task_assignees.task_id = tasks.id").
		Where("task_assignees.user_id = ?", userID).
		Order("tasks.due_date ASC").Find(&tasks).Error
	if err != nil {
		resputil.Error(c, "failed to load dashboard", resputil.NotSpecified)
		return
	}

	resp := DashboardResp{
		Role:          model.WorkspaceRoleMember,
		TasksByStatus: map[model.TaskStatus]int64{},
		AssignedTasks: lo.Map(tasks, func(t model.Task, _ int) TaskResp {
			return toTaskResp(&t)
		}),
	}
	var workspaceIDs []uint
	mgr.db.Model(&model.WorkspaceMembership{}).
		Where("user_id = ?", userID).Pluck("workspace_id", &workspaceIDs)
	resp.WorkspaceCount = len(workspaceIDs)

	today := time.Now().Format(dateLayout)
	for i := range tasks {
		t := &tasks[i]
		resp.TasksByStatus[t.Status]++
		if t.Status.Open() && t.DueDate != nil &&
			time.Time(*t.DueDate).Format(dateLayout) < today {
			resp.OverdueCount++
		}
	}

	resputil.Success(c, resp)
}
