package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/flowboard-labs/flowboard/dao/model"
	"github.com/flowboard-labs/flowboard/internal/middleware"
	"github.com/flowboard-labs/flowboard/internal/resputil"
	"github.com/flowboard-labs/flowboard/internal/util"
	"github.com/flowboard-labs/flowboard/pkg/logutils"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewProjectMgr)
}

type ProjectMgr struct {
	name string
	db   *gorm.DB
}

func NewProjectMgr(conf RegisterConfig) Manager {
	return &ProjectMgr{name: "project", db: conf.DB}
}

func (mgr *ProjectMgr) GetName() string { return mgr.name }

func (mgr *ProjectMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *ProjectMgr) RegisterProtected(g *gin.RouterGroup) {
	view := g.Group("/workspaces/:wid/projects",
		middleware.RequireWorkspaceRole(mgr.db, model.WorkspaceRoleMember))
	view.GET("", mgr.List)
	view.GET("/:pid", mgr.Get)

	manage := g.Group("/workspaces/:wid/projects",
		middleware.RequireWorkspaceRole(mgr.db, model.WorkspaceRolePM))
	manage.POST("", mgr.Create)
	manage.PUT("/:pid", mgr.Update)
	manage.DELETE("/:pid", mgr.Delete)
	manage.POST("/:pid/sprints", mgr.CreateSprint)
	manage.PUT("/:pid/sprints/:sid", mgr.UpdateSprint)
	manage.DELETE("/:pid/sprints/:sid", mgr.DeleteSprint)
}

const dateLayout = "2006-01-02"

type (
	ProjectReq struct {
		Name        string `json:"name" binding:"required,max=200"`
		Description string `json:"description"`
	}

	ProjectResp struct {
		ID          uint      `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description"`
		Progress    int       `json:"progress"`
		TaskCount   int64     `json:"taskCount"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	ProjectDetailResp struct {
		ProjectResp
		Sprints []SprintResp `json:"sprints"`
	}

	SprintReq struct {
		Name      string `json:"name" binding:"required,max=200"`
		StartDate string `json:"startDate" binding:"required"`
		EndDate   string `json:"endDate" binding:"required"`
	}

	SprintResp struct {
		ID        uint               `json:"id"`
		Name      string             `json:"name"`
		StartDate string             `json:"startDate"`
		EndDate   string             `json:"endDate"`
		Status    model.SprintStatus `json:"status"`
	}
)

// List godoc
// @Summary List projects with progress
// @Tags Project
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Success 200 {object} resputil.Response[[]ProjectResp] "projects"
// @Router /workspaces/{wid}/projects [get]
func (mgr *ProjectMgr) List(c *gin.Context) {
	wid := util.GetWorkspaceID(c)

	var projects []model.Project
	err := mgr.db.Where("workspace_id = ?", wid).
		Order("created_at ASC").Find(&projects).Error
	if err != nil {
		resputil.Error(c, "failed to list projects", resputil.NotSpecified)
		return
	}

	resp := lo.Map(projects, func(p model.Project, _ int) ProjectResp {
		return mgr.projectResp(&p)
	})
	resputil.Success(c, resp)
}

// Get godoc
// @Summary Project detail with sprints and progress
// @Tags Project
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param pid path int true "project id"
// @Success 200 {object} resputil.Response[ProjectDetailResp] "project detail"
// @Router /workspaces/{wid}/projects/{pid} [get]
func (mgr *ProjectMgr) Get(c *gin.Context) {
	project, ok := mgr.projectFromPath(c)
	if !ok {
		return
	}

	var sprints []model.Sprint
	err := mgr.db.Where("project_id = ?", project.ID).
		Order("start_date ASC").Find(&sprints).Error
	if err != nil {
		resputil.Error(c, "failed to load sprints", resputil.NotSpecified)
		return
	}

	resputil.Success(c, ProjectDetailResp{
		ProjectResp: mgr.projectResp(project),
		Sprints: lo.Map(sprints, func(s model.Sprint, _ int) SprintResp {
			return toSprintResp(&s)
		}),
	})
}

// Create godoc
// @Summary Create a project
// @Tags Project
// @Accept json
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param data body ProjectReq true "project"
// @Success 200 {object} resputil.Response[ProjectResp] "created project"
// @Router /workspaces/{wid}/projects [post]
func (mgr *ProjectMgr) Create(c *gin.Context) {
	var req ProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)

	project := model.Project{
		WorkspaceID: util.GetWorkspaceID(c),
		Name:        req.Name,
		Description: req.Description,
		CreatedByID: token.UserID,
	}
	if err := mgr.db.Create(&project).Error; err != nil {
		logutils.Log.Error("create project: ", err)
		resputil.Error(c, "failed to create project", resputil.NotSpecified)
		return
	}
	resputil.Success(c, mgr.projectResp(&project))
}

// Update godoc
// @Summary Edit project name and description
// @Tags Project
// @Accept json
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param pid path int true "project id"
// @Param data body ProjectReq true "new values"
// @Success 200 {object} resputil.Response[any] "updated"
// @Router /workspaces/{wid}/projects/{pid} [put]
func (mgr *ProjectMgr) Update(c *gin.Context) {
	var req ProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	project, ok := mgr.projectFromPath(c)
	if !ok {
		return
	}

	err := mgr.db.Model(project).
		Updates(map[string]any{"name": req.Name, "description": req.Description}).Error
	if err != nil {
		resputil.Error(c, "failed to update project", resputil.NotSpecified)
		return
	}
	resputil.Success(c, "project updated")
}

// Delete godoc
// @Summary Delete a project and its sprints and tasks
// @Tags Project
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param pid path int true "project id"
// @Success 200 {object} resputil.Response[any] "deleted"
// @Router /workspaces/{wid}/projects/{pid} [delete]
func (mgr *ProjectMgr) Delete(c *gin.Context) {
	project, ok := mgr.projectFromPath(c)
	if !ok {
		return
	}

	err := mgr.db.Transaction(func(tx *gorm.DB) error {
		return cascadeDeleteProject(tx, project.ID)
	})
	if err != nil {
		logutils.Log.Error("delete project: ", err)
		resputil.Error(c, "failed to delete project", resputil.NotSpecified)
		return
	}
	resputil.Success(c, "project deleted")
}

func cascadeDeleteProject(tx *gorm.DB, pid uint) error {
	var taskIDs []uint
	if err := tx.Model(&model.Task{}).Where("project_id = ?", pid).
		Pluck("id", &taskIDs).Error; err != nil {
		return err
	}
	if len(taskIDs) > 0 {
		var subtaskIDs []uint
		if err := tx.Model(&model.Subtask{}).Where("task_id IN ?", taskIDs).
			Pluck("id", &subtaskIDs).Error; err != nil {
			return err
		}
		if len(subtaskIDs) > 0 {
			if err := tx.Where("subtask_id IN ?", subtaskIDs).
				Delete(&model.Comment{}).Error; err != nil {
				return err
			}
			if err := tx.Exec("DELETE FROM subtask_assignees WHERE subtask_id IN ?",
				subtaskIDs).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", subtaskIDs).Delete(&model.Subtask{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("task_id IN ?", taskIDs).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM task_assignees WHERE task_id IN ?",
			taskIDs).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", taskIDs).Delete(&model.Task{}).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("project_id = ?", pid).Delete(&model.Sprint{}).Error; err != nil {
		return err
	}
	return tx.Delete(&model.Project{}, pid).Error
}

// CreateSprint godoc
// @Summary Create a sprint in the project
// @Description Dates use YYYY-MM-DD; the start must not be after the end
// @Tags Sprint
// @Accept json
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param pid path int true "project id"
// @Param data body SprintReq true "sprint"
// @Success 200 {object} resputil.Response[SprintResp] "created sprint"
// @Router /workspaces/{wid}/projects/{pid}/sprints [post]
func (mgr *ProjectMgr) CreateSprint(c *gin.Context) {
	project, ok := mgr.projectFromPath(c)
	if !ok {
		return
	}
	req, start, end, ok := bindSprintReq(c)
	if !ok {
		return
	}

	sprint := model.Sprint{
		ProjectID: project.ID,
		Name:      req.Name,
		StartDate: datatypes.Date(start),
		EndDate:   datatypes.Date(end),
		Status:    sprintStatusFor(start, end, time.Now()),
	}
	if err := mgr.db.Create(&sprint).Error; err != nil {
		logutils.Log.Error("create sprint: ", err)
		resputil.Error(c, "failed to create sprint", resputil.NotSpecified)
		return
	}
	resputil.Success(c, toSprintResp(&sprint))
}

// UpdateSprint godoc
// @Summary Edit a sprint
// @Tags Sprint
// @Accept json
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param pid path int true "project id"
// @Param sid path int true "sprint id"
// @Param data body SprintReq true "new values"
// @Success 200 {object} resputil.Response[SprintResp] "updated sprint"
// @Router /workspaces/{wid}/projects/{pid}/sprints/{sid} [put]
func (mgr *ProjectMgr) UpdateSprint(c *gin.Context) {
	sprint, ok := mgr.sprintFromPath(c)
	if !ok {
		return
	}
	req, start, end, ok := bindSprintReq(c)
	if !ok {
		return
	}

	sprint.Name = req.Name
	sprint.StartDate = datatypes.Date(start)
	sprint.EndDate = datatypes.Date(end)
	sprint.Status = sprintStatusFor(start, end, time.Now())
	if err := mgr.db.Save(sprint).Error; err != nil {
		resputil.Error(c, "failed to update sprint", resputil.NotSpecified)
		return
	}
	resputil.Success(c, toSprintResp(sprint))
}

// DeleteSprint godoc
// @Summary Delete a sprint
// @Description Tasks in the sprint stay in the project, unscheduled
// @Tags Sprint
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param pid path int true "project id"
// @Param sid path int true "sprint id"
// @Success 200 {object} resputil.Response[any] "deleted"
// @Router /workspaces/{wid}/projects/{pid}/sprints/{sid} [delete]
func (mgr *ProjectMgr) DeleteSprint(c *gin.Context) {
	sprint, ok := mgr.sprintFromPath(c)
	if !ok {
		return
	}

	err := mgr.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Task{}).Where("sprint_id = ?", sprint.ID).
			Update("sprint_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Sprint{}, sprint.ID).Error
	})
	if err != nil {
		resputil.Error(c, "failed to delete sprint", resputil.NotSpecified)
		return
	}
	resputil.Success(c, "sprint deleted")
}

func (mgr *ProjectMgr) projectResp(p *model.Project) ProjectResp {
	var total, done int64
	mgr.db.Model(&model.Task{}).Where("project_id = ?", p.ID).Count(&total)
	mgr.db.Model(&model.Task{}).
		Where("project_id = ? AND status = ?", p.ID, model.TaskStatusDone).Count(&done)

	return ProjectResp{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Progress:    model.ProgressPercentage(done, total),
		TaskCount:   total,
		CreatedAt:   p.CreatedAt,
	}
}

func (mgr *ProjectMgr) projectFromPath(c *gin.Context) (*model.Project, bool) {
	pid, err := strconv.ParseUint(c.Param("pid"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid project id")
		return nil, false
	}

	var project model.Project
	err = mgr.db.Where("id = ? AND workspace_id = ?", pid, util.GetWorkspaceID(c)).
		First(&project).Error
	if err != nil {
		resputil.Error(c, "project not found", resputil.NotFound)
		return nil, false
	}
	return &project, true
}

func (mgr *ProjectMgr) sprintFromPath(c *gin.Context) (*model.Sprint, bool) {
	project, ok := mgr.projectFromPath(c)
	if !ok {
		return nil, false
	}
	sid, err := strconv.ParseUint(c.Param("sid"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid sprint id")
		return nil, false
	}

	var sprint model.Sprint
	err = mgr.db.Where("id = ? AND project_id = ?", sid, project.ID).First(&sprint).Error
	if err != nil {
		resputil.Error(c, "sprint not found", resputil.NotFound)
		return nil, false
	}
	return &sprint, true
}

func bindSprintReq(c *gin.Context) (req SprintReq, start, end time.Time, ok bool) {
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return req, start, end, false
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		resputil.BadRequestError(c, "invalid start date, expected YYYY-MM-DD")
		return req, start, end, false
	}
	end, err = time.Parse(dateLayout, req.EndDate)
	if err != nil {
		resputil.BadRequestError(c, "invalid end date, expected YYYY-MM-DD")
		return req, start, end, false
	}
	if start.After(end) {
		resputil.BadRequestError(c, "start date must not be after end date")
		return req, start, end, false
	}
	return req, start, end, true
}

// sprintStatusFor derives the status from the date range: upcoming
// before the start, completed after the end, active in between.
func sprintStatusFor(start, end, now time.Time) model.SprintStatus {
	today := now.Format(dateLayout)
	switch {
	case today < start.Format(dateLayout):
		return model.SprintStatusUpcoming
	case today > end.Format(dateLayout):
		return model.SprintStatusCompleted
	default:
		return model.SprintStatusActive
	}
}

func toSprintResp(s *model.Sprint) SprintResp {
	return SprintResp{
		ID:        s.ID,
		Name:      s.Name,
		StartDate: time.Time(s.StartDate).Format(dateLayout),
		EndDate:   time.Time(s.EndDate).Format(dateLayout),
		Status:    s.Status,
	}
}
