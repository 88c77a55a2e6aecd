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
	"github.com/flowboard-labs/flowboard/internal/payload"
	"github.com/flowboard-labs/flowboard/internal/resputil"
	"github.com/flowboard-labs/flowboard/internal/util"
	"github.com/flowboard-labs/flowboard/pkg/alert"
	"github.com/flowboard-labs/flowboard/pkg/logutils"
	"github.com/flowboard-labs/flowboard/pkg/rbac"
)

const defaultTaskPageSize = 50

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewTaskMgr)
}

type TaskMgr struct {
	name       string
	db         *gorm.DB
	dispatcher *alert.Dispatcher
}

func NewTaskMgr(conf RegisterConfig) Manager {
	return &TaskMgr{
		name:       "task",
		db:         conf.DB,
		dispatcher: conf.Dispatcher,
	}
}

func (mgr *TaskMgr) GetName() string { return mgr.name }

func (mgr *TaskMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *TaskMgr) RegisterProtected(g *gin.RouterGroup) {
	view := g.Group("/workspaces/:wid/tasks",
		middleware.RequireWorkspaceRole(mgr.db, model.WorkspaceRoleMember))
	view.GET("", mgr.List)
	view.GET("/:tid", mgr.Get)
	view.PUT("/:tid/status", mgr.UpdateStatus)
	view.POST("/:tid/comments", mgr.CommentTask)
	view.PUT("/:tid/subtasks/:stid/status", mgr.UpdateSubtaskStatus)
	view.POST("/:tid/subtasks/:stid/comments", mgr.CommentSubtask)

	manage := g.Group("/workspaces/:wid/tasks",
		middleware.RequireWorkspaceRole(mgr.db, model.WorkspaceRolePM))
	manage.POST("", mgr.Create)
	manage.PUT("/:tid", mgr.Update)
	manage.DELETE("/:tid", mgr.Delete)
	manage.POST("/:tid/subtasks", mgr.CreateSubtask)
	manage.PUT("/:tid/subtasks/:stid", mgr.UpdateSubtask)
	manage.DELETE("/:tid/subtasks/:stid", mgr.DeleteSubtask)
}

type (
	TaskReq struct {
		ProjectID   uint   `json:"projectID" binding:"required"`
		SprintID    *uint  `json:"sprintID"`
		Title       string `json:"title" binding:"required,max=200"`
		Description string `json:"description"`
		Status      string `json:"status"`
		DueDate     string `json:"dueDate"`
		AssigneeIDs []uint `json:"assigneeIDs"`
	}

	SubtaskReq struct {
		Title       string `json:"title" binding:"required,max=200"`
		Description string `json:"description"`
		Status      string `json:"status"`
		DueDate     string `json:"dueDate"`
		AssigneeIDs []uint `json:"assigneeIDs"`
	}

	StatusReq struct {
		Status string `json:"status" binding:"required"`
	}

	CommentReq struct {
		Content string `json:"content" binding:"required"`
	}

	AssigneeResp struct {
		UserID   uint   `json:"userID"`
		Username string `json:"username"`
	}

	TaskResp struct {
		ID        uint             `json:"id"`
		ProjectID uint             `json:"projectID"`
		SprintID  *uint            `json:"sprintID,omitempty"`
		Title     string           `json:"title"`
		Status    model.TaskStatus `json:"status"`
		DueDate   string           `json:"dueDate,omitempty"`
		Assignees []AssigneeResp   `json:"assignees"`
	}

	SubtaskResp struct {
		ID        uint             `json:"id"`
		Title     string           `json:"title"`
		Status    model.TaskStatus `json:"status"`
		DueDate   string           `json:"dueDate,omitempty"`
		Assignees []AssigneeResp   `json:"assignees"`
	}

	CommentResp struct {
		ID        uint      `json:"id"`
		UserID    uint      `json:"userID"`
		Username  string    `json:"username"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"createdAt"`
	}

	TaskDetailResp struct {
		TaskResp
		Description string        `json:"description"`
		Progress    int           `json:"progress"`
		Subtasks    []SubtaskResp `json:"subtasks"`
		Comments    []CommentResp `json:"comments"`
	}
)

// List godoc
// @Summary List tasks with optional filters and pagination
// @Tags Task
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param projectID query int false "filter by project"
// @Param sprintID query int false "filter by sprint"
// @Param status query string false "filter by status"
// @Param page_index query int false "page index, everything when absent"
// @Param page_size query int false "page size"
// @Success 200 {object} resputil.Response[payload.ListResp[TaskResp]] "tasks"
// @Router /workspaces/{wid}/tasks [get]
func (mgr *TaskMgr) List(c *gin.Context) {
	var page payload.ListReqQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	wid := util.GetWorkspaceID(c)

	q := mgr.db.Model(&model.Task{}).
		Joins("JOIN projects ON projects.id = tasks.project_id").
		Where("projects.workspace_id = ? AND projects.deleted_at IS NULL", wid)
	if pid := c.Query("projectID"); pid != "" {
		q = q.Where("tasks.project_id = ?", pid)
	}
	if sid := c.Query("sprintID"); sid != "" {
		q = q.Where("tasks.sprint_id = ?", sid)
	}
	if status := c.Query("status"); status != "" {
		if !model.TaskStatus(status).Valid() {
			resputil.BadRequestError(c, "unknown status filter")
			return
		}
		q = q.Where("tasks.status = ?", status)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		resputil.Error(c, "failed to list tasks", resputil.NotSpecified)
		return
	}
	if page.PageIndex != nil {
		offset, limit := page.Window(defaultTaskPageSize)
		q = q.Offset(offset).Limit(limit)
	}

	var tasks []model.Task
	if err := q.Preload("Assignees").Order("tasks.created_at ASC").Find(&tasks).Error; err != nil {
		resputil.Error(c, "failed to list tasks", resputil.NotSpecified)
		return
	}

	resputil.Success(c, payload.ListResp[TaskResp]{
		Rows:  lo.Map(tasks, func(t model.Task, _ int) TaskResp { return toTaskResp(&t) }),
		Count: count,
	})
}

// Get godoc
// @Summary Task detail with subtasks, comments and progress
// @Description Progress is the share of done subtasks; zero when there are none
// @Tags Task
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param tid path int true "task id"
// @Success 200 {object} resputil.Response[TaskDetailResp] "task detail"
// @Router /workspaces/{wid}/tasks/{tid} [get]
func (mgr *TaskMgr) Get(c *gin.Context) {
	task, ok := mgr.taskFromPath(c)
	if !ok {
		return
	}

	var subtasks []model.Subtask
	if err := mgr.db.Preload("Assignees").Where("task_id = ?", task.ID).
		Order("created_at ASC").Find(&subtasks).Error; err != nil {
		resputil.Error(c, "failed to load subtasks", resputil.NotSpecified)
		return
	}
	var comments []model.Comment
	if err := mgr.db.Preload("User").Where("task_id = ?", task.ID).
		Order("created_at ASC").Find(&comments).Error; err != nil {
		resputil.Error(c, "failed to load comments", resputil.NotSpecified)
		return
	}

	done := lo.CountBy(subtasks, func(s model.Subtask) bool {
		return s.Status == model.TaskStatusDone
	})

	resputil.Success(c, TaskDetailResp{
		TaskResp:    toTaskResp(task),
		Description: task.Description,
		Progress:    model.ProgressPercentage(int64(done), int64(len(subtasks))),
		Subtasks: lo.Map(subtasks, func(s model.Subtask, _ int) SubtaskResp {
			return toSubtaskResp(&s)
		}),
		Comments: lo.Map(comments, func(cm model.Comment, _ int) CommentResp {
			return CommentResp{
				ID:        cm.ID,
				UserID:    cm.UserID,
				Username:  cm.User.Username,
				Content:   cm.Content,
				CreatedAt: cm.CreatedAt,
			}
		}),
	})
}

// Create godoc
// @Summary Create a task
// @Description Assignees must be workspace members; each one is notified
// @Tags Task
// @Accept json
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param data body TaskReq true "task"
// @Success 200 {object} resputil.Response[TaskResp] "created task"
// @Router /workspaces/{wid}/tasks [post]
func (mgr *TaskMgr) Create(c *gin.Context) {
	var req TaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	wid := util.GetWorkspaceID(c)
	token := util.GetToken(c)

	var project model.Project
	err := mgr.db.Where("id = ? AND workspace_id = ?", req.ProjectID, wid).
		First(&project).Error
	if err != nil {
		resputil.Error(c, "project not found", resputil.NotFound)
		return
	}
	status, due, sprintID, ok := mgr.validateTaskFields(c, &project, req.Status, req.DueDate, req.SprintID)
	if !ok {
		return
	}
	assignees, ok := mgr.resolveAssignees(c, wid, req.AssigneeIDs)
	if !ok {
		return
	}

	task := model.Task{
		ProjectID:   project.ID,
		SprintID:    sprintID,
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		DueDate:     due,
		CreatedByID: token.UserID,
	}
	err = mgr.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		return tx.Model(&task).Association("Assignees").Replace(assignees)
	})
	if err != nil {
		logutils.Log.Error("create task: ", err)
		resputil.Error(c, "failed to create task", resputil.NotSpecified)
		return
	}

	mgr.notifyTaskAssignees(&task, &project, assignees, nil)
	task.Assignees = derefUsers(assignees)
	resputil.Success(c, toTaskResp(&task))
}

// Update godoc
// @Summary Edit a task
// @Description Newly added assignees are notified
// @Tags Task
// @Accept json
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param tid path int true "task id"
// @Param data body TaskReq true "new values"
// @Success 200 {object} resputil.Response[TaskResp] "updated task"
// @Router /workspaces/{wid}/tasks/{tid} [put]
func (mgr *TaskMgr) Update(c *gin.Context) {
	var req TaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	task, ok := mgr.taskFromPath(c)
	if !ok {
		return
	}
	wid := util.GetWorkspaceID(c)

	var project model.Project
	if err := mgr.db.First(&project, task.ProjectID).Error; err != nil {
		resputil.Error(c, "project not found", resputil.NotFound)
		return
	}
	status, due, sprintID, ok := mgr.validateTaskFields(c, &project, req.Status, req.DueDate, req.SprintID)
	if !ok {
		return
	}
	assignees, ok := mgr.resolveAssignees(c, wid, req.AssigneeIDs)
	if !ok {
		return
	}
	previous := lo.Map(task.Assignees, func(u model.User, _ int) uint { return u.ID })

	task.Title = req.Title
	task.Description = req.Description
	task.Status = status
	task.DueDate = due
	task.SprintID = sprintID
	err := mgr.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(task).Error; err != nil {
			return err
		}
		return tx.Model(task).Association("Assignees").Replace(assignees)
	})
	if err != nil {
		logutils.Log.Error("update task: ", err)
		resputil.Error(c, "failed to update task", resputil.NotSpecified)
		return
	}

	mgr.notifyTaskAssignees(task, &project, assignees, previous)
	task.Assignees = derefUsers(assignees)
	resputil.Success(c, toTaskResp(task))
}

// Delete godoc
// @Summary Delete a task with its subtasks and comments
// @Tags Task
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param tid path int true "task id"
// @Success 200 {object} resputil.Response[any] "deleted"
// @Router /workspaces/{wid}/tasks/{tid} [delete]
func (mgr *TaskMgr) Delete(c *gin.Context) {
	task, ok := mgr.taskFromPath(c)
	if !ok {
		return
	}

	err := mgr.db.Transaction(func(tx *gorm.DB) error {
		var subtaskIDs []uint
		if err := tx.Model(&model.Subtask{}).Where("task_id = ?", task.ID).
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
		if err := tx.Where("task_id = ?", task.ID).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM task_assignees WHERE task_id = ?", task.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Task{}, task.ID).Error
	})
	if err != nil {
		logutils.Log.Error("delete task: ", err)
		resputil.Error(c, "failed to delete task", resputil.NotSpecified)
		return
	}
	resputil.Success(c, "task deleted")
}

// UpdateStatus godoc
// @Summary Update a task's status
// @Description Allowed for pm and admin, and for members currently assigned to the task
// @Tags Task
// @Accept json
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param tid path int true "task id"
// @Param data body StatusReq true "new status"
// @Success 200 {object} resputil.Response[any] "updated"
// @Failure 403 {object} resputil.Response[any] "not a manager or assignee"
// @Router /workspaces/{wid}/tasks/{tid}/status [put]
func (mgr *TaskMgr) UpdateStatus(c *gin.Context) {
	var req StatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	status := model.TaskStatus(req.Status)
	if !status.Valid() {
		resputil.BadRequestError(c, "unknown status")
		return
	}
	task, ok := mgr.taskFromPath(c)
	if !ok {
		return
	}
	token := util.GetToken(c)

	if !rbac.CanTouchTask(mgr.db, token.UserID, util.GetWorkspaceID(c), task.ID) {
		resputil.Error(c, "only managers or assignees may update the status", resputil.NotAllowed)
		return
	}

	if err := mgr.db.Model(task).Update("status", status).Error; err != nil {
		resputil.Error(c, "failed to update status", resputil.NotSpecified)
		return
	}
	resputil.Success(c, "status updated")
}

// CommentTask godoc
// @Summary Comment on a task
// @Tags Task
// @Accept json
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param tid path int true "task id"
// @Param data body CommentReq true "comment"
// @Success 200 {object} resputil.Response[CommentResp] "created comment"
// @Router /workspaces/{wid}/tasks/{tid}/comments [post]
func (mgr *TaskMgr) CommentTask(c *gin.Context) {
	task, ok := mgr.taskFromPath(c)
	if !ok {
		return
	}
	mgr.createComment(c, &task.ID, nil)
}

// CreateSubtask godoc
// @Summary Create a subtask
// @Tags Subtask
// @Accept json
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param tid path int true "task id"
// @Param data body SubtaskReq true "subtask"
// @Success 200 {object} resputil.Response[SubtaskResp] "created subtask"
// @Router /workspaces/{wid}/tasks/{tid}/subtasks [post]
func (mgr *TaskMgr) CreateSubtask(c *gin.Context) {
	var req SubtaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	task, ok := mgr.taskFromPath(c)
	if !ok {
		return
	}
	wid := util.GetWorkspaceID(c)
	token := util.GetToken(c)

	status, due, ok := mgr.validateStatusAndDue(c, req.Status, req.DueDate)
	if !ok {
		return
	}
	assignees, ok := mgr.resolveAssignees(c, wid, req.AssigneeIDs)
	if !ok {
		return
	}

	subtask := model.Subtask{
		TaskID:      task.ID,
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		DueDate:     due,
		CreatedByID: token.UserID,
	}
	err := mgr.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&subtask).Error; err != nil {
			return err
		}
		return tx.Model(&subtask).Association("Assignees").Replace(assignees)
	})
	if err != nil {
		logutils.Log.Error("create subtask: ", err)
		resputil.Error(c, "failed to create subtask", resputil.NotSpecified)
		return
	}

	for _, user := range assignees {
		mgr.dispatcher.SubtaskAssigned(user, &subtask, task.Title)
	}
	subtask.Assignees = derefUsers(assignees)
	resputil.Success(c, toSubtaskResp(&subtask))
}

// UpdateSubtask godoc
// @Summary Edit a subtask
// @Tags Subtask
// @Accept json
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param tid path int true "task id"
// @Param stid path int true "subtask id"
// @Param data body SubtaskReq true "new values"
// @Success 200 {object} resputil.Response[SubtaskResp] "updated subtask"
// @Router /workspaces/{wid}/tasks/{tid}/subtasks/{stid} [put]
func (mgr *TaskMgr) UpdateSubtask(c *gin.Context) {
	var req SubtaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	task, subtask, ok := mgr.subtaskFromPath(c)
	if !ok {
		return
	}
	wid := util.GetWorkspaceID(c)

	status, due, ok := mgr.validateStatusAndDue(c, req.Status, req.DueDate)
	if !ok {
		return
	}
	assignees, ok := mgr.resolveAssignees(c, wid, req.AssigneeIDs)
	if !ok {
		return
	}
	previous := lo.Map(subtask.Assignees, func(u model.User, _ int) uint { return u.ID })

	subtask.Title = req.Title
	subtask.Description = req.Description
	subtask.Status = status
	subtask.DueDate = due
	err := mgr.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(subtask).Error; err != nil {
			return err
		}
		return tx.Model(subtask).Association("Assignees").Replace(assignees)
	})
	if err != nil {
		logutils.Log.Error("update subtask: ", err)
		resputil.Error(c, "failed to update subtask", resputil.NotSpecified)
		return
	}

	for _, user := range assignees {
		if !lo.Contains(previous, user.ID) {
			mgr.dispatcher.SubtaskAssigned(user, subtask, task.Title)
		}
	}
	subtask.Assignees = derefUsers(assignees)
	resputil.Success(c, toSubtaskResp(subtask))
}

// DeleteSubtask godoc
// @Summary Delete a subtask and its comments
// @Tags Subtask
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param tid path int true "task id"
// @Param stid path int true "subtask id"
// @Success 200 {object} resputil.Response[any] "deleted"
// @Router /workspaces/{wid}/tasks/{tid}/subtasks/{stid} [delete]
func (mgr *TaskMgr) DeleteSubtask(c *gin.Context) {
	_, subtask, ok := mgr.subtaskFromPath(c)
	if !ok {
		return
	}

	err := mgr.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subtask_id = ?", subtask.ID).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM subtask_assignees WHERE subtask_id = ?",
			subtask.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Subtask{}, subtask.ID).Error
	})
	if err != nil {
		resputil.Error(c, "failed to delete subtask", resputil.NotSpecified)
		return
	}
	resputil.Success(c, "subtask deleted")
}

// UpdateSubtaskStatus godoc
// @Summary Update a subtask's status
// @Description Allowed for pm and admin, and for members assigned to the subtask
// @Tags Subtask
// @Accept json
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param tid path int true "task id"
// @Param stid path int true "subtask id"
// @Param data body StatusReq true "new status"
// @Success 200 {object} resputil.Response[any] "updated"
// @Router /workspaces/{wid}/tasks/{tid}/subtasks/{stid}/status [put]
func (mgr *TaskMgr) UpdateSubtaskStatus(c *gin.Context) {
	var req StatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	status := model.TaskStatus(req.Status)
	if !status.Valid() {
		resputil.BadRequestError(c, "unknown status")
		return
	}
	_, subtask, ok := mgr.subtaskFromPath(c)
	if !ok {
		return
	}
	token := util.GetToken(c)

	if !rbac.CanTouchSubtask(mgr.db, token.UserID, util.GetWorkspaceID(c), subtask.ID) {
		resputil.Error(c, "only managers or assignees may update the status", resputil.NotAllowed)
		return
	}

	if err := mgr.db.Model(subtask).Update("status", status).Error; err != nil {
		resputil.Error(c, "failed to update status", resputil.NotSpecified)
		return
	}
	resputil.Success(c, "status updated")
}

// CommentSubtask godoc
// @Summary Comment on a subtask
// @Tags Subtask
// @Accept json
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param tid path int true "task id"
// @Param stid path int true "subtask id"
// @Param data body CommentReq true "comment"
// @Success 200 {object} resputil.Response[CommentResp] "created comment"
// @Router /workspaces/{wid}/tasks/{tid}/subtasks/{stid}/comments [post]
func (mgr *TaskMgr) CommentSubtask(c *gin.Context) {
	_, subtask, ok := mgr.subtaskFromPath(c)
	if !ok {
		return
	}
	mgr.createComment(c, nil, &subtask.ID)
}

func (mgr *TaskMgr) createComment(c *gin.Context, taskID, subtaskID *uint) {
	var req CommentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)

	comment := model.Comment{
		TaskID:    taskID,
		SubtaskID: subtaskID,
		UserID:    token.UserID,
		Content:   req.Content,
	}
	if err := mgr.db.Create(&comment).Error; err != nil {
		resputil.Error(c, "failed to create comment", resputil.NotSpecified)
		return
	}

	resputil.Success(c, CommentResp{
		ID:        comment.ID,
		UserID:    comment.UserID,
		Username:  token.Username,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	})
}

// notifyTaskAssignees fires assignment events for users not in the
// previous assignee set.
func (mgr *TaskMgr) notifyTaskAssignees(task *model.Task, project *model.Project,
	assignees []*model.User, previous []uint) {
	var workspace model.Workspace
	_ = mgr.db.First(&workspace, project.WorkspaceID).Error
	for _, user := range assignees {
		if !lo.Contains(previous, user.ID) {
			mgr.dispatcher.TaskAssigned(user, task, project.Name, workspace.Name)
		}
	}
}

// resolveAssignees loads the users and checks each one is a member of
// the workspace.
func (mgr *TaskMgr) resolveAssignees(c *gin.Context, wid uint, ids []uint) ([]*model.User, bool) {
	assignees := make([]*model.User, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		if _, member := rbac.RoleOf(mgr.db, id, wid); !member {
			resputil.BadRequestError(c, "assignee is not a workspace member")
			return nil, false
		}
		var user model.User
		if err := mgr.db.First(&user, id).Error; err != nil {
			resputil.BadRequestError(c, "assignee not found")
			return nil, false
		}
		assignees = append(assignees, &user)
	}
	return assignees, true
}

func (mgr *TaskMgr) validateStatusAndDue(c *gin.Context, status, dueDate string) (
	model.TaskStatus, *datatypes.Date, bool) {
	st := model.TaskStatusTodo
	if status != "" {
		st = model.TaskStatus(status)
		if !st.Valid() {
			resputil.BadRequestError(c, "unknown status")
			return "", nil, false
		}
	}
	var due *datatypes.Date
	if dueDate != "" {
		t, err := time.Parse(dateLayout, dueDate)
		if err != nil {
			resputil.BadRequestError(c, "invalid due date, expected YYYY-MM-DD")
			return "", nil, false
		}
		d := datatypes.Date(t)
		due = &d
	}
	return st, due, true
}

// validateTaskFields additionally checks that the sprint, when given,
// belongs to the task's project.
func (mgr *TaskMgr) validateTaskFields(c *gin.Context, project *model.Project,
	status, dueDate string, sprintID *uint) (model.TaskStatus, *datatypes.Date, *uint, bool) {
	st, due, ok := mgr.validateStatusAndDue(c, status, dueDate)
	if !ok {
		return "", nil, nil, false
	}
	if sprintID != nil {
		var n int64
		mgr.db.Model(&model.Sprint{}).
			Where("id = ? AND project_id = ?", *sprintID, project.ID).Count(&n)
		if n == 0 {
			resputil.BadRequestError(c, "sprint does not belong to the project")
			return "", nil, nil, false
		}
	}
	return st, due, sprintID, true
}

func (mgr *TaskMgr) taskFromPath(c *gin.Context) (*model.Task, bool) {
	tid, err := strconv.ParseUint(c.Param("tid"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid task id")
		return nil, false
	}
	wid := util.GetWorkspaceID(c)

	var task model.Task
	err = mgr.db.Preload("Assignees").
		Joins("JOIN projects ON projects.id = tasks.project_id").
		Where("tasks.id = ? AND projects.workspace_id = ?", tid, wid).
		First(&task).Error
	if err != nil {
		resputil.Error(c, "task not found", resputil.NotFound)
		return nil, false
	}
	return &task, true
}

func (mgr *TaskMgr) subtaskFromPath(c *gin.Context) (*model.Task, *model.Subtask, bool) {
	task, ok := mgr.taskFromPath(c)
	if !ok {
		return nil, nil, false
	}
	stid, err := strconv.ParseUint(c.Param("stid"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid subtask id")
		return nil, nil, false
	}

	var subtask model.Subtask
	err = mgr.db.Preload("Assignees").
		Where("id = ? AND task_id = ?", stid, task.ID).First(&subtask).Error
	if err != nil {
		resputil.Error(c, "subtask not found", resputil.NotFound)
		return nil, nil, false
	}
	return task, &subtask, true
}

func derefUsers(users []*model.User) []model.User {
	return lo.Map(users, func(u *model.User, _ int) model.User { return *u })
}

func toTaskResp(t *model.Task) TaskResp {
	resp := TaskResp{
		ID:        t.ID,
		ProjectID: t.ProjectID,
		SprintID:  t.SprintID,
		Title:     t.Title,
		Status:    t.Status,
		Assignees: lo.Map(t.Assignees, func(u model.User, _ int) AssigneeResp {
			return AssigneeResp{UserID: u.ID, Username: u.Username}
		}),
	}
	if t.DueDate != nil {
		resp.DueDate = time.Time(*t.DueDate).Format(dateLayout)
	}
	return resp
}

func toSubtaskResp(s *model.Subtask) SubtaskResp {
	resp := SubtaskResp{
		ID:     s.ID,
		Title:  s.Title,
		Status: s.Status,
		Assignees: lo.Map(s.Assignees, func(u model.User, _ int) AssigneeResp {
			return AssigneeResp{UserID: u.ID, Username: u.Username}
		}),
	}
	if s.DueDate != nil {
		resp.DueDate = time.Time(*s.DueDate).Format(dateLayout)
	}
	return resp
}
