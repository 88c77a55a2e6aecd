package handler

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/flowboard-labs/flowboard/dao/model"
	"github.com/flowboard-labs/flowboard/internal/middleware"
	"github.com/flowboard-labs/flowboard/internal/resputil"
	"github.com/flowboard-labs/flowboard/internal/util"
	"github.com/flowboard-labs/flowboard/pkg/config"
	"github.com/flowboard-labs/flowboard/pkg/logutils"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewFileMgr)
}

type FileMgr struct {
	name      string
	db        *gorm.DB
	uploadDir string
}

func NewFileMgr(conf RegisterConfig) Manager {
	return &FileMgr{
		name:      "file",
		db:        conf.DB,
		uploadDir: config.GetConfig().Storage.UploadDir,
	}
}

func (mgr *FileMgr) GetName() string { return mgr.name }

func (mgr *FileMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *FileMgr) RegisterProtected(g *gin.RouterGroup) {
	view := g.Group("/workspaces/:wid/files",
		middleware.RequireWorkspaceRole(mgr.db, model.WorkspaceRoleMember))
	view.GET("", mgr.List)
	view.GET("/:fid/download", mgr.Download)

	admin := g.Group("/workspaces/:wid/files",
		middleware.RequireWorkspaceRole(mgr.db, model.WorkspaceRoleAdmin))
	admin.POST("/upload", mgr.Upload)
	admin.POST("/link", mgr.AddLink)
	admin.DELETE("/:fid", mgr.Delete)
}

type (
	AddLinkReq struct {
		Name string `json:"name" binding:"required,max=200"`
		URL  string `json:"url" binding:"required,url"`
	}

	FileResp struct {
		ID         uint           `json:"id"`
		Name       string         `json:"name"`
		Kind       model.FileKind `json:"kind"`
		URL        string         `json:"url,omitempty"`
		Size       int64          `json:"size,omitempty"`
		UploadedBy uint           `json:"uploadedBy"`
		CreatedAt  time.Time      `json:"createdAt"`
	}
)

// List godoc
// @Summary List workspace files and links
// @Tags File
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Success 200 {object} resputil.Response[[]FileResp] "files"
// @Router /workspaces/{wid}/files [get]
func (mgr *FileMgr) List(c *gin.Context) {
	wid := util.GetWorkspaceID(c)

	var files []model.WorkspaceFile
	err := mgr.db.Where("workspace_id = ?", wid).
		Order("created_at DESC").Find(&files).Error
	if err != nil {
		resputil.Error(c, "failed to list files", resputil.NotSpecified)
		return
	}

	resp := lo.Map(files, func(f model.WorkspaceFile, _ int) FileResp {
		return FileResp{
			ID:         f.ID,
			Name:       f.Name,
			Kind:       f.Kind,
			URL:        f.URL,
			Size:       f.Size,
			UploadedBy: f.UploadedByID,
			CreatedAt:  f.CreatedAt,
		}
	})
	resputil.Success(c, resp)
}

// Upload godoc
// @Summary Upload a file into the workspace
// @Description The file is stored under a generated object name
// @Tags File
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param file formData file true "file"
// @Success 200 {object} resputil.Response[FileResp] "stored file"
// @Router /workspaces/{wid}/files/upload [post]
func (mgr *FileMgr) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		resputil.BadRequestError(c, "missing file")
		return
	}
	wid := util.GetWorkspaceID(c)
	token := util.GetToken(c)

	objectName := uuid.NewString() + filepath.Ext(header.Filename)
	if err := os.MkdirAll(mgr.uploadDir, 0o755); err != nil {
		logutils.Log.Error("create upload dir: ", err)
		resputil.Error(c, "failed to store file", resputil.NotSpecified)
		return
	}
	dst := filepath.Join(mgr.uploadDir, objectName)
	if err := c.SaveUploadedFile(header, dst); err != nil {
		logutils.Log.Error("save upload: ", err)
		resputil.Error(c, "failed to store file", resputil.NotSpecified)
		return
	}

	file := model.WorkspaceFile{
		WorkspaceID:  wid,
		Name:         filepath.Base(header.Filename),
		Kind:         model.FileKindUpload,
		ObjectName:   objectName,
		Size:         header.Size,
		UploadedByID: token.UserID,
	}
	if err := mgr.db.Create(&file).Error; err != nil {
		resputil.Error(c, "failed to record file", resputil.NotSpecified)
		return
	}

	resputil.Success(c, FileResp{
		ID: file.ID, Name: file.Name, Kind: file.Kind,
		Size: file.Size, UploadedBy: file.UploadedByID, CreatedAt: file.CreatedAt,
	})
}

// AddLink godoc
// @Summary Share an external link in the workspace
// @Tags File
// @Accept json
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param data body AddLinkReq true "link"
// @Success 200 {object} resputil.Response[FileResp] "stored link"
// @Router /workspaces/{wid}/files/link [post]
func (mgr *FileMgr) AddLink(c *gin.Context) {
	var req AddLinkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)

	file := model.WorkspaceFile{
		WorkspaceID:  util.GetWorkspaceID(c),
		Name:         req.Name,
		Kind:         model.FileKindLink,
		URL:          req.URL,
		UploadedByID: token.UserID,
	}
	if err := mgr.db.Create(&file).Error; err != nil {
		resputil.Error(c, "failed to record link", resputil.NotSpecified)
		return
	}

	resputil.Success(c, FileResp{
		ID: file.ID, Name: file.Name, Kind: file.Kind,
		URL: file.URL, UploadedBy: file.UploadedByID, CreatedAt: file.CreatedAt,
	})
}

// Download godoc
// @Summary Download an uploaded file
// @Tags File
// @Produce octet-stream
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param fid path int true "file id"
// @Success 200 {file} binary "file content"
// @Router /workspaces/{wid}/files/{fid}/download [get]
func (mgr *FileMgr) Download(c *gin.Context) {
	file, ok := mgr.fileFromPath(c)
	if !ok {
		return
	}
	if file.Kind != model.FileKindUpload {
		resputil.BadRequestError(c, "links have no stored content")
		return
	}
	c.FileAttachment(filepath.Join(mgr.uploadDir, file.ObjectName), file.Name)
}

// Delete godoc
// @Summary Remove a file or link
// @Tags File
// @Produce json
// @Security Bearer
// @Param wid path int true "workspace id"
// @Param fid path int true "file id"
// @Success 200 {object} resputil.Response[any] "removed"
// @Router /workspaces/{wid}/files/{fid} [delete]
func (mgr *FileMgr) Delete(c *gin.Context) {
	file, ok := mgr.fileFromPath(c)
	if !ok {
		return
	}

	if err := mgr.db.Delete(&model.WorkspaceFile{}, file.ID).Error; err != nil {
		resputil.Error(c, "failed to delete file", resputil.NotSpecified)
		return
	}
	if file.Kind == model.FileKindUpload {
		// Metadata row is gone; a leftover object on disk is harmless.
		if err := os.Remove(filepath.Join(mgr.uploadDir, file.ObjectName)); err != nil {
			logutils.Log.Warn("remove stored object: ", err)
		}
	}
	resputil.Success(c, "file removed")
}

func (mgr *FileMgr) fileFromPath(c *gin.Context) (*model.WorkspaceFile, bool) {
	fid, err := strconv.ParseUint(c.Param("fid"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid file id")
		return nil, false
	}

	var file model.WorkspaceFile
	err = mgr.db.Where("id = ? AND workspace_id = ?", fid, util.GetWorkspaceID(c)).
		First(&file).Error
	if err != nil {
		resputil.Error(c, "file not found", resputil.NotFound)
		return nil, false
	}
	return &file, true
}
