package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"estate-backend/middleware"
	"estate-backend/models"
	"estate-backend/services"
	"estate-backend/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const multipartMemory = 8 << 20

type ProjectController struct {
	Actions        *services.ProjectActions
	Pages          services.PageCache
	Logger         *zap.Logger
	MaxUploadBytes int64
}

func NewProjectController(actions *services.ProjectActions, pages services.PageCache, logger *zap.Logger, maxUploadBytes int64) *ProjectController {
	if pages == nil {
		pages = services.NoopPageCache{}
	}
	return &ProjectController{
		Actions:        actions,
		Pages:          pages,
		Logger:         logger.Named("project-controller"),
		MaxUploadBytes: maxUploadBytes,
	}
}

// ----------------------------------------------------------------------
// Public pages
// ----------------------------------------------------------------------

// GET /api/projects
func (pc *ProjectController) ListProjects(c *gin.Context) {
	pc.servePage(c, services.PageProjects, func() (any, services.ActionResult) {
		res := pc.Actions.List(c.Request.Context(), "")
		return gin.H{"projects": res.Projects}, res
	})
}

// GET /api/projects/:status
func (pc *ProjectController) ListProjectsByStatus(c *gin.Context) {
	status := models.ProjectStatus(c.Param("status"))
	if !status.Valid() {
		utils.JSONError(c, http.StatusNotFound, "Unknown project status")
		return
	}

	pc.servePage(c, services.PageProjectsByStatus(status), func() (any, services.ActionResult) {
		res := pc.Actions.List(c.Request.Context(), status)
		return gin.H{"projects": res.Projects}, res
	})
}

// GET /api/projects/:status/:id
func (pc *ProjectController) GetProjectByStatus(c *gin.Context) {
	status := models.ProjectStatus(c.Param("status"))
	id, ok := projectID(c)
	if !ok {
		return
	}
	if !status.Valid() {
		utils.JSONError(c, http.StatusNotFound, "Project not found")
		return
	}

	pc.servePage(c, services.PageProjectDetail(status, id), func() (any, services.ActionResult) {
		res := pc.Actions.GetByID(c.Request.Context(), id)
		if res.OK() && res.Project.Status != status {
			return nil, services.ActionResult{Error: "Project not found", Kind: services.ResultNotFound}
		}
		return gin.H{"project": res.Project}, res
	})
}

// ----------------------------------------------------------------------
// Admin
// ----------------------------------------------------------------------

// GET /api/admin/projects
func (pc *ProjectController) ListManagedProjects(c *gin.Context) {
	pc.servePage(c, services.PageProjectManagement, func() (any, services.ActionResult) {
		res := pc.Actions.List(c.Request.Context(), "")
		return gin.H{"projects": res.Projects}, res
	})
}

// GET /api/admin/projects/:id
func (pc *ProjectController) GetProject(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	utils.JSONResult(c, pc.Actions.GetByID(c.Request.Context(), id), http.StatusOK)
}

// GET /api/admin/projects/:id/activity
func (pc *ProjectController) GetProjectActivity(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	res := pc.Actions.Activity(c.Request.Context(), middleware.CurrentSession(c), id)
	if res.OK() {
		c.JSON(http.StatusOK, gin.H{"activity": res.Activity})
		return
	}
	utils.JSONResult(c, res, 0)
}

// POST /api/admin/projects
func (pc *ProjectController) CreateProject(c *gin.Context) {
	form, ok := pc.readForm(c)
	if !ok {
		return
	}
	res := pc.Actions.Create(c.Request.Context(), middleware.CurrentSession(c), form)
	utils.JSONResult(c, res, http.StatusCreated)
}

// PUT /api/admin/projects/:id
func (pc *ProjectController) UpdateProject(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	form, ok := pc.readForm(c)
	if !ok {
		return
	}
	res := pc.Actions.Update(c.Request.Context(), middleware.CurrentSession(c), id, form)
	utils.JSONResult(c, res, http.StatusOK)
}

// DELETE /api/admin/projects/:id
func (pc *ProjectController) DeleteProject(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	res := pc.Actions.Delete(c.Request.Context(), middleware.CurrentSession(c), id)
	utils.JSONResult(c, res, http.StatusOK)
}

// servePage answers from the page cache when it can, otherwise renders the
// page and stores it. Only successful pages are cached.
func (pc *ProjectController) servePage(c *gin.Context, page string, render func() (any, services.ActionResult)) {
	ctx := c.Request.Context()

	body, hit, err := pc.Pages.Get(ctx, page)
	if err != nil {
		pc.Logger.Warn("page cache read failed", zap.String("page", page), zap.Error(err))
	}
	if hit {
		c.Header("X-Cache", "HIT")
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}

	payload, res := render()
	if !res.OK() {
		utils.JSONResult(c, res, 0)
		return
	}

	body, err = json.Marshal(payload)
	if err != nil {
		pc.Logger.Error("failed to encode page", zap.String("page", page), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to fetch projects")
		return
	}
	if err := pc.Pages.Set(ctx, page, body); err != nil {
		pc.Logger.Warn("page cache write failed", zap.String("page", page), zap.Error(err))
	}

	c.Header("X-Cache", "MISS")
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// readForm accepts multipart and urlencoded bodies. A missing imageFile part
// leaves Image nil.
func (pc *ProjectController) readForm(c *gin.Context) (services.ProjectForm, bool) {
	if pc.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, pc.MaxUploadBytes)
	}

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.JSONError(c, http.StatusRequestEntityTooLarge, "Upload is too large")
			return services.ProjectForm{}, false
		}
		utils.JSONError(c, http.StatusBadRequest, "Invalid form submission")
		return services.ProjectForm{}, false
	}

	form := services.ProjectForm{Values: c.Request.PostForm}
	if c.Request.MultipartForm == nil {
		return form, true
	}

	fh, err := c.FormFile("imageFile")
	if errors.Is(err, http.ErrMissingFile) {
		return form, true
	}
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid image upload")
		return services.ProjectForm{}, false
	}

	file, err := fh.Open()
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid image upload")
		return services.ProjectForm{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid image upload")
		return services.ProjectForm{}, false
	}

	form.Image = &services.UploadedFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}
	return form, true
}

func projectID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.JSONError(c, http.StatusBadRequest, "Invalid project id")
		return 0, false
	}
	return uint(id), true
}
