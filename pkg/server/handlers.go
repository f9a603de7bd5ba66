package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/openfroyo/folio/pkg/projects"
	"github.com/openfroyo/folio/pkg/stores"
)

// ProjectHandler serves the project routes.
type ProjectHandler struct {
	svc *projects.Service
}

// NewProjectHandler creates a handler over svc.
func NewProjectHandler(svc *projects.Service) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// Register attaches project routes to the given router.
func (h *ProjectHandler) Register(r gin.IRouter) {
	r.GET("/projects", h.list)
	r.POST("/add_project", h.add)
	r.POST("/delete_project/:id", h.delete)
}

type addProjectReq struct {
	Title         string `json:"title" form:"title" binding:"required"`
	Description   string `json:"description" form:"description"`
	ImageFileName string `json:"image_filename" form:"image_filename"`
}

func (h *ProjectHandler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": errorMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": items})
}

func (h *ProjectHandler) add(c *gin.Context) {
	var req addProjectReq
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "title is required"})
		return
	}

	id, err := h.svc.Add(c.Request.Context(), stores.NewProject{
		Title:         req.Title,
		Description:   req.Description,
		ImageFileName: req.ImageFileName,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": errorMessage(err)})
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusCreated, gin.H{"ok": true, "id": id})
		return
	}
	c.Redirect(http.StatusFound, "/projects")
}

func (h *ProjectHandler) delete(c *gin.Context) {
	id, err := stores.ParseProjectID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid project id"})
		return
	}

	result, err := h.svc.Delete(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": errorMessage(err)})
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "deleted": result == stores.DeleteResultDeleted})
		return
	}
	c.Redirect(http.StatusFound, "/projects")
}

// wantsJSON reports whether the client asked for a JSON reply instead of
// the browser redirect.
func wantsJSON(c *gin.Context) bool {
	if c.Query("format") == "json" || c.ContentType() == binding.MIMEJSON {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), binding.MIMEJSON)
}

// errorMessage hides driver detail behind the store error kind.
func errorMessage(err error) string {
	if kind := stores.KindOf(err); kind != "" {
		return string(kind)
	}
	return "internal error"
}
