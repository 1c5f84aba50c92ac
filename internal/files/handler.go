package files

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/pkg/logger"
	"github.com/deskhub/deskhub/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// rootID addresses the root folder in paths.
const rootID = "root"

type Handler struct {
	svc       *Service
	maxUpload int64
}

// NewHandler serves the file cabinet. maxUpload caps multipart uploads in bytes;
// zero disables the cap.
func NewHandler(svc *Service, maxUpload int64) *Handler {
	return &Handler{svc: svc, maxUpload: maxUpload}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	fg := rg.Group("/folders")
	fg.GET("/tree", h.tree)
	fg.POST("", h.createFolder)
	fg.GET("/:id/children", h.children)
	fg.GET("/:id/path", h.path)
	fg.PATCH("/:id", h.updateFolder)
	fg.DELETE("/:id", h.deleteFolder)

	g := rg.Group("/files")
	g.POST("", h.upload)
	g.POST("/text", h.saveText)
	g.GET("/:id", h.getFile)
	g.GET("/:id/text", h.readText)
	g.GET("/:id/url", h.downloadURL)
	g.GET("/:id/content", h.download)
	g.PATCH("/:id", h.updateFile)
	g.DELETE("/:id", h.deleteFile)
}

func folderParam(c *gin.Context) string {
	if id := c.Param("id"); id != rootID {
		return id
	}
	return ""
}

func (h *Handler) tree(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	nodes, err := h.svc.Tree(c.Request.Context(), tenant)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, nodes)
}

func (h *Handler) createFolder(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		ParentID string `json:"parentId"`
	}
	if !httpx.BindJSON(c, &req) {
		return
	}
	tenant, user := middleware.Identity(c)
	f, err := h.svc.CreateFolder(c.Request.Context(), tenant, user, req.ParentID, req.Name)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *Handler) children(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	l, err := h.svc.Children(c.Request.Context(), tenant, folderParam(c))
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handler) path(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	p, err := h.svc.Path(c.Request.Context(), tenant, folderParam(c))
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	if p == nil {
		p = []*Folder{}
	}
	c.JSON(http.StatusOK, p)
}

type movePatch struct {
	Name     *string `json:"name"`
	ParentID *string `json:"parentId"`
	FolderID *string `json:"folderId"`
}

func (h *Handler) updateFolder(c *gin.Context) {
	var p movePatch
	if !httpx.BindJSON(c, &p) {
		return
	}
	tenant, _ := middleware.Identity(c)
	ctx, id := c.Request.Context(), c.Param("id")
	f, err := h.svc.GetFolder(ctx, tenant, id)
	if err == nil && p.Name != nil {
		f, err = h.svc.RenameFolder(ctx, tenant, id, *p.Name)
	}
	if err == nil && p.ParentID != nil {
		f, err = h.svc.MoveFolder(ctx, tenant, id, *p.ParentID)
	}
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *Handler) deleteFolder(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	if err := h.svc.DeleteFolder(c.Request.Context(), tenant, c.Param("id")); err != nil {
		httpx.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// upload accepts multipart/form-data with the content in "file" and optional
// "folderId" and "name" fields.
func (h *Handler) upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}
	if h.maxUpload > 0 && fh.Size > h.maxUpload {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds " + strconv.FormatInt(h.maxUpload, 10) + " bytes"})
		return
	}
	name := c.PostForm("name")
	if name == "" {
		name = fh.Filename
	}
	src, err := fh.Open()
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	defer src.Close()

	tenant, user := middleware.Identity(c)
	item, err := h.svc.Upload(c.Request.Context(), tenant, user, c.PostForm("folderId"), name, src, fh.Size)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) saveText(c *gin.Context) {
	var t TextFile
	if !httpx.BindJSON(c, &t) {
		return
	}
	tenant, user := middleware.Identity(c)
	item, err := h.svc.SaveText(c.Request.Context(), tenant, user, t)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	status := http.StatusOK
	if t.ID == "" {
		status = http.StatusCreated
	}
	c.JSON(status, item)
}

func (h *Handler) getFile(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	item, err := h.svc.GetFile(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) readText(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	content, item, err := h.svc.ReadText(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": item, "content": content})
}

func (h *Handler) downloadURL(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	u, expires, err := h.svc.DownloadURL(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": u, "expiresAt": expires.UTC()})
}

func (h *Handler) download(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	rc, item, err := h.svc.Download(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	defer rc.Close()
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": item.Name}))
	c.Header("Content-Type", item.ContentType)
	c.Header("Content-Length", strconv.FormatInt(item.Size, 10))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logger.Warnf("files: stream %s: %v", item.ID, err)
	}
}

func (h *Handler) updateFile(c *gin.Context) {
	var p movePatch
	if !httpx.BindJSON(c, &p) {
		return
	}
	tenant, _ := middleware.Identity(c)
	ctx, id := c.Request.Context(), c.Param("id")
	item, err := h.svc.GetFile(ctx, tenant, id)
	if err == nil && p.Name != nil {
		item, err = h.svc.RenameFile(ctx, tenant, id, *p.Name)
	}
	if err == nil && p.FolderID != nil {
		item, err = h.svc.MoveFile(ctx, tenant, id, *p.FolderID)
	}
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) deleteFile(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	if err := h.svc.DeleteFile(c.Request.Context(), tenant, c.Param("id")); err != nil {
		httpx.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
