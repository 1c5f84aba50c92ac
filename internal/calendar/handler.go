package calendar

import (
	"net/http"
	"time"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/pkg/middleware"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/tasks")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/move", h.move)
	g.POST("/:id/done", h.done)
}

type createRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Kind        Kind      `json:"kind"`
	Start       time.Time `json:"start" binding:"required"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"allDay"`
	Priority    Priority  `json:"priority"`
	ProjectID   string    `json:"projectId"`
	ContactID   string    `json:"contactId"`
	OwnerID     string    `json:"ownerId"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if !httpx.BindJSON(c, &req) {
		return
	}
	tenant, user := middleware.Identity(c)
	t, err := h.svc.Create(c.Request.Context(), tenant, user, &Task{
		OwnerID: req.OwnerID, Title: req.Title, Description: req.Description, Kind: req.Kind,
		Start: req.Start, End: req.End, AllDay: req.AllDay, Priority: req.Priority,
		ProjectID: req.ProjectID, ContactID: req.ContactID,
	})
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) list(c *gin.Context) {
	from, err := httpx.QueryTime(c, "from")
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	to, err := httpx.QueryTime(c, "to")
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	done, err := httpx.QueryBool(c, "done")
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	limit, err := httpx.QueryInt(c, "limit", 0)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	tenant, user := middleware.Identity(c)
	owner := c.Query("owner")
	if owner == "me" {
		owner = user
	}
	list, err := h.svc.List(c.Request.Context(), tenant, ListFilter{
		From: from, To: to, OwnerID: owner, ProjectID: c.Query("projectId"),
		ContactID: c.Query("contactId"), Kind: Kind(c.Query("kind")), Done: done, Limit: limit,
	})
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) get(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	t, err := h.svc.Get(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) update(c *gin.Context) {
	var p Patch
	if !httpx.BindJSON(c, &p) {
		return
	}
	tenant, _ := middleware.Identity(c)
	t, err := h.svc.Update(c.Request.Context(), tenant, c.Param("id"), p)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) move(c *gin.Context) {
	var req struct {
		Start time.Time `json:"start" binding:"required"`
	}
	if !httpx.BindJSON(c, &req) {
		return
	}
	tenant, _ := middleware.Identity(c)
	t, err := h.svc.Move(c.Request.Context(), tenant, c.Param("id"), req.Start)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) done(c *gin.Context) {
	var req struct {
		Done *bool `json:"done"`
	}
	if c.Request.ContentLength > 0 && !httpx.BindJSON(c, &req) {
		return
	}
	done := true
	if req.Done != nil {
		done = *req.Done
	}
	tenant, _ := middleware.Identity(c)
	t, err := h.svc.SetDone(c.Request.Context(), tenant, c.Param("id"), done)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) delete(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	if err := h.svc.Delete(c.Request.Context(), tenant, c.Param("id")); err != nil {
		httpx.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
