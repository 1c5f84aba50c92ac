package mail

import (
	"net/http"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/pkg/middleware"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/mail/messages")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/send", h.send)
}

func (h *Handler) list(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	list, err := h.svc.List(c.Request.Context(), tenant, Status(c.Query("status")))
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// create stores a draft; with ?send=true it is sent right away.
func (h *Handler) create(c *gin.Context) {
	var d Draft
	if !httpx.BindJSON(c, &d) {
		return
	}
	sendNow, err := httpx.QueryBool(c, "send")
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	tenant, user := middleware.Identity(c)
	ctx := c.Request.Context()
	m, err := h.svc.CreateDraft(ctx, tenant, user, d)
	if err == nil && sendNow != nil && *sendNow {
		m, err = h.svc.Send(ctx, tenant, m.ID)
	}
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) get(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	m, err := h.svc.Get(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) update(c *gin.Context) {
	var p Patch
	if !httpx.BindJSON(c, &p) {
		return
	}
	tenant, _ := middleware.Identity(c)
	m, err := h.svc.UpdateDraft(c.Request.Context(), tenant, c.Param("id"), p)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) send(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	m, err := h.svc.Send(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) delete(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	if err := h.svc.Delete(c.Request.Context(), tenant, c.Param("id")); err != nil {
		httpx.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
