package contacts

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

// Register mounts the contact routes on an authenticated, tenant-scoped group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/contacts")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

type createRequest struct {
	Name    string   `json:"name" binding:"required"`
	Email   string   `json:"email" binding:"omitempty,email"`
	Phone   string   `json:"phone"`
	Company string   `json:"company"`
	Address string   `json:"address"`
	Notes   string   `json:"notes"`
	Tags    []string `json:"tags"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if !httpx.BindJSON(c, &req) {
		return
	}
	tenant, _ := middleware.Identity(c)
	ct, err := h.svc.Create(c.Request.Context(), tenant, &Contact{
		Name: req.Name, Email: req.Email, Phone: req.Phone, Company: req.Company,
		Address: req.Address, Notes: req.Notes, Tags: req.Tags,
	})
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, ct)
}

func (h *Handler) list(c *gin.Context) {
	limit, err := httpx.QueryInt(c, "limit", 0)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	tenant, _ := middleware.Identity(c)
	list, err := h.svc.List(c.Request.Context(), tenant, ListFilter{Search: c.Query("q"), Tag: c.Query("tag"), Limit: limit})
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) get(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	ct, err := h.svc.Get(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

func (h *Handler) update(c *gin.Context) {
	var p Patch
	if !httpx.BindJSON(c, &p) {
		return
	}
	tenant, _ := middleware.Identity(c)
	ct, err := h.svc.Update(c.Request.Context(), tenant, c.Param("id"), p)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

func (h *Handler) delete(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	if err := h.svc.Delete(c.Request.Context(), tenant, c.Param("id")); err != nil {
		httpx.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
