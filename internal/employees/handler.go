package employees

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
	g := rg.Group("/employees")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

type createRequest struct {
	FullName        string     `json:"fullName" binding:"required"`
	Email           string     `json:"email" binding:"omitempty,email"`
	Phone           string     `json:"phone"`
	Position        string     `json:"position"`
	Department      string     `json:"department"`
	HireDate        *time.Time `json:"hireDate"`
	Active          *bool      `json:"active"`
	HourlyCostCents int64      `json:"hourlyCostCents"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if !httpx.BindJSON(c, &req) {
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	tenant, _ := middleware.Identity(c)
	e, err := h.svc.Create(c.Request.Context(), tenant, &Employee{
		FullName: req.FullName, Email: req.Email, Phone: req.Phone, Position: req.Position,
		Department: req.Department, HireDate: req.HireDate, Active: active, HourlyCostCents: req.HourlyCostCents,
	})
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) list(c *gin.Context) {
	active, err := httpx.QueryBool(c, "active")
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	tenant, _ := middleware.Identity(c)
	list, err := h.svc.List(c.Request.Context(), tenant, ListFilter{
		Department: c.Query("department"), Active: active, Search: c.Query("q"),
	})
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) get(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	e, err := h.svc.Get(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) update(c *gin.Context) {
	var p Patch
	if !httpx.BindJSON(c, &p) {
		return
	}
	tenant, _ := middleware.Identity(c)
	e, err := h.svc.Update(c.Request.Context(), tenant, c.Param("id"), p)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) delete(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	if err := h.svc.Delete(c.Request.Context(), tenant, c.Param("id")); err != nil {
		httpx.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
