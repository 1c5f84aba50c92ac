package accounting

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
	acc := rg.Group("/accounts")
	acc.GET("", h.listAccounts)
	acc.GET("/:id", h.getAccount)
	acc.PATCH("/:id", h.updateAccount)

	g := rg.Group("/accounting")
	g.GET("/summary", h.summary)

	g.GET("/timelogs", h.listTimeLogs)
	g.POST("/timelogs", h.createTimeLog)
	g.DELETE("/timelogs/:id", h.deleteTimeLog)

	g.GET("/invoices", h.listInvoices)
	g.POST("/invoices", h.createInvoice)
	g.POST("/invoices/from-timelogs", h.invoiceFromTimeLogs)
	g.GET("/invoices/:id", h.getInvoice)
	g.PATCH("/invoices/:id", h.updateInvoice)
	g.DELETE("/invoices/:id", h.deleteInvoice)
	g.POST("/invoices/:id/send", h.sendInvoice)
	g.POST("/invoices/:id/pay", h.payInvoice)
	g.POST("/invoices/:id/void", h.voidInvoice)

	g.GET("/transactions", h.listTransactions)
	g.POST("/transactions", h.createTransaction)
	g.DELETE("/transactions/:id", h.deleteTransaction)
}

func respond(c *gin.Context, status int, v any, err error) {
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(status, v)
}

func (h *Handler) listAccounts(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	list, err := h.svc.ListAccounts(c.Request.Context(), tenant, c.Query("q"))
	respond(c, http.StatusOK, list, err)
}

func (h *Handler) getAccount(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	a, err := h.svc.GetAccount(c.Request.Context(), tenant, c.Param("id"))
	respond(c, http.StatusOK, a, err)
}

func (h *Handler) updateAccount(c *gin.Context) {
	var p AccountPatch
	if !httpx.BindJSON(c, &p) {
		return
	}
	tenant, _ := middleware.Identity(c)
	a, err := h.svc.UpdateAccount(c.Request.Context(), tenant, c.Param("id"), p)
	respond(c, http.StatusOK, a, err)
}

func (h *Handler) summary(c *gin.Context) {
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
	tenant, _ := middleware.Identity(c)
	sum, err := h.svc.Summary(c.Request.Context(), tenant, from, to)
	respond(c, http.StatusOK, sum, err)
}

type timeLogRequest struct {
	AccountID   string    `json:"accountId" binding:"required"`
	ProjectID   string    `json:"projectId"`
	Date        time.Time `json:"date"`
	Minutes     int       `json:"minutes" binding:"required,gt=0"`
	Description string    `json:"description"`
	Billable    *bool     `json:"billable"`
}

func (h *Handler) createTimeLog(c *gin.Context) {
	var req timeLogRequest
	if !httpx.BindJSON(c, &req) {
		return
	}
	billable := true
	if req.Billable != nil {
		billable = *req.Billable
	}
	tenant, user := middleware.Identity(c)
	l, err := h.svc.CreateTimeLog(c.Request.Context(), tenant, user, &TimeLog{
		AccountID: req.AccountID, ProjectID: req.ProjectID, Date: req.Date,
		Minutes: req.Minutes, Description: req.Description, Billable: billable,
	})
	respond(c, http.StatusCreated, l, err)
}

func (h *Handler) listTimeLogs(c *gin.Context) {
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
	unbilled, err := httpx.QueryBool(c, "unbilled")
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	tenant, _ := middleware.Identity(c)
	list, err := h.svc.ListTimeLogs(c.Request.Context(), tenant, TimeLogFilter{
		AccountID: c.Query("accountId"),
		ProjectID: c.Query("projectId"),
		From:      from,
		To:        to,
		Unbilled:  unbilled != nil && *unbilled,
	})
	respond(c, http.StatusOK, list, err)
}

func (h *Handler) deleteTimeLog(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	if err := h.svc.DeleteTimeLog(c.Request.Context(), tenant, c.Param("id")); err != nil {
		httpx.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listInvoices(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	list, err := h.svc.ListInvoices(c.Request.Context(), tenant, InvoiceFilter{
		Status:    InvoiceStatus(c.Query("status")),
		AccountID: c.Query("accountId"),
	})
	respond(c, http.StatusOK, list, err)
}

func (h *Handler) createInvoice(c *gin.Context) {
	var d InvoiceDraft
	if !httpx.BindJSON(c, &d) {
		return
	}
	tenant, _ := middleware.Identity(c)
	inv, err := h.svc.CreateInvoice(c.Request.Context(), tenant, d)
	respond(c, http.StatusCreated, inv, err)
}

type fromTimeLogsRequest struct {
	AccountID string    `json:"accountId" binding:"required"`
	Through   time.Time `json:"through"`
	TaxRateBp int64     `json:"taxRateBp"`
	DueDays   int       `json:"dueDays"`
}

func (h *Handler) invoiceFromTimeLogs(c *gin.Context) {
	var req fromTimeLogsRequest
	if !httpx.BindJSON(c, &req) {
		return
	}
	tenant, _ := middleware.Identity(c)
	inv, err := h.svc.InvoiceFromTimeLogs(c.Request.Context(), tenant, req.AccountID, req.Through, req.TaxRateBp, req.DueDays)
	respond(c, http.StatusCreated, inv, err)
}

func (h *Handler) getInvoice(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	inv, err := h.svc.GetInvoice(c.Request.Context(), tenant, c.Param("id"))
	respond(c, http.StatusOK, inv, err)
}

func (h *Handler) updateInvoice(c *gin.Context) {
	var p InvoicePatch
	if !httpx.BindJSON(c, &p) {
		return
	}
	tenant, _ := middleware.Identity(c)
	inv, err := h.svc.UpdateInvoice(c.Request.Context(), tenant, c.Param("id"), p)
	respond(c, http.StatusOK, inv, err)
}

func (h *Handler) deleteInvoice(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	if err := h.svc.DeleteInvoice(c.Request.Context(), tenant, c.Param("id")); err != nil {
		httpx.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) sendInvoice(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	inv, err := h.svc.SendInvoice(c.Request.Context(), tenant, c.Param("id"))
	respond(c, http.StatusOK, inv, err)
}

func (h *Handler) payInvoice(c *gin.Context) {
	var req struct {
		PaidAt time.Time `json:"paidAt"`
	}
	if c.Request.ContentLength > 0 && !httpx.BindJSON(c, &req) {
		return
	}
	tenant, _ := middleware.Identity(c)
	inv, err := h.svc.MarkPaid(c.Request.Context(), tenant, c.Param("id"), req.PaidAt)
	respond(c, http.StatusOK, inv, err)
}

func (h *Handler) voidInvoice(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	inv, err := h.svc.VoidInvoice(c.Request.Context(), tenant, c.Param("id"))
	respond(c, http.StatusOK, inv, err)
}

func (h *Handler) listTransactions(c *gin.Context) {
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
	tenant, _ := middleware.Identity(c)
	list, err := h.svc.ListTransactions(c.Request.Context(), tenant, TransactionFilter{
		Kind: TxKind(c.Query("kind")), Category: c.Query("category"), From: from, To: to,
	})
	respond(c, http.StatusOK, list, err)
}

type transactionRequest struct {
	Date        time.Time `json:"date"`
	Kind        TxKind    `json:"kind" binding:"required,oneof=income expense"`
	Category    string    `json:"category"`
	AmountCents int64     `json:"amountCents" binding:"required,gt=0"`
	Description string    `json:"description"`
	AccountID   string    `json:"accountId"`
}

func (h *Handler) createTransaction(c *gin.Context) {
	var req transactionRequest
	if !httpx.BindJSON(c, &req) {
		return
	}
	tenant, _ := middleware.Identity(c)
	tx, err := h.svc.CreateTransaction(c.Request.Context(), tenant, &Transaction{
		Date: req.Date, Kind: req.Kind, Category: req.Category, AmountCents: req.AmountCents,
		Description: req.Description, AccountID: req.AccountID,
	})
	respond(c, http.StatusCreated, tx, err)
}

func (h *Handler) deleteTransaction(c *gin.Context) {
	tenant, _ := middleware.Identity(c)
	if err := h.svc.DeleteTransaction(c.Request.Context(), tenant, c.Param("id")); err != nil {
		httpx.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
