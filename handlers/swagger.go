package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger serves the API description:
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	doc := OpenAPI()
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})
	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, doc)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>deskhub API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Endpoint is one documented route. Paths use gin syntax (":id").
type Endpoint struct {
	Method  string
	Path    string
	Tag     string
	Summary string
}

// Endpoints lists every public route of the service.
var Endpoints = []Endpoint{
	{"GET", "/health", "system", "Liveness check"},
	{"GET", "/ready", "system", "Readiness check with dependency status"},
	{"GET", "/metrics", "system", "Prometheus metrics"},
	{"POST", "/auth/login", "auth", "Password grant or authorization code exchange"},
	{"POST", "/auth/refresh", "auth", "Rotate the refresh token and issue a new access token"},
	{"POST", "/auth/logout", "auth", "Delete the refresh session and revoke the access token"},
	{"GET", "/api/v1/me", "auth", "Current user"},

	{"GET", "/api/v1/dashboard", "dashboard", "Overview for the caller"},

	{"GET", "/api/v1/contacts", "contacts", "List contacts"},
	{"POST", "/api/v1/contacts", "contacts", "Create a contact and its client account"},
	{"GET", "/api/v1/contacts/:id", "contacts", "Get a contact"},
	{"PATCH", "/api/v1/contacts/:id", "contacts", "Update a contact"},
	{"DELETE", "/api/v1/contacts/:id", "contacts", "Delete a contact and its client account"},

	{"GET", "/api/v1/accounts", "accounting", "List client accounts"},
	{"GET", "/api/v1/accounts/:id", "accounting", "Get a client account"},
	{"PATCH", "/api/v1/accounts/:id", "accounting", "Update billing details"},
	{"GET", "/api/v1/accounting/summary", "accounting", "Income, expenses and outstanding totals"},
	{"GET", "/api/v1/accounting/timelogs", "accounting", "List time logs"},
	{"POST", "/api/v1/accounting/timelogs", "accounting", "Log time against an account"},
	{"DELETE", "/api/v1/accounting/timelogs/:id", "accounting", "Delete an unbilled time log"},
	{"GET", "/api/v1/accounting/invoices", "accounting", "List invoices"},
	{"POST", "/api/v1/accounting/invoices", "accounting", "Create a draft invoice"},
	{"POST", "/api/v1/accounting/invoices/from-timelogs", "accounting", "Bill unbilled time logs"},
	{"GET", "/api/v1/accounting/invoices/:id", "accounting", "Get an invoice"},
	{"PATCH", "/api/v1/accounting/invoices/:id", "accounting", "Update a draft invoice"},
	{"DELETE", "/api/v1/accounting/invoices/:id", "accounting", "Delete a draft invoice"},
	{"POST", "/api/v1/accounting/invoices/:id/send", "accounting", "Mark an invoice as sent"},
	{"POST", "/api/v1/accounting/invoices/:id/pay", "accounting", "Mark an invoice as paid"},
	{"POST", "/api/v1/accounting/invoices/:id/void", "accounting", "Void an invoice"},
	{"GET", "/api/v1/accounting/transactions", "accounting", "List ledger transactions"},
	{"POST", "/api/v1/accounting/transactions", "accounting", "Record a transaction"},
	{"DELETE", "/api/v1/accounting/transactions/:id", "accounting", "Delete a manual transaction"},

	{"GET", "/api/v1/projects", "projects", "List projects"},
	{"POST", "/api/v1/projects", "projects", "Create a project"},
	{"GET", "/api/v1/projects/:id", "projects", "Get a project"},
	{"PATCH", "/api/v1/projects/:id", "projects", "Update a project"},
	{"DELETE", "/api/v1/projects/:id", "projects", "Delete a project"},

	{"GET", "/api/v1/employees", "employees", "List employees"},
	{"POST", "/api/v1/employees", "employees", "Create an employee"},
	{"GET", "/api/v1/employees/:id", "employees", "Get an employee"},
	{"PATCH", "/api/v1/employees/:id", "employees", "Update an employee"},
	{"DELETE", "/api/v1/employees/:id", "employees", "Delete an employee"},

	{"GET", "/api/v1/tasks", "calendar", "List tasks and events"},
	{"POST", "/api/v1/tasks", "calendar", "Create a task or event"},
	{"GET", "/api/v1/tasks/:id", "calendar", "Get a task"},
	{"PATCH", "/api/v1/tasks/:id", "calendar", "Update a task"},
	{"DELETE", "/api/v1/tasks/:id", "calendar", "Delete a task"},
	{"POST", "/api/v1/tasks/:id/move", "calendar", "Move a task, keeping its duration"},
	{"POST", "/api/v1/tasks/:id/done", "calendar", "Set the done flag"},

	{"GET", "/api/v1/rituals/settings", "rituals", "Get ritual settings"},
	{"PUT", "/api/v1/rituals/settings", "rituals", "Save ritual settings and regenerate ritual tasks"},
	{"POST", "/api/v1/rituals/apply", "rituals", "Regenerate ritual tasks"},
	{"GET", "/api/v1/rituals/runs", "rituals", "Recent generation runs"},

	{"GET", "/api/v1/folders/tree", "files", "Folder tree"},
	{"POST", "/api/v1/folders", "files", "Create a folder"},
	{"GET", "/api/v1/folders/:id/children", "files", "Folders and files in a folder (root for the top level)"},
	{"GET", "/api/v1/folders/:id/path", "files", "Breadcrumb path of a folder"},
	{"PATCH", "/api/v1/folders/:id", "files", "Rename or move a folder"},
	{"DELETE", "/api/v1/folders/:id", "files", "Delete a folder and its subtree"},
	{"POST", "/api/v1/files", "files", "Upload a file (multipart)"},
	{"POST", "/api/v1/files/text", "files", "Create or overwrite a text file"},
	{"GET", "/api/v1/files/:id", "files", "File metadata"},
	{"GET", "/api/v1/files/:id/text", "files", "Text file content"},
	{"GET", "/api/v1/files/:id/url", "files", "Presigned download URL"},
	{"GET", "/api/v1/files/:id/content", "files", "Stream file content"},
	{"PATCH", "/api/v1/files/:id", "files", "Rename or move a file"},
	{"DELETE", "/api/v1/files/:id", "files", "Delete a file"},

	{"GET", "/api/v1/mail/messages", "mail", "List messages"},
	{"POST", "/api/v1/mail/messages", "mail", "Create a draft (send=true sends immediately)"},
	{"GET", "/api/v1/mail/messages/:id", "mail", "Get a message"},
	{"PATCH", "/api/v1/mail/messages/:id", "mail", "Update a draft"},
	{"DELETE", "/api/v1/mail/messages/:id", "mail", "Delete a message"},
	{"POST", "/api/v1/mail/messages/:id/send", "mail", "Send a draft or retry a failed message"},

	{"POST", "/api/v1/assistant/chat", "assistant", "Chat with the assistant"},
	{"POST", "/api/v1/assistant/tasks", "assistant", "Extract tasks from text into the calendar"},
}

// openAPIPath converts gin params to OpenAPI templates: /tasks/:id -> /tasks/{id}.
func openAPIPath(p string) (string, []string) {
	segs := strings.Split(p, "/")
	var params []string
	for i, s := range segs {
		if strings.HasPrefix(s, ":") {
			params = append(params, s[1:])
			segs[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(segs, "/"), params
}

// OpenAPI builds the OpenAPI 3 document for Endpoints.
func OpenAPI() gin.H {
	paths := gin.H{}
	for _, e := range Endpoints {
		p, params := openAPIPath(e.Path)
		item, ok := paths[p].(gin.H)
		if !ok {
			item = gin.H{}
			paths[p] = item
		}
		op := gin.H{
			"summary":   e.Summary,
			"tags":      []string{e.Tag},
			"responses": gin.H{"200": gin.H{"description": "OK"}},
		}
		if strings.HasPrefix(e.Path, "/api/") {
			op["security"] = []gin.H{{"bearerAuth": []string{}}}
		}
		if len(params) > 0 {
			ps := make([]gin.H, 0, len(params))
			for _, name := range params {
				ps = append(ps, gin.H{"name": name, "in": "path", "required": true, "schema": gin.H{"type": "string"}})
			}
			op["parameters"] = ps
		}
		item[strings.ToLower(e.Method)] = op
	}
	return gin.H{
		"openapi": "3.0.0",
		"info":    gin.H{"title": "deskhub", "version": "v1"},
		"paths":   paths,
		"components": gin.H{
			"securitySchemes": gin.H{
				"bearerAuth": gin.H{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
		},
	}
}
