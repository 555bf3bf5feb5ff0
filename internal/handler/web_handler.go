package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/attendance-sheet/internal/dto"
	"github.com/noah-isme/attendance-sheet/internal/form"
	"github.com/noah-isme/attendance-sheet/internal/models"
	"github.com/noah-isme/attendance-sheet/internal/service"
	"github.com/noah-isme/attendance-sheet/internal/view"
	appErrors "github.com/noah-isme/attendance-sheet/pkg/errors"
)

type attendanceService interface {
	Snapshot() models.AppState
	Configured() bool
	Setup(ctx context.Context, endpoint string) (models.Binding, error)
	Refresh(ctx context.Context) error
	Entries() []models.AttendanceEntry
	Entry(id string) (models.AttendanceEntry, error)
	AddEntry(ctx context.Context, entry models.NewAttendanceEntry) (models.AttendanceEntry, error)
	UpdateEntry(ctx context.Context, entry models.AttendanceEntry) (models.AttendanceEntry, error)
	DeleteEntry(ctx context.Context, id string, confirmed bool) (bool, error)
	ClearError()
}

// Exporter renders downloads of the current entries.
type Exporter interface {
	Generate(format service.ExportFormat) (*service.ExportResult, error)
}

// WebHandler serves the server-rendered pages. Every successful POST
// redirects back to a GET page.
type WebHandler struct {
	service  attendanceService
	exports  Exporter
	validate *validator.Validate
}

// NewWebHandler builds the page handler. exports may be nil to disable downloads.
func NewWebHandler(svc attendanceService, exports Exporter, validate *validator.Validate) *WebHandler {
	if validate == nil {
		validate = form.NewValidator()
	}
	return &WebHandler{service: svc, exports: exports, validate: validate}
}

// Register mounts the page routes.
func (h *WebHandler) Register(r gin.IRouter) {
	r.GET("/", h.Records)
	r.GET("/setup", h.SetupPage)
	r.POST("/setup", h.Setup)
	r.POST("/error/dismiss", h.DismissError)

	configured := r.Group("/", h.RequireSetup)
	configured.POST("/refresh", h.Refresh)
	configured.GET("/entries/new", h.NewEntry)
	configured.POST("/entries", h.CreateEntry)
	configured.GET("/entries/:id/edit", h.EditEntry)
	configured.POST("/entries/:id", h.UpdateEntry)
	configured.GET("/entries/:id/delete", h.ConfirmDelete)
	configured.POST("/entries/:id/delete", h.DeleteEntry)
	if h.exports != nil {
		configured.GET("/export/:format", h.Export)
	}
}

// RequireSetup sends unconfigured visitors to the setup page.
func (h *WebHandler) RequireSetup(c *gin.Context) {
	if !h.service.Configured() {
		c.Redirect(http.StatusSeeOther, "/setup")
		c.Abort()
		return
	}
	c.Next()
}

// Records renders the entry table.
func (h *WebHandler) Records(c *gin.Context) {
	state := h.service.Snapshot()
	if !state.Configured {
		c.Redirect(http.StatusSeeOther, "/setup")
		return
	}
	c.HTML(http.StatusOK, view.PageRecords, view.RecordsPage{
		SheetURL:      state.SheetURL,
		Error:         state.Error,
		Loading:       state.Loading,
		Entries:       state.Entries,
		ExportEnabled: h.exports != nil,
	})
}

// SetupPage renders the endpoint form.
func (h *WebHandler) SetupPage(c *gin.Context) {
	state := h.service.Snapshot()
	c.HTML(http.StatusOK, view.PageSetup, view.SetupPage{
		URL:     state.EndpointURL,
		Error:   state.Error,
		Loading: state.Loading,
	})
}

// Setup binds the app to the submitted URL.
func (h *WebHandler) Setup(c *gin.Context) {
	var req dto.SetupRequest
	_ = c.ShouldBind(&req)

	if _, err := h.service.Setup(c.Request.Context(), req.URL); err != nil {
		appErr := appErrors.FromError(err)
		page := view.SetupPage{URL: req.URL}
		if errors.Is(err, appErrors.ErrValidation) {
			page.FieldError = appErr.Message
		} else {
			page.Error = appErr.Message
		}
		_ = c.Error(err)
		c.HTML(appErr.Status, view.PageSetup, page)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// Refresh reloads the entries; failures show on the records page.
func (h *WebHandler) Refresh(c *gin.Context) {
	_ = h.service.Refresh(c.Request.Context())
	c.Redirect(http.StatusSeeOther, "/")
}

// DismissError clears the error banner.
func (h *WebHandler) DismissError(c *gin.Context) {
	h.service.ClearError()
	c.Redirect(http.StatusSeeOther, "/")
}

// NewEntry renders an empty create form.
func (h *WebHandler) NewEntry(c *gin.Context) {
	ctrl := form.New(h.validate)
	ctrl.OpenCreate()
	h.renderForm(c, http.StatusOK, ctrl, "/entries", "")
}

// CreateEntry validates the form and adds the entry remotely.
func (h *WebHandler) CreateEntry(c *gin.Context) {
	ctrl := form.New(h.validate)
	ctrl.OpenCreate()
	ctrl.Set(bindFields(c))

	draft, err := ctrl.Submit()
	if err != nil {
		h.renderForm(c, http.StatusUnprocessableEntity, ctrl, "/entries", "")
		return
	}
	if _, err := h.service.AddEntry(c.Request.Context(), *draft.Create); err != nil {
		h.renderFailure(c, ctrl, "/entries", err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// EditEntry renders the form seeded with the stored entry.
func (h *WebHandler) EditEntry(c *gin.Context) {
	entry, err := h.service.Entry(c.Param("id"))
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	ctrl := form.New(h.validate)
	ctrl.OpenEdit(entry)
	h.renderForm(c, http.StatusOK, ctrl, entryAction(entry.ID), "")
}

// UpdateEntry validates the form and replaces the entry remotely.
func (h *WebHandler) UpdateEntry(c *gin.Context) {
	entry, err := h.service.Entry(c.Param("id"))
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	ctrl := form.New(h.validate)
	ctrl.OpenEdit(entry)
	ctrl.Set(bindFields(c))

	draft, err := ctrl.Submit()
	if err != nil {
		h.renderForm(c, http.StatusUnprocessableEntity, ctrl, entryAction(entry.ID), "")
		return
	}
	if _, err := h.service.UpdateEntry(c.Request.Context(), *draft.Update); err != nil {
		h.renderFailure(c, ctrl, entryAction(entry.ID), err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// ConfirmDelete asks before deleting.
func (h *WebHandler) ConfirmDelete(c *gin.Context) {
	entry, err := h.service.Entry(c.Param("id"))
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	c.HTML(http.StatusOK, view.PageConfirm, view.ConfirmPage{Entry: entry, Action: entryAction(entry.ID) + "/delete"})
}

// DeleteEntry deletes only when the confirmation field is present.
func (h *WebHandler) DeleteEntry(c *gin.Context) {
	confirmed := strings.EqualFold(c.PostForm("confirm"), "yes")
	_, _ = h.service.DeleteEntry(c.Request.Context(), c.Param("id"), confirmed)
	c.Redirect(http.StatusSeeOther, "/")
}

// Export downloads the entries in the requested format.
func (h *WebHandler) Export(c *gin.Context) {
	format, err := service.ParseExportFormat(c.Param("format"))
	if err != nil {
		c.String(http.StatusBadRequest, appErrors.Message(err))
		return
	}
	result, err := h.exports.Generate(format)
	if err != nil {
		appErr := appErrors.FromError(err)
		c.String(appErr.Status, appErr.Message)
		return
	}
	writeDownload(c, result)
}

func (h *WebHandler) renderFailure(c *gin.Context, ctrl *form.Controller, action string, err error) {
	appErr := appErrors.FromError(err)
	_ = c.Error(err)
	h.renderForm(c, appErr.Status, ctrl, action, appErr.Message)
}

func (h *WebHandler) renderForm(c *gin.Context, status int, ctrl *form.Controller, action, errMsg string) {
	fields := ctrl.Fields()
	c.HTML(status, view.PageForm, view.FormPage{
		Title:       ctrl.Title(),
		SubmitLabel: ctrl.SubmitLabel(),
		Action:      action,
		Fields:      view.FormFields{Name: fields.Name, Status: fields.Status, Notes: fields.Notes},
		Errors:      ctrl.Errors(),
		Statuses:    models.AttendanceStatuses,
		Error:       errMsg,
	})
}

func bindFields(c *gin.Context) form.Fields {
	var req dto.EntryRequest
	_ = c.ShouldBind(&req)
	return form.Fields{Name: req.Name, Status: req.Status, Notes: req.Notes}
}

func entryAction(id string) string {
	return "/entries/" + url.PathEscape(id)
}

func writeDownload(c *gin.Context, result *service.ExportResult) {
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
