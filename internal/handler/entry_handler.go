package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-sheet/internal/dto"
	"github.com/noah-isme/attendance-sheet/internal/models"
	"github.com/noah-isme/attendance-sheet/internal/service"
	appErrors "github.com/noah-isme/attendance-sheet/pkg/errors"
	"github.com/noah-isme/attendance-sheet/pkg/response"
)

// EntryHandler exposes the attendance operations as JSON endpoints.
type EntryHandler struct {
	service attendanceService
	exports Exporter
}

// NewEntryHandler builds the JSON handler. exports may be nil.
func NewEntryHandler(svc attendanceService, exports Exporter) *EntryHandler {
	return &EntryHandler{service: svc, exports: exports}
}

// Register mounts the JSON routes on r.
func (h *EntryHandler) Register(r gin.IRouter) {
	r.GET("/status", h.Status)
	r.POST("/setup", h.Setup)
	r.GET("/entries", h.List)
	r.POST("/entries/refresh", h.Refresh)
	r.GET("/entries/:id", h.Get)
	r.POST("/entries", h.Create)
	r.PUT("/entries/:id", h.Update)
	r.DELETE("/entries/:id", h.Delete)
	if h.exports != nil {
		r.GET("/export/:format", h.Export)
	}
}

// Status godoc
// @Summary Application status
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /status [get]
func (h *EntryHandler) Status(c *gin.Context) {
	state := h.service.Snapshot()
	response.JSON(c, http.StatusOK, dto.StatusResponse{
		Configured: state.Configured,
		SheetURL:   state.SheetURL,
		Loading:    state.Loading,
		Error:      state.Error,
		Entries:    len(state.Entries),
	})
}

// Setup godoc
// @Summary Connect to a spreadsheet web app
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.SetupRequest true "Web App URL"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /setup [post]
func (h *EntryHandler) Setup(c *gin.Context) {
	var req dto.SetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid setup payload"))
		return
	}
	binding, err := h.service.Setup(c.Request.Context(), req.URL)
	if err != nil {
		response.Error(c, err)
		return
	}
	state := h.service.Snapshot()
	response.JSON(c, http.StatusOK, dto.SetupResponse{
		SheetURL: binding.SheetURL,
		Entries:  state.Entries,
		Error:    state.Error,
	})
}

// List godoc
// @Summary List attendance entries
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /entries [get]
func (h *EntryHandler) List(c *gin.Context) {
	entries := h.service.Entries()
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"total": len(entries)})
}

// Refresh godoc
// @Summary Reload entries from the sheet
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /entries/refresh [post]
func (h *EntryHandler) Refresh(c *gin.Context) {
	if err := h.service.Refresh(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	h.List(c)
}

// Get godoc
// @Summary Get an attendance entry
// @Tags Attendance
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /entries/{id} [get]
func (h *EntryHandler) Get(c *gin.Context) {
	entry, err := h.service.Entry(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry)
}

// Create godoc
// @Summary Add an attendance entry
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.EntryRequest true "Entry fields"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /entries [post]
func (h *EntryHandler) Create(c *gin.Context) {
	var req dto.EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid entry payload"))
		return
	}
	entry, err := h.service.AddEntry(c.Request.Context(), models.NewAttendanceEntry{
		Name:   req.Name,
		Status: models.AttendanceStatus(req.Status),
		Notes:  req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Update godoc
// @Summary Update an attendance entry
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body dto.EntryRequest true "Entry fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /entries/{id} [put]
func (h *EntryHandler) Update(c *gin.Context) {
	stored, err := h.service.Entry(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid entry payload"))
		return
	}
	updated, err := h.service.UpdateEntry(c.Request.Context(), stored.Apply(models.NewAttendanceEntry{
		Name:   req.Name,
		Status: models.AttendanceStatus(req.Status),
		Notes:  req.Notes,
	}))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated)
}

// Delete godoc
// @Summary Delete an attendance entry
// @Tags Attendance
// @Produce json
// @Param id path string true "Entry ID"
// @Param confirm query bool true "Must be true to delete"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /entries/{id} [delete]
func (h *EntryHandler) Delete(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	if !confirmed {
		response.Error(c, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "Deletion must be confirmed."),
			map[string]string{"confirm": "Pass confirm=true to delete this entry."},
		))
		return
	}
	id := c.Param("id")
	deleted, err := h.service.DeleteEntry(c.Request.Context(), id, true)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DeleteResponse{ID: id, Deleted: deleted})
}

// Export godoc
// @Summary Export attendance entries
// @Tags Attendance
// @Produce octet-stream
// @Param format path string true "csv, pdf or xlsx"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /export/{format} [get]
func (h *EntryHandler) Export(c *gin.Context) {
	format, err := service.ParseExportFormat(c.Param("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.exports.Generate(format)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeDownload(c, result)
}
