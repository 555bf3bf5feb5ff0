// Package view renders the server-side pages of the attendance app.
package view

import (
	"embed"
	"html/template"
	"time"

	"github.com/noah-isme/attendance-sheet/internal/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Template names.
const (
	PageSetup   = "setup.html"
	PageRecords = "records.html"
	PageForm    = "form.html"
	PageConfirm = "confirm.html"
)

// EmptyNotes is shown in place of blank notes.
const EmptyNotes = "-"

// Templates parses the embedded page set.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(FuncMap()).ParseFS(templatesFS, "templates/*.html")
}

// FuncMap exposes the display helpers to templates.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"statusClass": StatusClass,
		"formatDate":  FormatDate,
		"notes":       Notes,
	}
}

// StatusClass returns the badge class for a status.
func StatusClass(status models.AttendanceStatus) string {
	switch status {
	case models.AttendanceStatusPresent:
		return "badge badge-green"
	case models.AttendanceStatusAbsent:
		return "badge badge-red"
	case models.AttendanceStatusLate:
		return "badge badge-yellow"
	case models.AttendanceStatusExcused:
		return "badge badge-blue"
	default:
		return "badge badge-gray"
	}
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// FormatDate renders a remote date as YYYY-MM-DD, or returns it unchanged
// when it is not in a known layout.
func FormatDate(raw string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return raw
}

// Notes returns notes, or EmptyNotes when blank.
func Notes(notes string) string {
	if notes == "" {
		return EmptyNotes
	}
	return notes
}

// SetupPage is the unconfigured landing page.
type SetupPage struct {
	URL        string
	Error      string
	FieldError string
	Loading    bool
}

// RecordsPage lists the entries.
type RecordsPage struct {
	SheetURL      string
	Error         string
	Loading       bool
	Entries       []models.AttendanceEntry
	ExportEnabled bool
}

// FormPage is the create/edit form.
type FormPage struct {
	Title       string
	SubmitLabel string
	Action      string
	Fields      FormFields
	Errors      map[string]string
	Statuses    []models.AttendanceStatus
	Error       string
}

// FormFields mirrors the editable entry values.
type FormFields struct {
	Name   string
	Status string
	Notes  string
}

// ConfirmPage asks before deleting an entry.
type ConfirmPage struct {
	Entry  models.AttendanceEntry
	Action string
}

// ConfirmMessage is the delete confirmation prompt.
const ConfirmMessage = "Are you sure you want to delete this entry?"

// Message returns the confirmation prompt for templates.
func (ConfirmPage) Message() string { return ConfirmMessage }
