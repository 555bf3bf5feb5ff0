package dto

import "github.com/noah-isme/attendance-sheet/internal/models"

// SetupRequest binds the app to a spreadsheet web app URL.
type SetupRequest struct {
	URL string `json:"url" form:"url"`
}

// EntryRequest carries the editable fields of an entry.
type EntryRequest struct {
	Name   string `json:"name" form:"name"`
	Status string `json:"status" form:"status"`
	Notes  string `json:"notes" form:"notes"`
}

// StatusResponse describes the application state.
type StatusResponse struct {
	Configured bool   `json:"configured"`
	SheetURL   string `json:"sheet_url,omitempty"`
	Loading    bool   `json:"loading"`
	Error      string `json:"error,omitempty"`
	Entries    int    `json:"entries"`
}

// SetupResponse is returned after a successful setup.
type SetupResponse struct {
	SheetURL string                   `json:"sheet_url"`
	Entries  []models.AttendanceEntry `json:"entries"`
	Error    string                   `json:"error,omitempty"`
}

// DeleteResponse reports the outcome of a delete.
type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}
