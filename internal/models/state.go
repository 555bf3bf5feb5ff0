package models

// AppState is a point-in-time view of the application for rendering.
type AppState struct {
	Configured  bool              `json:"configured"`
	EndpointURL string            `json:"endpoint_url,omitempty"`
	SheetURL    string            `json:"sheet_url,omitempty"`
	Loading     bool              `json:"loading"`
	Error       string            `json:"error,omitempty"`
	Entries     []AttendanceEntry `json:"entries"`
}
