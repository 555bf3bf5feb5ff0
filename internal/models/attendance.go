package models

// AttendanceStatus represents the status recorded for an attendance entry.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "Present"
	AttendanceStatusAbsent  AttendanceStatus = "Absent"
	AttendanceStatusLate    AttendanceStatus = "Late"
	AttendanceStatusExcused AttendanceStatus = "Excused"
)

// AttendanceStatuses lists every supported status in display order.
var AttendanceStatuses = []AttendanceStatus{
	AttendanceStatusPresent,
	AttendanceStatusAbsent,
	AttendanceStatusLate,
	AttendanceStatusExcused,
}

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceEntry is a single attendance row held by the remote sheet.
// ID and Date are assigned by the remote service and never change.
type AttendanceEntry struct {
	ID     string           `json:"id"`
	Date   string           `json:"date"`
	Name   string           `json:"name"`
	Status AttendanceStatus `json:"status"`
	Notes  string           `json:"notes"`
}

// NewAttendanceEntry is the create payload; the remote assigns id and date.
type NewAttendanceEntry struct {
	Name   string           `json:"name"`
	Status AttendanceStatus `json:"status"`
	Notes  string           `json:"notes"`
}

// Apply overwrites the editable fields of e with the values from n.
func (e AttendanceEntry) Apply(n NewAttendanceEntry) AttendanceEntry {
	e.Name = n.Name
	e.Status = n.Status
	e.Notes = n.Notes
	return e
}
