// Package form stages the fields of a single attendance entry for create or
// edit and validates them before anything is sent to the remote sheet.
package form

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/attendance-sheet/internal/models"
	appErrors "github.com/noah-isme/attendance-sheet/pkg/errors"
)

// Mode is the current state of a Controller.
type Mode int

const (
	ModeClosed Mode = iota
	ModeCreating
	ModeEditing
)

func (m Mode) String() string {
	switch m {
	case ModeCreating:
		return "creating"
	case ModeEditing:
		return "editing"
	default:
		return "closed"
	}
}

// Field error messages.
const (
	MessageNameRequired  = "Name is required."
	MessageStatusInvalid = "Status must be one of Present, Absent, Late, Excused."
)

// ErrClosed is returned by Submit when no form is open.
var ErrClosed = errors.New("form is not open")

// Fields holds the editable values of an entry.
type Fields struct {
	Name   string `json:"name" validate:"notblank"`
	Status string `json:"status" validate:"attendance_status"`
	Notes  string `json:"notes"`
}

// Draft is the outcome of a valid submit: exactly one of Create or Update is set.
type Draft struct {
	Create *models.NewAttendanceEntry
	Update *models.AttendanceEntry
}

// ValidationError lists field-level problems keyed by field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return strings.Join(parts, " ")
}

// Unwrap exposes the validation kind so callers can map it to a 400.
func (e *ValidationError) Unwrap() error {
	return appErrors.WithDetails(appErrors.ErrValidation, e.Fields)
}

// NewValidator returns a validator with the form rules registered. It panics
// if a rule cannot be registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

// Register adds the notblank and attendance_status rules to v.
func Register(v *validator.Validate) error {
	rules := []struct {
		tag string
		fn  validator.Func
	}{
		{"notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		}},
		{"attendance_status", func(fl validator.FieldLevel) bool {
			return models.AttendanceStatus(fl.Field().String()).Valid()
		}},
	}
	for _, rule := range rules {
		if err := v.RegisterValidation(rule.tag, rule.fn); err != nil {
			return fmt.Errorf("register %s validation: %w", rule.tag, err)
		}
	}
	return nil
}

// Controller is the closed/creating/editing state machine behind the entry form.
// It is not safe for concurrent use; each request builds its own.
type Controller struct {
	validate *validator.Validate
	mode     Mode
	target   models.AttendanceEntry
	fields   Fields
	errors   map[string]string
}

// New returns a closed controller. A nil validator gets a fresh one.
func New(validate *validator.Validate) *Controller {
	if validate == nil {
		validate = NewValidator()
	}
	return &Controller{validate: validate}
}

// OpenCreate resets the fields to their defaults.
func (c *Controller) OpenCreate() {
	c.mode = ModeCreating
	c.target = models.AttendanceEntry{}
	c.fields = Fields{Status: string(models.AttendanceStatusPresent)}
	c.errors = nil
}

// OpenEdit seeds the fields from entry.
func (c *Controller) OpenEdit(entry models.AttendanceEntry) {
	c.mode = ModeEditing
	c.target = entry
	c.fields = Fields{Name: entry.Name, Status: string(entry.Status), Notes: entry.Notes}
	c.errors = nil
}

// Set replaces the current field values.
func (c *Controller) Set(fields Fields) {
	c.fields = fields
}

// Close discards the staged values.
func (c *Controller) Close() {
	c.mode = ModeClosed
	c.target = models.AttendanceEntry{}
	c.fields = Fields{}
	c.errors = nil
}

// Submit validates the staged fields and returns the draft to send. Field
// problems come back as *ValidationError and are also kept on the controller.
func (c *Controller) Submit() (Draft, error) {
	if c.mode == ModeClosed {
		return Draft{}, ErrClosed
	}

	c.errors = nil
	if err := c.validate.Struct(c.fields); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Draft{}, err
		}
		c.errors = fieldMessages(verrs)
		return Draft{}, &ValidationError{Fields: c.errors}
	}

	name := strings.TrimSpace(c.fields.Name)
	status := models.AttendanceStatus(c.fields.Status)
	if c.mode == ModeEditing {
		updated := c.target.Apply(models.NewAttendanceEntry{Name: name, Status: status, Notes: c.fields.Notes})
		return Draft{Update: &updated}, nil
	}
	return Draft{Create: &models.NewAttendanceEntry{Name: name, Status: status, Notes: c.fields.Notes}}, nil
}

// Mode returns the current state.
func (c *Controller) Mode() Mode { return c.mode }

// Fields returns the staged values.
func (c *Controller) Fields() Fields { return c.fields }

// Errors returns the field errors from the last Submit.
func (c *Controller) Errors() map[string]string { return c.errors }

// Target returns the entry being edited.
func (c *Controller) Target() (models.AttendanceEntry, bool) {
	return c.target, c.mode == ModeEditing
}

// Title is the heading shown above the form.
func (c *Controller) Title() string {
	if c.mode == ModeEditing {
		return "Edit Attendance Entry"
	}
	return "Add New Attendance Entry"
}

// SubmitLabel is the caption of the submit button.
func (c *Controller) SubmitLabel() string {
	if c.mode == ModeEditing {
		return "Save Changes"
	}
	return "Add Entry"
}

func fieldMessages(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() {
		case "Name":
			out["name"] = MessageNameRequired
		case "Status":
			out["status"] = MessageStatusInvalid
		default:
			out[strings.ToLower(fe.Field())] = fe.Error()
		}
	}
	return out
}
