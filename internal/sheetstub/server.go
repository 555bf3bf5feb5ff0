// Package sheetstub is an in-memory stand-in for the spreadsheet web app. It
// speaks the same action/payload protocol and {data, error} envelope.
package sheetstub

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-sheet/internal/models"
	"github.com/noah-isme/attendance-sheet/pkg/sheetclient"
)

// Error messages returned in the envelope.
const (
	MessageNotSetUp      = "Sheet not set up. Run setup first."
	MessageEntryNotFound = "Entry not found"
	MessageNameRequired  = "Name is required."
	MessageInvalidStatus = "Invalid status"
	MessageBadRequest    = "Invalid request body"
)

// Options tune a Server.
type Options struct {
	SheetURL string
	Logger   *zap.Logger
	// Now supplies the creation date of new entries.
	Now func() time.Time
	// NewID supplies entry ids.
	NewID func() string
}

type failure struct {
	status  int
	message string
}

// Server holds the sheet rows and answers protocol calls.
type Server struct {
	mu       sync.Mutex
	sheetURL string
	setup    bool
	entries  []models.AttendanceEntry
	calls    map[sheetclient.Action]int
	failures []failure

	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// New constructs an empty, not yet set up sheet.
func New(opts Options) *Server {
	if opts.SheetURL == "" {
		opts.SheetURL = "https://docs.google.com/spreadsheets/d/attendance-stub"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Server{
		sheetURL: opts.SheetURL,
		calls:    map[sheetclient.Action]int{},
		logger:   opts.Logger,
		now:      opts.Now,
		newID:    opts.NewID,
	}
}

// Handler returns a gin engine answering POST on every path.
func (s *Server) Handler() http.Handler {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.POST("/*path", s.Handle)
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, envelope{Error: "Use POST with an action"})
	})
	return engine
}

// Seed marks the sheet as set up and replaces its rows.
func (s *Server) Seed(entries ...models.AttendanceEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setup = true
	s.entries = append([]models.AttendanceEntry(nil), entries...)
}

// Entries returns a copy of the current rows.
func (s *Server) Entries() []models.AttendanceEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AttendanceEntry(nil), s.entries...)
}

// Calls reports how many times action was received.
func (s *Server) Calls(action sheetclient.Action) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[action]
}

// TotalCalls reports the number of calls received.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// FailNext makes the next call answer with status and message.
func (s *Server) FailNext(status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{status: status, message: message})
}

type envelope struct {
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type request struct {
	Action  sheetclient.Action `json:"action"`
	Payload json.RawMessage    `json:"payload"`
}

// Handle answers one protocol call.
func (s *Server) Handle(c *gin.Context) {
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Error: MessageBadRequest})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[req.Action]++

	if len(s.failures) > 0 {
		f := s.failures[0]
		s.failures = s.failures[1:]
		s.logger.Debug("injected failure", zap.String("action", string(req.Action)), zap.Int("status", f.status))
		c.JSON(f.status, envelope{Error: f.message})
		return
	}

	status, body := s.dispatch(req)
	s.logger.Debug("sheet call", zap.String("action", string(req.Action)), zap.Int("status", status))
	c.JSON(status, body)
}

func (s *Server) dispatch(req request) (int, envelope) {
	if req.Action == sheetclient.ActionSetup {
		s.setup = true
		return http.StatusOK, envelope{Data: gin.H{"sheetUrl": s.sheetURL}}
	}

	switch req.Action {
	case sheetclient.ActionGetEntries, sheetclient.ActionAddEntry, sheetclient.ActionUpdateEntry, sheetclient.ActionDeleteEntry:
	default:
		return http.StatusBadRequest, envelope{Error: "Unknown action: " + string(req.Action)}
	}
	if !s.setup {
		return http.StatusConflict, envelope{Error: MessageNotSetUp}
	}

	switch req.Action {
	case sheetclient.ActionGetEntries:
		entries := append([]models.AttendanceEntry{}, s.entries...)
		return http.StatusOK, envelope{Data: gin.H{"entries": entries}}
	case sheetclient.ActionAddEntry:
		var in models.NewAttendanceEntry
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			return http.StatusBadRequest, envelope{Error: MessageBadRequest}
		}
		if msg := checkFields(in.Name, in.Status); msg != "" {
			return http.StatusBadRequest, envelope{Error: msg}
		}
		entry := models.AttendanceEntry{
			ID:     s.newID(),
			Date:   s.now().Format("2006-01-02"),
			Name:   in.Name,
			Status: in.Status,
			Notes:  in.Notes,
		}
		s.entries = append(s.entries, entry)
		return http.StatusOK, envelope{Data: gin.H{"entry": entry}}
	case sheetclient.ActionUpdateEntry:
		var in models.AttendanceEntry
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			return http.StatusBadRequest, envelope{Error: MessageBadRequest}
		}
		if msg := checkFields(in.Name, in.Status); msg != "" {
			return http.StatusBadRequest, envelope{Error: msg}
		}
		i := s.indexOf(in.ID)
		if i < 0 {
			return http.StatusNotFound, envelope{Error: MessageEntryNotFound}
		}
		stored := s.entries[i].Apply(models.NewAttendanceEntry{Name: in.Name, Status: in.Status, Notes: in.Notes})
		s.entries[i] = stored
		return http.StatusOK, envelope{Data: gin.H{"entry": stored}}
	default:
		var in struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			return http.StatusBadRequest, envelope{Error: MessageBadRequest}
		}
		i := s.indexOf(in.ID)
		if i < 0 {
			return http.StatusNotFound, envelope{Error: MessageEntryNotFound}
		}
		s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
		return http.StatusOK, envelope{Data: gin.H{"id": in.ID}}
	}
}

func (s *Server) indexOf(id string) int {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func checkFields(name string, status models.AttendanceStatus) string {
	if strings.TrimSpace(name) == "" {
		return MessageNameRequired
	}
	if !status.Valid() {
		return MessageInvalidStatus
	}
	return ""
}
