package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-sheet/internal/form"
	"github.com/noah-isme/attendance-sheet/internal/models"
	appErrors "github.com/noah-isme/attendance-sheet/pkg/errors"
	"github.com/noah-isme/attendance-sheet/pkg/middleware/requestid"
	"github.com/noah-isme/attendance-sheet/pkg/sheetclient"
)

// MessageInvalidEndpoint is shown when the setup URL cannot be used.
const MessageInvalidEndpoint = "Please enter a valid Web App URL."

// SheetGateway performs the typed remote actions against one endpoint.
type SheetGateway interface {
	Setup(ctx context.Context) (string, error)
	GetEntries(ctx context.Context) ([]models.AttendanceEntry, error)
	AddEntry(ctx context.Context, entry models.NewAttendanceEntry) (models.AttendanceEntry, error)
	UpdateEntry(ctx context.Context, entry models.AttendanceEntry) error
	DeleteEntry(ctx context.Context, id string) error
}

// GatewayFactory builds a gateway bound to endpoint.
type GatewayFactory func(endpoint string) SheetGateway

type bindingRepository interface {
	Load(ctx context.Context) (models.Binding, error)
	Save(ctx context.Context, binding models.Binding) error
}

type entryStore interface {
	Load(entries []models.AttendanceEntry)
	Append(entry models.AttendanceEntry)
	Replace(entry models.AttendanceEntry) bool
	Remove(id string) bool
	Get(id string) (models.AttendanceEntry, bool)
	List() []models.AttendanceEntry
	Len() int
}

// AttendanceService owns the setup state, the local entry mirror and the
// aggregated loading/error indicators.
type AttendanceService struct {
	bindings   bindingRepository
	newGateway GatewayFactory
	store      entryStore
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger

	mu      sync.RWMutex
	binding models.Binding
	gateway SheetGateway
	lastErr string

	inflight atomic.Int64
}

// NewAttendanceService constructs the service. Call Start before serving.
func NewAttendanceService(bindings bindingRepository, newGateway GatewayFactory, store entryStore, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := form.Register(validate); err != nil {
		panic(err)
	}
	svc := &AttendanceService{
		bindings:   bindings,
		newGateway: newGateway,
		store:      store,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
	svc.gateway = newGateway("")
	return svc
}

// Start reads the persisted binding and, when setup is complete, loads the
// entries. A failed initial load is recorded as the current error only.
func (s *AttendanceService) Start(ctx context.Context) error {
	start := time.Now()
	binding, err := s.bindings.Load(ctx)
	s.metrics.ObserveBindingOperation("load", time.Since(start))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.binding = binding
	s.gateway = s.newGateway(binding.EndpointURL)
	s.mu.Unlock()

	if !binding.Configured() {
		s.logger.Info("attendance sheet not configured yet")
		return nil
	}
	s.logger.Info("attendance sheet binding loaded", zap.String("endpoint", sheetclient.RedactURL(binding.EndpointURL)))
	_ = s.Refresh(ctx)
	return nil
}

// Binding returns the current binding.
func (s *AttendanceService) Binding() models.Binding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.binding
}

// Configured reports whether setup has completed.
func (s *AttendanceService) Configured() bool {
	return s.Binding().Configured()
}

// Snapshot returns the state to render.
func (s *AttendanceService) Snapshot() models.AppState {
	s.mu.RLock()
	binding := s.binding
	lastErr := s.lastErr
	s.mu.RUnlock()

	return models.AppState{
		Configured:  binding.Configured(),
		EndpointURL: binding.EndpointURL,
		SheetURL:    binding.SheetURL,
		Loading:     s.inflight.Load() > 0,
		Error:       lastErr,
		Entries:     s.store.List(),
	}
}

// Entries returns the store contents in display order.
func (s *AttendanceService) Entries() []models.AttendanceEntry {
	return s.store.List()
}

// Entry returns the stored entry with id.
func (s *AttendanceService) Entry(id string) (models.AttendanceEntry, error) {
	entry, ok := s.store.Get(id)
	if !ok {
		return models.AttendanceEntry{}, appErrors.Clone(appErrors.ErrNotFound, "attendance entry not found")
	}
	return entry, nil
}

// ClearError dismisses the current error message.
func (s *AttendanceService) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

// Setup binds the application to endpoint. The binding is persisted and swapped
// in only after the remote setup succeeds; the entries are then loaded.
func (s *AttendanceService) Setup(ctx context.Context, endpoint string) (models.Binding, error) {
	endpoint = strings.TrimSpace(endpoint)
	if err := s.validator.Var(endpoint, "required,url"); err != nil {
		return models.Binding{}, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, MessageInvalidEndpoint),
			map[string]string{"url": MessageInvalidEndpoint},
		)
	}

	candidate := s.newGateway(endpoint)
	var binding models.Binding
	err := s.track(ctx, sheetclient.ActionSetup, func(ctx context.Context, _ SheetGateway) error {
		sheetURL, err := candidate.Setup(ctx)
		if err != nil {
			return err
		}
		binding = models.Binding{EndpointURL: endpoint, SheetURL: sheetURL, UpdatedAt: time.Now().UTC()}

		start := time.Now()
		err = s.bindings.Save(ctx, binding)
		s.metrics.ObserveBindingOperation("save", time.Since(start))
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save the sheet binding")
		}

		s.mu.Lock()
		s.binding = binding
		s.gateway = candidate
		s.mu.Unlock()
		s.store.Load(nil)
		s.metrics.SetEntryCount(0)
		return nil
	})
	if err != nil {
		return models.Binding{}, err
	}

	s.logger.Info("attendance sheet connected",
		zap.String("endpoint", sheetclient.RedactURL(endpoint)),
		zap.String("sheet_url", binding.SheetURL),
	)
	_ = s.Refresh(ctx)
	return binding, nil
}

// Refresh replaces the store with the remote entries.
func (s *AttendanceService) Refresh(ctx context.Context) error {
	return s.track(ctx, sheetclient.ActionGetEntries, func(ctx context.Context, gw SheetGateway) error {
		entries, err := gw.GetEntries(ctx)
		if err != nil {
			return err
		}
		s.store.Load(entries)
		s.metrics.SetEntryCount(s.store.Len())
		return nil
	})
}

// AddEntry creates an entry remotely and appends the returned record. An
// empty status is sent as Present.
func (s *AttendanceService) AddEntry(ctx context.Context, entry models.NewAttendanceEntry) (models.AttendanceEntry, error) {
	c := form.New(s.validator)
	c.OpenCreate()
	fields := c.Fields()
	fields.Name = entry.Name
	fields.Notes = entry.Notes
	if entry.Status != "" {
		fields.Status = string(entry.Status)
	}
	c.Set(fields)
	draft, err := c.Submit()
	if err != nil {
		return models.AttendanceEntry{}, err
	}

	var created models.AttendanceEntry
	err = s.track(ctx, sheetclient.ActionAddEntry, func(ctx context.Context, gw SheetGateway) error {
		out, err := gw.AddEntry(ctx, *draft.Create)
		if err != nil {
			return err
		}
		created = out
		s.store.Append(out)
		s.metrics.SetEntryCount(s.store.Len())
		return nil
	})
	if err != nil {
		return models.AttendanceEntry{}, err
	}
	return created, nil
}

// UpdateEntry replaces the remote record and then the local one sharing its id.
func (s *AttendanceService) UpdateEntry(ctx context.Context, entry models.AttendanceEntry) (models.AttendanceEntry, error) {
	if strings.TrimSpace(entry.ID) == "" {
		return models.AttendanceEntry{}, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "Entry id is required."),
			map[string]string{"id": "Entry id is required."},
		)
	}
	c := form.New(s.validator)
	c.OpenEdit(entry)
	draft, err := c.Submit()
	if err != nil {
		return models.AttendanceEntry{}, err
	}
	updated := *draft.Update

	err = s.track(ctx, sheetclient.ActionUpdateEntry, func(ctx context.Context, gw SheetGateway) error {
		if err := gw.UpdateEntry(ctx, updated); err != nil {
			return err
		}
		if !s.store.Replace(updated) {
			s.logger.Debug("updated entry not present locally", zap.String("id", updated.ID))
		}
		return nil
	})
	if err != nil {
		return models.AttendanceEntry{}, err
	}
	return updated, nil
}

// DeleteEntry removes the entry remotely and then locally. Without
// confirmation nothing happens and false is returned.
func (s *AttendanceService) DeleteEntry(ctx context.Context, id string, confirmed bool) (bool, error) {
	if !confirmed {
		return false, nil
	}
	err := s.track(ctx, sheetclient.ActionDeleteEntry, func(ctx context.Context, gw SheetGateway) error {
		if err := gw.DeleteEntry(ctx, id); err != nil {
			return err
		}
		s.store.Remove(id)
		s.metrics.SetEntryCount(s.store.Len())
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// track runs one remote operation: the error is cleared on entry, the
// in-flight counter covers the whole call and failures become the current
// error message.
func (s *AttendanceService) track(ctx context.Context, action sheetclient.Action, fn func(context.Context, SheetGateway) error) error {
	s.mu.Lock()
	s.lastErr = ""
	gw := s.gateway
	s.mu.Unlock()

	s.metrics.SetInFlight(s.inflight.Add(1))
	defer func() {
		s.metrics.SetInFlight(s.inflight.Add(-1))
	}()

	err := fn(ctx, gw)
	if err == nil {
		return nil
	}

	msg := appErrors.Message(err)
	if errors.Is(err, context.Canceled) {
		msg = "The request was cancelled."
	}
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()

	s.logger.Warn("attendance operation failed",
		zap.String("action", string(action)),
		zap.String("request_id", requestid.FromContext(ctx)),
		zap.Error(err),
	)
	return err
}
