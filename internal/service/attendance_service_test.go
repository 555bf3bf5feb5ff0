package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-sheet/internal/form"
	"github.com/noah-isme/attendance-sheet/internal/models"
	"github.com/noah-isme/attendance-sheet/internal/repository"
	appErrors "github.com/noah-isme/attendance-sheet/pkg/errors"
)

type gatewayStub struct {
	mu       sync.Mutex
	endpoint string
	calls    []string
	added    []models.NewAttendanceEntry

	sheetURL string
	entries  []models.AttendanceEntry
	created  models.AttendanceEntry
	err      error
	block    chan struct{}
}

func (g *gatewayStub) record(action string) error {
	g.mu.Lock()
	g.calls = append(g.calls, action)
	block := g.block
	g.mu.Unlock()
	if block != nil {
		<-block
	}
	return g.err
}

func (g *gatewayStub) Setup(context.Context) (string, error) {
	if err := g.record("setup"); err != nil {
		return "", err
	}
	return g.sheetURL, nil
}

func (g *gatewayStub) GetEntries(context.Context) ([]models.AttendanceEntry, error) {
	if err := g.record("getEntries"); err != nil {
		return nil, err
	}
	return g.entries, nil
}

func (g *gatewayStub) AddEntry(_ context.Context, entry models.NewAttendanceEntry) (models.AttendanceEntry, error) {
	g.mu.Lock()
	g.added = append(g.added, entry)
	g.mu.Unlock()
	if err := g.record("addEntry"); err != nil {
		return models.AttendanceEntry{}, err
	}
	return g.created, nil
}

func (g *gatewayStub) UpdateEntry(context.Context, models.AttendanceEntry) error {
	return g.record("updateEntry")
}

func (g *gatewayStub) DeleteEntry(context.Context, string) error {
	return g.record("deleteEntry")
}

func (g *gatewayStub) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.calls))
	copy(out, g.calls)
	return out
}

type bindingRepoStub struct {
	binding models.Binding
	saved   []models.Binding
	loadErr error
	saveErr error
}

func (b *bindingRepoStub) Load(context.Context) (models.Binding, error) {
	return b.binding, b.loadErr
}

func (b *bindingRepoStub) Save(_ context.Context, binding models.Binding) error {
	if b.saveErr != nil {
		return b.saveErr
	}
	b.saved = append(b.saved, binding)
	b.binding = binding
	return nil
}

// gatewayRegistry hands out one stub per endpoint so tests can inspect calls.
type gatewayRegistry struct {
	mu       sync.Mutex
	gateways map[string]*gatewayStub
	template gatewayStub
}

func (r *gatewayRegistry) factory(endpoint string) SheetGateway {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gateways == nil {
		r.gateways = map[string]*gatewayStub{}
	}
	if gw, ok := r.gateways[endpoint]; ok {
		return gw
	}
	gw := &gatewayStub{
		endpoint: endpoint,
		sheetURL: r.template.sheetURL,
		entries:  r.template.entries,
		created:  r.template.created,
		err:      r.template.err,
	}
	if endpoint == "" {
		gw.err = appErrors.ErrConfiguration
	}
	r.gateways[endpoint] = gw
	return gw
}

func (r *gatewayRegistry) get(endpoint string) *gatewayStub {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gateways[endpoint]
}

const (
	testEndpoint = "https://script.example/exec"
	testWait     = time.Second
	testTick     = 5 * time.Millisecond
)

func configuredService(t *testing.T, entries []models.AttendanceEntry) (*AttendanceService, *gatewayStub, *bindingRepoStub) {
	t.Helper()
	bindings := &bindingRepoStub{binding: models.Binding{EndpointURL: testEndpoint, SheetURL: "https://sheet.example/1"}}
	reg := &gatewayRegistry{template: gatewayStub{entries: entries}}
	svc := NewAttendanceService(bindings, reg.factory, repository.NewEntryStore(), NewMetricsService(), nil, nil)
	require.NoError(t, svc.Start(context.Background()))
	gw := reg.get(testEndpoint)
	require.NotNil(t, gw)
	return svc, gw, bindings
}

func TestStartUnconfiguredIssuesNoCalls(t *testing.T) {
	reg := &gatewayRegistry{}
	svc := NewAttendanceService(&bindingRepoStub{}, reg.factory, repository.NewEntryStore(), nil, nil, nil)

	require.NoError(t, svc.Start(context.Background()))
	state := svc.Snapshot()
	assert.False(t, state.Configured)
	assert.Empty(t, state.Entries)
	assert.Empty(t, reg.get("").Calls())
}

func TestRefreshWithoutEndpointFailsWithConfigurationError(t *testing.T) {
	reg := &gatewayRegistry{}
	svc := NewAttendanceService(&bindingRepoStub{}, reg.factory, repository.NewEntryStore(), nil, nil, nil)
	require.NoError(t, svc.Start(context.Background()))

	err := svc.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConfiguration))
	assert.Equal(t, "Google Apps Script URL is not set.", svc.Snapshot().Error)
	assert.False(t, svc.Configured())
}

func TestStartLoadsEntriesWhenConfigured(t *testing.T) {
	entries := []models.AttendanceEntry{{ID: "2", Name: "Grace"}, {ID: "1", Name: "Ada"}}
	svc, gw, _ := configuredService(t, entries)

	assert.Equal(t, []string{"getEntries"}, gw.Calls())
	state := svc.Snapshot()
	assert.True(t, state.Configured)
	assert.Equal(t, entries, state.Entries)
	assert.False(t, state.Loading)
}

func TestStartPropagatesBindingLoadError(t *testing.T) {
	reg := &gatewayRegistry{}
	svc := NewAttendanceService(&bindingRepoStub{loadErr: errors.New("disk")}, reg.factory, repository.NewEntryStore(), nil, nil, nil)
	require.Error(t, svc.Start(context.Background()))
}

func TestSetupPersistsBindingAndLoadsEntries(t *testing.T) {
	bindings := &bindingRepoStub{}
	reg := &gatewayRegistry{template: gatewayStub{
		sheetURL: "https://sheet.example/1",
		entries:  []models.AttendanceEntry{{ID: "1", Name: "Ada"}},
	}}
	svc := NewAttendanceService(bindings, reg.factory, repository.NewEntryStore(), nil, nil, nil)
	require.NoError(t, svc.Start(context.Background()))

	binding, err := svc.Setup(context.Background(), "  "+testEndpoint+" ")
	require.NoError(t, err)
	assert.Equal(t, testEndpoint, binding.EndpointURL)
	assert.Equal(t, "https://sheet.example/1", binding.SheetURL)

	require.Len(t, bindings.saved, 1)
	assert.Equal(t, testEndpoint, bindings.saved[0].EndpointURL)
	assert.Equal(t, "https://sheet.example/1", bindings.saved[0].SheetURL)

	assert.Equal(t, []string{"setup", "getEntries"}, reg.get(testEndpoint).Calls())
	state := svc.Snapshot()
	assert.True(t, state.Configured)
	assert.Equal(t, "https://sheet.example/1", state.SheetURL)
	assert.Len(t, state.Entries, 1)
}

func TestSetupFailureKeepsUnconfigured(t *testing.T) {
	bindings := &bindingRepoStub{}
	reg := &gatewayRegistry{template: gatewayStub{err: appErrors.Clone(appErrors.ErrRemote, "Script not deployed")}}
	svc := NewAttendanceService(bindings, reg.factory, repository.NewEntryStore(), nil, nil, nil)
	require.NoError(t, svc.Start(context.Background()))

	_, err := svc.Setup(context.Background(), testEndpoint)
	require.Error(t, err)
	assert.Empty(t, bindings.saved)
	state := svc.Snapshot()
	assert.False(t, state.Configured)
	assert.Equal(t, "Script not deployed", state.Error)
	assert.Equal(t, []string{"setup"}, reg.get(testEndpoint).Calls())
}

func TestSetupSaveFailureDoesNotSwapBinding(t *testing.T) {
	bindings := &bindingRepoStub{saveErr: errors.New("read-only")}
	reg := &gatewayRegistry{template: gatewayStub{sheetURL: "https://sheet.example/1"}}
	svc := NewAttendanceService(bindings, reg.factory, repository.NewEntryStore(), nil, nil, nil)
	require.NoError(t, svc.Start(context.Background()))

	_, err := svc.Setup(context.Background(), testEndpoint)
	require.Error(t, err)
	assert.False(t, svc.Configured())
	assert.NotEmpty(t, svc.Snapshot().Error)
}

func TestSetupRejectsInvalidURLWithoutRemoteCall(t *testing.T) {
	reg := &gatewayRegistry{}
	svc := NewAttendanceService(&bindingRepoStub{}, reg.factory, repository.NewEntryStore(), nil, nil, nil)
	require.NoError(t, svc.Start(context.Background()))

	for _, raw := range []string{"", "   ", "not a url"} {
		_, err := svc.Setup(context.Background(), raw)
		require.Error(t, err)
		assert.True(t, errors.Is(err, appErrors.ErrValidation))
		assert.Equal(t, MessageInvalidEndpoint, appErrors.Message(err))
	}
	assert.Nil(t, reg.get("not a url"))
	assert.Empty(t, svc.Snapshot().Error)
}

func TestAddEntryAppendsReturnedEntry(t *testing.T) {
	svc, gw, _ := configuredService(t, []models.AttendanceEntry{{ID: "1", Name: "Grace"}})
	gw.created = models.AttendanceEntry{ID: "7", Date: "2024-01-01", Name: "Ada", Status: models.AttendanceStatusPresent}

	created, err := svc.AddEntry(context.Background(), models.NewAttendanceEntry{Name: "Ada", Status: models.AttendanceStatusPresent})
	require.NoError(t, err)
	assert.Equal(t, gw.created, created)

	entries := svc.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, gw.created, entries[1])
	count := 0
	for _, e := range entries {
		if e.ID == "7" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestAddEntryWithoutStatusDefaultsToPresent(t *testing.T) {
	svc, gw, _ := configuredService(t, nil)
	gw.created = models.AttendanceEntry{ID: "7", Date: "2024-01-01", Name: "Ada", Status: models.AttendanceStatusPresent}

	created, err := svc.AddEntry(context.Background(), models.NewAttendanceEntry{Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "7", created.ID)
	assert.Equal(t, []string{"getEntries", "addEntry"}, gw.Calls())
	require.Len(t, gw.added, 1)
	assert.Equal(t, models.NewAttendanceEntry{Name: "Ada", Status: models.AttendanceStatusPresent}, gw.added[0])
}

func TestAddEntryBlankNameNeverCallsRemote(t *testing.T) {
	svc, gw, _ := configuredService(t, nil)

	_, err := svc.AddEntry(context.Background(), models.NewAttendanceEntry{Name: "   ", Status: models.AttendanceStatusPresent})
	var verr *form.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, form.MessageNameRequired, verr.Fields["name"])
	assert.Equal(t, []string{"getEntries"}, gw.Calls())
	assert.Empty(t, svc.Snapshot().Error)
}

func TestUpdateEntryReplacesOnlyMatchingEntry(t *testing.T) {
	entries := []models.AttendanceEntry{
		{ID: "1", Date: "2024-01-01", Name: "Ada", Status: models.AttendanceStatusPresent},
		{ID: "2", Date: "2024-01-01", Name: "Grace", Status: models.AttendanceStatusPresent},
	}
	svc, gw, _ := configuredService(t, entries)

	changed := entries[1]
	changed.Status = models.AttendanceStatusLate
	changed.Notes = "train"
	updated, err := svc.UpdateEntry(context.Background(), changed)
	require.NoError(t, err)
	assert.Equal(t, changed, updated)

	got := svc.Entries()
	assert.Equal(t, entries[0], got[0])
	assert.Equal(t, changed, got[1])
	assert.Equal(t, []string{"getEntries", "updateEntry"}, gw.Calls())
}

func TestUpdateEntryRequiresID(t *testing.T) {
	svc, gw, _ := configuredService(t, nil)
	_, err := svc.UpdateEntry(context.Background(), models.AttendanceEntry{Name: "Ada", Status: models.AttendanceStatusPresent})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, []string{"getEntries"}, gw.Calls())
}

func TestDeleteEntryRequiresConfirmation(t *testing.T) {
	entries := []models.AttendanceEntry{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	svc, gw, _ := configuredService(t, entries)

	deleted, err := svc.DeleteEntry(context.Background(), "2", false)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, entries, svc.Entries())
	assert.Equal(t, []string{"getEntries"}, gw.Calls())

	deleted, err = svc.DeleteEntry(context.Background(), "2", true)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []models.AttendanceEntry{{ID: "1"}, {ID: "3"}}, svc.Entries())
}

func TestRemoteFailureLeavesStoreUnchanged(t *testing.T) {
	entries := []models.AttendanceEntry{{ID: "1", Name: "Ada", Status: models.AttendanceStatusPresent}}
	svc, gw, _ := configuredService(t, entries)
	gw.err = appErrors.Clone(appErrors.ErrRemote, "Sheet not found")

	_, err := svc.AddEntry(context.Background(), models.NewAttendanceEntry{Name: "Grace", Status: models.AttendanceStatusPresent})
	require.Error(t, err)
	assert.Equal(t, "Sheet not found", svc.Snapshot().Error)

	_, err = svc.UpdateEntry(context.Background(), models.AttendanceEntry{ID: "1", Name: "Changed", Status: models.AttendanceStatusAbsent})
	require.Error(t, err)

	_, err = svc.DeleteEntry(context.Background(), "1", true)
	require.Error(t, err)

	assert.Equal(t, entries, svc.Entries())
	assert.False(t, svc.Snapshot().Loading)
}

func TestErrorClearedByNextOperation(t *testing.T) {
	svc, gw, _ := configuredService(t, nil)
	gw.err = appErrors.Clone(appErrors.ErrRemote, "Sheet not found")
	require.Error(t, svc.Refresh(context.Background()))
	require.Equal(t, "Sheet not found", svc.Snapshot().Error)

	gw.err = nil
	require.NoError(t, svc.Refresh(context.Background()))
	assert.Empty(t, svc.Snapshot().Error)

	gw.err = appErrors.Clone(appErrors.ErrRemote, "again")
	require.Error(t, svc.Refresh(context.Background()))
	svc.ClearError()
	assert.Empty(t, svc.Snapshot().Error)
}

func TestLoadingReflectsInFlightCalls(t *testing.T) {
	svc, gw, _ := configuredService(t, nil)
	gw.mu.Lock()
	gw.block = make(chan struct{})
	gw.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- svc.Refresh(context.Background()) }()

	require.Eventually(t, func() bool { return svc.Snapshot().Loading }, testWait, testTick)

	gw.mu.Lock()
	close(gw.block)
	gw.block = nil
	gw.mu.Unlock()

	require.NoError(t, <-done)
	assert.False(t, svc.Snapshot().Loading)
}

func TestEntryNotFound(t *testing.T) {
	svc, _, _ := configuredService(t, []models.AttendanceEntry{{ID: "1"}})

	_, err := svc.Entry("missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	entry, err := svc.Entry("1")
	require.NoError(t, err)
	assert.Equal(t, "1", entry.ID)
}
