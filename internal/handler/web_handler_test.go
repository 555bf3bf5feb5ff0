package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-sheet/internal/form"
	"github.com/noah-isme/attendance-sheet/internal/models"
	"github.com/noah-isme/attendance-sheet/internal/repository"
	"github.com/noah-isme/attendance-sheet/internal/service"
	"github.com/noah-isme/attendance-sheet/internal/sheetstub"
	"github.com/noah-isme/attendance-sheet/internal/view"
	"github.com/noah-isme/attendance-sheet/pkg/sheetclient"
)

// appHarness wires the real service against an in-memory sheet.
type appHarness struct {
	stub     *sheetstub.Server
	endpoint string
	bindings *repository.FileBindingRepository
	service  *service.AttendanceService
	router   *gin.Engine
}

func newAppHarness(t *testing.T, ids ...string) *appHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	next := 0
	stub := sheetstub.New(sheetstub.Options{
		SheetURL: "https://docs.google.com/spreadsheets/d/abc",
		Now:      func() time.Time { return time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC) },
		NewID: func() string {
			next++
			if next <= len(ids) {
				return ids[next-1]
			}
			return strconv.Itoa(next)
		},
	})
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	base := sheetclient.New("", sheetclient.Options{HTTPClient: srv.Client(), Timeout: 5 * time.Second})
	gateways := func(endpoint string) service.SheetGateway {
		return repository.NewSheetRepository(base.WithEndpoint(endpoint))
	}
	bindings := repository.NewFileBindingRepository(filepath.Join(t.TempDir(), "binding.yaml"))
	validate := form.NewValidator()
	svc := service.NewAttendanceService(bindings, gateways, repository.NewEntryStore(), nil, validate, nil)
	require.NoError(t, svc.Start(context.Background()))

	tmpl, err := view.Templates()
	require.NoError(t, err)
	router := gin.New()
	router.SetHTMLTemplate(tmpl)
	NewWebHandler(svc, service.NewExportService(svc, nil, nil, nil, nil), validate).Register(router)

	return &appHarness{
		stub:     stub,
		endpoint: srv.URL + "/macros/s/abc/exec",
		bindings: bindings,
		service:  svc,
		router:   router,
	}
}

func (h *appHarness) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	h.router.ServeHTTP(w, req)
	return w
}

func (h *appHarness) post(path string, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	h.router.ServeHTTP(w, req)
	return w
}

func (h *appHarness) setup(t *testing.T) {
	t.Helper()
	w := h.post("/setup", url.Values{"url": {h.endpoint}})
	require.Equal(t, http.StatusSeeOther, w.Code)
}

func TestWebUnconfiguredRedirectsToSetup(t *testing.T) {
	h := newAppHarness(t)

	w := h.get("/")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/setup", w.Header().Get("Location"))

	w = h.get("/entries/new")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/setup", w.Header().Get("Location"))

	w = h.get("/setup")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Create Sheet &amp; Connect")
	assert.Zero(t, h.stub.TotalCalls())
}

func TestWebSetupPersistsAndLoads(t *testing.T) {
	h := newAppHarness(t)
	h.stub.Seed(models.AttendanceEntry{ID: "1", Date: "2024-05-01", Name: "Grace", Status: models.AttendanceStatusLate})

	w := h.post("/setup", url.Values{"url": {h.endpoint}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	stored, err := h.bindings.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, h.endpoint, stored.EndpointURL)
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/abc", stored.SheetURL)
	assert.Equal(t, 1, h.stub.Calls(sheetclient.ActionSetup))
	assert.Equal(t, 1, h.stub.Calls(sheetclient.ActionGetEntries))

	w = h.get("/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Connected to:")
	assert.Contains(t, body, "https://docs.google.com/spreadsheets/d/abc")
	assert.Contains(t, body, "Grace")
}

func TestWebSetupRejectsInvalidURL(t *testing.T) {
	h := newAppHarness(t)

	w := h.post("/setup", url.Values{"url": {"not a url"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), service.MessageInvalidEndpoint)
	assert.Zero(t, h.stub.TotalCalls())
	assert.False(t, h.service.Configured())
}

func TestWebSetupFailureShowsRemoteMessage(t *testing.T) {
	h := newAppHarness(t)
	h.stub.FailNext(http.StatusInternalServerError, "Exception: quota exceeded")

	w := h.post("/setup", url.Values{"url": {h.endpoint}})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Exception: quota exceeded")
	assert.False(t, h.service.Configured())
}

func TestWebCreateEntry(t *testing.T) {
	h := newAppHarness(t, "7")
	h.setup(t)

	w := h.get("/entries/new")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Add New Attendance Entry")
	assert.Contains(t, w.Body.String(), `<option value="Present" selected>`)

	w = h.post("/entries", url.Values{"name": {"Ada"}, "status": {"Present"}})
	require.Equal(t, http.StatusSeeOther, w.Code)

	entries := h.service.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "7", entries[0].ID)
	assert.Equal(t, "2024-05-06", entries[0].Date)
	assert.Equal(t, "Ada", entries[0].Name)

	w = h.get("/")
	assert.Contains(t, w.Body.String(), `data-id="7"`)
}

func TestWebCreateEntryBlankNameMakesNoCall(t *testing.T) {
	h := newAppHarness(t)
	h.setup(t)
	before := h.stub.TotalCalls()

	w := h.post("/entries", url.Values{"name": {"   "}, "status": {"Late"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), form.MessageNameRequired)
	assert.Contains(t, w.Body.String(), `<option value="Late" selected>`)
	assert.Equal(t, before, h.stub.TotalCalls())
	assert.Empty(t, h.service.Entries())
}

func TestWebEditEntry(t *testing.T) {
	h := newAppHarness(t)
	h.stub.Seed(
		models.AttendanceEntry{ID: "a", Date: "2024-05-01", Name: "Ada", Status: models.AttendanceStatusPresent},
		models.AttendanceEntry{ID: "b", Date: "2024-05-01", Name: "Grace", Status: models.AttendanceStatusPresent},
	)
	h.setup(t)

	w := h.get("/entries/a/edit")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Edit Attendance Entry")
	assert.Contains(t, w.Body.String(), "Save Changes")

	w = h.post("/entries/a", url.Values{"name": {"Ada L."}, "status": {"Excused"}, "notes": {"doctor"}})
	require.Equal(t, http.StatusSeeOther, w.Code)

	entries := h.service.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Ada L.", entries[0].Name)
	assert.Equal(t, models.AttendanceStatusExcused, entries[0].Status)
	assert.Equal(t, "2024-05-01", entries[0].Date)
	assert.Equal(t, "Grace", entries[1].Name)
	assert.Equal(t, 1, h.stub.Calls(sheetclient.ActionUpdateEntry))
}

func TestWebEditUnknownEntryRedirects(t *testing.T) {
	h := newAppHarness(t)
	h.setup(t)

	w := h.get("/entries/missing/edit")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestWebDeleteRequiresConfirmation(t *testing.T) {
	h := newAppHarness(t)
	h.stub.Seed(models.AttendanceEntry{ID: "a", Date: "2024-05-01", Name: "Ada", Status: models.AttendanceStatusPresent})
	h.setup(t)

	w := h.get("/entries/a/delete")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), view.ConfirmMessage)

	w = h.post("/entries/a/delete", url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Zero(t, h.stub.Calls(sheetclient.ActionDeleteEntry))
	assert.Len(t, h.service.Entries(), 1)

	w = h.post("/entries/a/delete", url.Values{"confirm": {"yes"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, 1, h.stub.Calls(sheetclient.ActionDeleteEntry))
	assert.Empty(t, h.service.Entries())
	assert.Empty(t, h.stub.Entries())
}

func TestWebRefreshFailureShowsBannerAndKeepsRows(t *testing.T) {
	h := newAppHarness(t)
	h.stub.Seed(
		models.AttendanceEntry{ID: "c", Date: "2024-05-03", Name: "Linus", Status: models.AttendanceStatusAbsent},
		models.AttendanceEntry{ID: "a", Date: "2024-05-01", Name: "Ada", Status: models.AttendanceStatusPresent},
	)
	h.setup(t)
	h.stub.FailNext(http.StatusNotFound, "Sheet not found")

	w := h.post("/refresh", url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = h.get("/")
	body := w.Body.String()
	assert.Contains(t, body, "Sheet not found")
	posC := strings.Index(body, `data-id="c"`)
	posA := strings.Index(body, `data-id="a"`)
	require.True(t, posC >= 0 && posA >= 0)
	assert.Less(t, posC, posA)

	w = h.post("/error/dismiss", url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.NotContains(t, h.get("/").Body.String(), "Sheet not found")
}

func TestWebExportDownload(t *testing.T) {
	h := newAppHarness(t)
	h.stub.Seed(models.AttendanceEntry{ID: "a", Date: "2024-05-01", Name: "Ada", Status: models.AttendanceStatusPresent})
	h.setup(t)

	w := h.get("/export/csv")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
	assert.Contains(t, w.Body.String(), "Ada")

	w = h.get("/export/docx")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
