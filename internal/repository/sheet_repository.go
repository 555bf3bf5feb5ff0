package repository

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/noah-isme/attendance-sheet/internal/models"
	appErrors "github.com/noah-isme/attendance-sheet/pkg/errors"
	"github.com/noah-isme/attendance-sheet/pkg/sheetclient"
)

type remoteCaller interface {
	Call(ctx context.Context, action sheetclient.Action, payload interface{}) (json.RawMessage, error)
}

// SheetRepository maps the remote actions onto typed attendance operations.
type SheetRepository struct {
	client remoteCaller
}

// NewSheetRepository constructs the repository around a remote caller.
func NewSheetRepository(client remoteCaller) *SheetRepository {
	return &SheetRepository{client: client}
}

type setupResult struct {
	SheetURL string `json:"sheetUrl"`
}

type entriesResult struct {
	Entries []models.AttendanceEntry `json:"entries"`
}

type entryResult struct {
	Entry *models.AttendanceEntry `json:"entry"`
}

type deletePayload struct {
	ID string `json:"id"`
}

// Setup asks the remote to prepare its sheet and returns the sheet reference.
func (r *SheetRepository) Setup(ctx context.Context) (string, error) {
	var out setupResult
	if err := r.call(ctx, sheetclient.ActionSetup, nil, &out); err != nil {
		return "", err
	}
	sheetURL := strings.TrimSpace(out.SheetURL)
	if sheetURL == "" {
		return "", appErrors.Clone(appErrors.ErrRemote, "setup response did not include a sheet URL")
	}
	return sheetURL, nil
}

// GetEntries returns every entry in remote order.
func (r *SheetRepository) GetEntries(ctx context.Context) ([]models.AttendanceEntry, error) {
	var out entriesResult
	if err := r.call(ctx, sheetclient.ActionGetEntries, nil, &out); err != nil {
		return nil, err
	}
	if out.Entries == nil {
		return []models.AttendanceEntry{}, nil
	}
	return out.Entries, nil
}

// AddEntry creates an entry and returns it with the server-assigned id and date.
func (r *SheetRepository) AddEntry(ctx context.Context, entry models.NewAttendanceEntry) (models.AttendanceEntry, error) {
	var out entryResult
	if err := r.call(ctx, sheetclient.ActionAddEntry, entry, &out); err != nil {
		return models.AttendanceEntry{}, err
	}
	if out.Entry == nil || out.Entry.ID == "" {
		return models.AttendanceEntry{}, appErrors.Clone(appErrors.ErrRemote, "addEntry response did not include the created entry")
	}
	return *out.Entry, nil
}

// UpdateEntry replaces the remote record sharing entry.ID.
func (r *SheetRepository) UpdateEntry(ctx context.Context, entry models.AttendanceEntry) error {
	return r.call(ctx, sheetclient.ActionUpdateEntry, entry, nil)
}

// DeleteEntry removes the remote record with the given id.
func (r *SheetRepository) DeleteEntry(ctx context.Context, id string) error {
	return r.call(ctx, sheetclient.ActionDeleteEntry, deletePayload{ID: id}, nil)
}

func (r *SheetRepository) call(ctx context.Context, action sheetclient.Action, payload interface{}, dest interface{}) error {
	data, err := r.client.Call(ctx, action, payload)
	if err != nil {
		return err
	}
	if dest == nil || len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, "Invalid response from the remote service.")
	}
	return nil
}
