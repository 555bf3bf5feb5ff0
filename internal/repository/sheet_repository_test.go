package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-sheet/internal/models"
	appErrors "github.com/noah-isme/attendance-sheet/pkg/errors"
	"github.com/noah-isme/attendance-sheet/pkg/sheetclient"
)

type callerStub struct {
	actions  []sheetclient.Action
	payloads []interface{}
	data     map[sheetclient.Action]string
	err      error
}

func (s *callerStub) Call(_ context.Context, action sheetclient.Action, payload interface{}) (json.RawMessage, error) {
	s.actions = append(s.actions, action)
	s.payloads = append(s.payloads, payload)
	if s.err != nil {
		return nil, s.err
	}
	if raw, ok := s.data[action]; ok {
		return json.RawMessage(raw), nil
	}
	return nil, nil
}

func TestSheetRepositorySetup(t *testing.T) {
	stub := &callerStub{data: map[sheetclient.Action]string{
		sheetclient.ActionSetup: `{"sheetUrl":"https://sheet.example/1"}`,
	}}
	repo := NewSheetRepository(stub)

	sheetURL, err := repo.Setup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://sheet.example/1", sheetURL)
	assert.Equal(t, []sheetclient.Action{sheetclient.ActionSetup}, stub.actions)
	assert.Nil(t, stub.payloads[0])
}

func TestSheetRepositorySetupRequiresSheetURL(t *testing.T) {
	stub := &callerStub{data: map[sheetclient.Action]string{sheetclient.ActionSetup: `{}`}}

	_, err := NewSheetRepository(stub).Setup(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrRemote))
}

func TestSheetRepositoryGetEntriesKeepsOrder(t *testing.T) {
	stub := &callerStub{data: map[sheetclient.Action]string{
		sheetclient.ActionGetEntries: `{"entries":[
			{"id":"b","date":"2024-01-02","name":"Grace","status":"Late","notes":""},
			{"id":"a","date":"2024-01-01","name":"Ada","status":"Present","notes":"early"}
		]}`,
	}}

	entries, err := NewSheetRepository(stub).GetEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].ID)
	assert.Equal(t, "a", entries[1].ID)
	assert.Equal(t, models.AttendanceStatusLate, entries[0].Status)
	assert.Equal(t, "early", entries[1].Notes)
}

func TestSheetRepositoryGetEntriesMissingList(t *testing.T) {
	stub := &callerStub{data: map[sheetclient.Action]string{sheetclient.ActionGetEntries: `{}`}}

	entries, err := NewSheetRepository(stub).GetEntries(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestSheetRepositoryAddEntry(t *testing.T) {
	stub := &callerStub{data: map[sheetclient.Action]string{
		sheetclient.ActionAddEntry: `{"entry":{"id":"7","date":"2024-01-01","name":"Ada","status":"Present","notes":""}}`,
	}}
	draft := models.NewAttendanceEntry{Name: "Ada", Status: models.AttendanceStatusPresent}

	entry, err := NewSheetRepository(stub).AddEntry(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceEntry{ID: "7", Date: "2024-01-01", Name: "Ada", Status: models.AttendanceStatusPresent}, entry)
	assert.Equal(t, draft, stub.payloads[0])
}

func TestSheetRepositoryAddEntryWithoutEntry(t *testing.T) {
	stub := &callerStub{data: map[sheetclient.Action]string{sheetclient.ActionAddEntry: `{"entry":null}`}}

	_, err := NewSheetRepository(stub).AddEntry(context.Background(), models.NewAttendanceEntry{Name: "Ada"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrRemote))
}

func TestSheetRepositoryUpdateAndDeletePayloads(t *testing.T) {
	stub := &callerStub{}
	repo := NewSheetRepository(stub)
	entry := models.AttendanceEntry{ID: "7", Date: "2024-01-01", Name: "Ada", Status: models.AttendanceStatusLate}

	require.NoError(t, repo.UpdateEntry(context.Background(), entry))
	require.NoError(t, repo.DeleteEntry(context.Background(), "7"))

	assert.Equal(t, []sheetclient.Action{sheetclient.ActionUpdateEntry, sheetclient.ActionDeleteEntry}, stub.actions)
	assert.Equal(t, entry, stub.payloads[0])
	encoded, err := json.Marshal(stub.payloads[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"7"}`, string(encoded))
}

func TestSheetRepositoryPropagatesErrors(t *testing.T) {
	stub := &callerStub{err: appErrors.Clone(appErrors.ErrRemote, "Sheet not found")}

	_, err := NewSheetRepository(stub).GetEntries(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Sheet not found", appErrors.Message(err))
}

func TestSheetRepositoryInvalidData(t *testing.T) {
	stub := &callerStub{data: map[sheetclient.Action]string{sheetclient.ActionGetEntries: `{"entries":"nope"}`}}

	_, err := NewSheetRepository(stub).GetEntries(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrRemote))
}
