package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/osint-helper/pkg/database"
	"github.com/mikeboe/osint-helper/pkg/llm"
	"github.com/mikeboe/osint-helper/pkg/research"
)

func TestCreateInvestigationCompletes(t *testing.T) {
	runner := &fakeRunner{answer: "Jane works at Acme."}
	s, store := newTestService(runner, nil)

	inv, err := s.CreateInvestigation(context.Background(), CreateInvestigationRequest{Subject: "  Jane Doe "})
	require.NoError(t, err)
	assert.Equal(t, KindLookup, inv.Kind)
	assert.Equal(t, "Jane Doe", inv.Subject)
	s.Wait()

	got, err := s.GetInvestigation(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, database.StatusCompleted, got.Status)
	require.NotNil(t, got.Report)
	assert.Equal(t, "Jane works at Acme.", *got.Report)
	assert.Equal(t, []string{"Jane Doe"}, runner.lookups)

	logs, err := store.GetLogs(context.Background(), inv.ID)
	require.NoError(t, err)
	var messages []string
	for _, l := range logs {
		messages = append(messages, l.Message)
	}
	assert.Contains(t, messages, "Looking up")
	assert.Contains(t, messages, "Investigation completed")
}

func TestCreateResearchInvestigationSavesState(t *testing.T) {
	runner := &fakeRunner{answer: "answer"}
	s, _ := newTestService(runner, nil)

	rounds := 3
	inv, err := s.CreateInvestigation(context.Background(), CreateInvestigationRequest{
		Kind:    "Research",
		Subject: "acme breach",
		Rounds:  &rounds,
	})
	require.NoError(t, err)
	s.Wait()

	got, err := s.GetInvestigation(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, database.StatusCompleted, got.Status)

	var state research.State
	require.NoError(t, json.Unmarshal(got.State, &state))
	assert.Equal(t, "answer", state.Phase)
	assert.Equal(t, []string{"acme breach"}, runner.research)
}

func TestCreatePERAInvestigation(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newTestService(runner, nil)

	inv, err := s.CreateInvestigation(context.Background(), CreateInvestigationRequest{
		Kind:     KindPERA,
		Subject:  "Jane Doe",
		Username: "jdoe",
		Location: "Berlin",
	})
	require.NoError(t, err)
	s.Wait()

	got, err := s.GetInvestigation(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, database.StatusCompleted, got.Status)
	require.NotNil(t, got.Report)
	assert.Contains(t, *got.Report, "Verify identity of Jane Doe")
	require.Len(t, runner.subjects, 1)
	assert.Equal(t, research.Subject{Name: "Jane Doe", Username: "jdoe", Location: "Berlin"}, runner.subjects[0])
}

func TestSentinelAnswerFailsInvestigation(t *testing.T) {
	runner := &fakeRunner{answer: llm.SentinelPrefix + "all providers failed"}
	s, _ := newTestService(runner, nil)

	inv, err := s.CreateInvestigation(context.Background(), CreateInvestigationRequest{Subject: "Jane Doe"})
	require.NoError(t, err)
	s.Wait()

	got, err := s.GetInvestigation(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, database.StatusFailed, got.Status)
	assert.Nil(t, got.Report)
}

func TestCreateInvestigationValidation(t *testing.T) {
	s, _ := newTestService(&fakeRunner{}, nil)
	negative := -1

	for name, req := range map[string]CreateInvestigationRequest{
		"empty subject":   {Subject: "   "},
		"unknown kind":    {Kind: "stalk", Subject: "x"},
		"negative rounds": {Subject: "x", Rounds: &negative},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.CreateInvestigation(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	s.Wait()
}

func TestGetInvestigationNotFound(t *testing.T) {
	s, _ := newTestService(&fakeRunner{}, nil)
	_, err := s.GetInvestigation(context.Background(), uuid.New())
	assert.ErrorIs(t, err, database.ErrNotFound)
}

// ctxStore rejects writes on a finished context, as pgx does.
type ctxStore struct {
	*memStore
}

func (c ctxStore) SetInvestigationStatus(ctx context.Context, id uuid.UUID, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memStore.SetInvestigationStatus(ctx, id, status)
}

func (c ctxStore) SaveInvestigationState(ctx context.Context, id uuid.UUID, state any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memStore.SaveInvestigationState(ctx, id, state)
}

func (c ctxStore) CompleteInvestigation(ctx context.Context, id uuid.UUID, result any, report string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memStore.CompleteInvestigation(ctx, id, result, report)
}

func TestJobsRecordResultAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := ctxStore{newMemStore()}
	s := NewService(ctx, store, &fakeRunner{}, nil, 1)
	s.Logger = quietLogger()
	cancel()

	inv, err := s.CreateInvestigation(context.Background(), CreateInvestigationRequest{Kind: KindPERA, Subject: "Jane Doe"})
	require.NoError(t, err)
	s.Wait()

	got, err := s.GetInvestigation(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, database.StatusCompleted, got.Status)
	require.NotNil(t, got.Report)
}
