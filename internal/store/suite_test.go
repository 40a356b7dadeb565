package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonathan/candidate-intake/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	acmeExperience = `{"Experience":[{"Role":"Software Engineer","Company":"Acme","Dates":"2020-2022","Responsibilities":[]}],"Projects":[],"Roles":[]}`
	acmeQuestions  = `{"questions":[{"question":"Q1","basedOn":"Acme","options":["A","B","C","D"]}]}`
	acmeCustomized = `[{"question":"Q1","basedOn":"Acme","selectedAnswer":"Option A"}]`
	acmeBehavioral = `[{"question":"How do you handle conflict?","answer":"Talk it through","responseTime":7.5}]`
)

func decode(t *testing.T, raw []byte) map[string]json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

// runStoreSuite checks the behaviour every Store backend shares.
func runStoreSuite(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("read missing", func(t *testing.T) {
		_, err := s.Read(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid session", func(t *testing.T) {
		_, err := s.Read(ctx, "../../etc/passwd")
		assert.ErrorIs(t, err, ErrInvalidSession)
		err = s.WriteInitial(ctx, "not-a-uuid", json.RawMessage(`{}`), json.RawMessage(`{}`))
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("write then read round trips", func(t *testing.T) {
		id := uuid.NewString()
		require.NoError(t, s.WriteInitial(ctx, id, json.RawMessage(acmeExperience), json.RawMessage(acmeQuestions)))

		raw, err := s.Read(ctx, id)
		require.NoError(t, err)
		doc := decode(t, raw)
		assert.JSONEq(t, acmeExperience, string(doc[types.FieldParsedExperience]))
		assert.JSONEq(t, acmeQuestions, string(doc[types.FieldCustomizedQuestions]))
		assert.JSONEq(t, `"experience"`, string(doc[types.FieldPhase]))
		assert.JSONEq(t, fmt.Sprintf("%q", id), string(doc[types.FieldSessionID]))
	})

	t.Run("merge missing report", func(t *testing.T) {
		err := s.MergeField(ctx, uuid.NewString(), types.FieldCustomizedAnswers, json.RawMessage(acmeCustomized), types.PhaseQuestions)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("merge unknown field", func(t *testing.T) {
		id := uuid.NewString()
		require.NoError(t, s.WriteInitial(ctx, id, json.RawMessage(acmeExperience), json.RawMessage(acmeQuestions)))
		err := s.MergeField(ctx, id, "finalAnalysis", json.RawMessage(`{}`), types.PhaseSummary)
		assert.ErrorIs(t, err, ErrUnknownField)
	})

	t.Run("merge keeps other fields", func(t *testing.T) {
		id := uuid.NewString()
		require.NoError(t, s.WriteInitial(ctx, id, json.RawMessage(acmeExperience), json.RawMessage(acmeQuestions)))

		require.NoError(t, s.MergeField(ctx, id, types.FieldCustomizedAnswers, json.RawMessage(acmeCustomized), types.PhaseQuestions))

		raw, err := s.Read(ctx, id)
		require.NoError(t, err)
		doc := decode(t, raw)
		assert.JSONEq(t, acmeCustomized, string(doc[types.FieldCustomizedAnswers]))
		assert.JSONEq(t, acmeExperience, string(doc[types.FieldParsedExperience]))
		assert.JSONEq(t, acmeQuestions, string(doc[types.FieldCustomizedQuestions]))
		assert.JSONEq(t, `"questions"`, string(doc[types.FieldPhase]))
	})

	t.Run("sequential merges keep both", func(t *testing.T) {
		id := uuid.NewString()
		require.NoError(t, s.WriteInitial(ctx, id, json.RawMessage(acmeExperience), json.RawMessage(acmeQuestions)))

		require.NoError(t, s.MergeField(ctx, id, types.FieldCustomizedAnswers, json.RawMessage(acmeCustomized), types.PhaseQuestions))
		require.NoError(t, s.MergeField(ctx, id, types.FieldBehavioralAnswers, json.RawMessage(acmeBehavioral), types.PhaseBehavioral))

		raw, err := s.Read(ctx, id)
		require.NoError(t, err)
		doc := decode(t, raw)
		assert.JSONEq(t, acmeCustomized, string(doc[types.FieldCustomizedAnswers]))
		assert.JSONEq(t, acmeBehavioral, string(doc[types.FieldBehavioralAnswers]))
		assert.JSONEq(t, `"behavioral"`, string(doc[types.FieldPhase]))
	})

	t.Run("concurrent merges keep both", func(t *testing.T) {
		id := uuid.NewString()
		require.NoError(t, s.WriteInitial(ctx, id, json.RawMessage(acmeExperience), json.RawMessage(acmeQuestions)))

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs[0] = s.MergeField(ctx, id, types.FieldCustomizedAnswers, json.RawMessage(acmeCustomized), types.PhaseQuestions)
		}()
		go func() {
			defer wg.Done()
			errs[1] = s.MergeField(ctx, id, types.FieldBehavioralAnswers, json.RawMessage(acmeBehavioral), types.PhaseBehavioral)
		}()
		wg.Wait()
		require.NoError(t, errors.Join(errs...))

		raw, err := s.Read(ctx, id)
		require.NoError(t, err)
		doc := decode(t, raw)
		assert.Contains(t, doc, types.FieldCustomizedAnswers)
		assert.Contains(t, doc, types.FieldBehavioralAnswers)
		assert.JSONEq(t, `"behavioral"`, string(doc[types.FieldPhase]))
	})

	t.Run("merge ignores phase order", func(t *testing.T) {
		id := uuid.NewString()
		require.NoError(t, s.WriteInitial(ctx, id, json.RawMessage(acmeExperience), json.RawMessage(acmeQuestions)))

		require.NoError(t, s.MergeField(ctx, id, types.FieldBehavioralAnswers, json.RawMessage(acmeBehavioral), types.PhaseSummary))
		require.NoError(t, s.MergeField(ctx, id, types.FieldCustomizedAnswers, json.RawMessage(acmeCustomized), types.PhaseBehavioral))

		raw, err := s.Read(ctx, id)
		require.NoError(t, err)
		doc := decode(t, raw)
		assert.JSONEq(t, acmeBehavioral, string(doc[types.FieldBehavioralAnswers]))
		assert.JSONEq(t, acmeCustomized, string(doc[types.FieldCustomizedAnswers]))
		assert.JSONEq(t, `"summary"`, string(doc[types.FieldPhase]))
	})

	t.Run("upload resets", func(t *testing.T) {
		id := uuid.NewString()
		require.NoError(t, s.WriteInitial(ctx, id, json.RawMessage(acmeExperience), json.RawMessage(acmeQuestions)))
		require.NoError(t, s.MergeField(ctx, id, types.FieldCustomizedAnswers, json.RawMessage(acmeCustomized), types.PhaseQuestions))

		require.NoError(t, s.WriteInitial(ctx, id, json.RawMessage(`{"Experience":[]}`), json.RawMessage(acmeQuestions)))

		raw, err := s.Read(ctx, id)
		require.NoError(t, err)
		doc := decode(t, raw)
		assert.NotContains(t, doc, types.FieldCustomizedAnswers)
		assert.JSONEq(t, `{"Experience":[]}`, string(doc[types.FieldParsedExperience]))
		assert.JSONEq(t, `"experience"`, string(doc[types.FieldPhase]))
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		a, b := uuid.NewString(), uuid.NewString()
		require.NoError(t, s.WriteInitial(ctx, a, json.RawMessage(acmeExperience), json.RawMessage(acmeQuestions)))
		require.NoError(t, s.WriteInitial(ctx, b, json.RawMessage(`{"Experience":[]}`), json.RawMessage(acmeQuestions)))
		require.NoError(t, s.MergeField(ctx, a, types.FieldCustomizedAnswers, json.RawMessage(acmeCustomized), types.PhaseQuestions))

		raw, err := s.Read(ctx, b)
		require.NoError(t, err)
		doc := decode(t, raw)
		assert.NotContains(t, doc, types.FieldCustomizedAnswers)
		assert.JSONEq(t, `{"Experience":[]}`, string(doc[types.FieldParsedExperience]))
	})
}
