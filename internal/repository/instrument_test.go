package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refman/internal/model"
	"refman/internal/repository"
	"refman/internal/repository/mocks"
)

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m, err := repository.NewMetrics(reg)
	require.NoError(t, err)

	next := new(mocks.MockReferenceRepository)
	repo := repository.Instrument(next, "json", m)

	next.On("Get", ctx, "hit").Return(&model.Reference{ID: "hit"}, nil).Once()
	next.On("Get", ctx, "miss").Return(nil, nil).Once()
	next.On("Delete", ctx, "boom").Return(false, errors.New("disk full")).Once()

	ref, err := repo.Get(ctx, "hit")
	require.NoError(t, err)
	assert.Equal(t, "hit", ref.ID)

	ref, err = repo.Get(ctx, "miss")
	require.NoError(t, err)
	assert.Nil(t, ref)

	_, err = repo.Delete(ctx, "boom")
	assert.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Operations().WithLabelValues("json", "get", repository.OutcomeOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Operations().WithLabelValues("json", "get", repository.OutcomeMiss)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Operations().WithLabelValues("json", "delete", repository.OutcomeError)))
	next.AssertExpectations(t)
}

func TestInstrument_NilMetrics(t *testing.T) {
	next := new(mocks.MockReferenceRepository)
	assert.Same(t, repository.ReferenceRepository(next), repository.Instrument(next, "json", nil))
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := repository.NewMetrics(reg)
	require.NoError(t, err)
	_, err = repository.NewMetrics(reg)
	assert.Error(t, err)
}

func TestEnsureID(t *testing.T) {
	orig := repository.NewID
	repository.NewID = func() string { return "generated" }
	defer func() { repository.NewID = orig }()

	assert.Equal(t, "given", repository.EnsureID("given"))
	assert.Equal(t, "generated", repository.EnsureID(""))
}
