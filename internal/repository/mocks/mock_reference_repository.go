package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"refman/internal/model"
)

type MockReferenceRepository struct {
	mock.Mock
}

func (m *MockReferenceRepository) ListAll(ctx context.Context) ([]model.Reference, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Reference), args.Error(1)
}

func (m *MockReferenceRepository) Get(ctx context.Context, id string) (*model.Reference, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reference), args.Error(1)
}

func (m *MockReferenceRepository) Add(ctx context.Context, ref model.Reference) (*model.Reference, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reference), args.Error(1)
}

func (m *MockReferenceRepository) Update(ctx context.Context, id string, changes model.ReferenceChanges) (*model.Reference, error) {
	args := m.Called(ctx, id, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reference), args.Error(1)
}

func (m *MockReferenceRepository) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockReferenceRepository) ImportBulk(ctx context.Context, entries []model.Reference, merge bool) (int, error) {
	args := m.Called(ctx, entries, merge)
	return args.Int(0), args.Error(1)
}

func (m *MockReferenceRepository) ExportAll(ctx context.Context, w io.Writer) (int, error) {
	args := m.Called(ctx, w)
	if f, ok := args.Get(0).(func(context.Context, io.Writer) int); ok {
		return f(ctx, w), args.Error(1)
	}
	return args.Int(0), args.Error(1)
}
