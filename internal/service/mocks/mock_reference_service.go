package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"refman/internal/model"
	"refman/internal/service"
)

type MockReferenceService struct {
	mock.Mock
}

var _ service.ReferenceService = (*MockReferenceService)(nil)

func (m *MockReferenceService) List(ctx context.Context) ([]model.Reference, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Reference), args.Error(1)
}

func (m *MockReferenceService) Get(ctx context.Context, id string) (*model.Reference, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reference), args.Error(1)
}

func (m *MockReferenceService) Add(ctx context.Context, ref model.Reference) (*model.Reference, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reference), args.Error(1)
}

func (m *MockReferenceService) UpdateReference(ctx context.Context, id string, changes model.ReferenceChanges) (*service.UpdatedReference, error) {
	args := m.Called(ctx, id, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UpdatedReference), args.Error(1)
}

func (m *MockReferenceService) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockReferenceService) Search(ctx context.Context, query string) ([]model.Reference, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Reference), args.Error(1)
}

func (m *MockReferenceService) Import(ctx context.Context, src io.Reader, mode service.ImportMode) (service.ImportResult, error) {
	args := m.Called(ctx, src, mode)
	return args.Get(0).(service.ImportResult), args.Error(1)
}

func (m *MockReferenceService) ImportFile(ctx context.Context, path string, mode service.ImportMode) (service.ImportResult, error) {
	args := m.Called(ctx, path, mode)
	return args.Get(0).(service.ImportResult), args.Error(1)
}

func (m *MockReferenceService) Export(ctx context.Context, w io.Writer) (int, error) {
	args := m.Called(ctx, w)
	if f, ok := args.Get(0).(func(context.Context, io.Writer) int); ok {
		return f(ctx, w), args.Error(1)
	}
	return args.Int(0), args.Error(1)
}

func (m *MockReferenceService) ExportFile(ctx context.Context, path string) (int, error) {
	args := m.Called(ctx, path)
	return args.Int(0), args.Error(1)
}

func (m *MockReferenceService) Backup(ctx context.Context, key string) (*service.BackupInfo, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BackupInfo), args.Error(1)
}

func (m *MockReferenceService) Restore(ctx context.Context, key string, mode service.ImportMode) (service.ImportResult, error) {
	args := m.Called(ctx, key, mode)
	return args.Get(0).(service.ImportResult), args.Error(1)
}

func (m *MockReferenceService) ListBackups(ctx context.Context) ([]service.BackupInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.BackupInfo), args.Error(1)
}

func (m *MockReferenceService) DeleteBackup(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
