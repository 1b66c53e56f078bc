// Package mocks provides testify mocks for the repository, service and
// push interfaces. Each constructor registers AssertExpectations with t.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"course-authoring/internal/domain"
	"course-authoring/internal/repository"
)

// T is the subset of testing.TB the constructors need.
type T interface {
	mock.TestingT
	Cleanup(func())
}

// MockCourseRepository is a mock of repository.CourseRepository.
type MockCourseRepository struct {
	mock.Mock
}

var _ repository.CourseRepository = (*MockCourseRepository)(nil)

// NewMockCourseRepository creates a MockCourseRepository bound to t.
func NewMockCourseRepository(t T) *MockCourseRepository {
	m := &MockCourseRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// MockCourseRepositoryExpecter records expectations by method name.
type MockCourseRepositoryExpecter struct {
	mock *mock.Mock
}

func (m *MockCourseRepository) EXPECT() *MockCourseRepositoryExpecter {
	return &MockCourseRepositoryExpecter{mock: &m.Mock}
}

func (m *MockCourseRepository) CreateCourse(ctx context.Context, c *domain.Course) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (e *MockCourseRepositoryExpecter) CreateCourse(ctx, c interface{}) *mock.Call {
	return e.mock.On("CreateCourse", ctx, c)
}

func (m *MockCourseRepository) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*domain.Course)
	return c, args.Error(1)
}

func (e *MockCourseRepositoryExpecter) GetCourse(ctx, id interface{}) *mock.Call {
	return e.mock.On("GetCourse", ctx, id)
}

func (m *MockCourseRepository) UpdateCourse(ctx context.Context, c *domain.Course, expectedVersion int64) error {
	args := m.Called(ctx, c, expectedVersion)
	return args.Error(0)
}

func (e *MockCourseRepositoryExpecter) UpdateCourse(ctx, c, expectedVersion interface{}) *mock.Call {
	return e.mock.On("UpdateCourse", ctx, c, expectedVersion)
}

func (m *MockCourseRepository) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]domain.Course, error) {
	args := m.Called(ctx, now, limit)
	courses, _ := args.Get(0).([]domain.Course)
	return courses, args.Error(1)
}

func (e *MockCourseRepositoryExpecter) ListDueScheduled(ctx, now, limit interface{}) *mock.Call {
	return e.mock.On("ListDueScheduled", ctx, now, limit)
}

func (m *MockCourseRepository) UpdateStats(ctx context.Context, id string, stats domain.CourseStats) error {
	args := m.Called(ctx, id, stats)
	return args.Error(0)
}

func (e *MockCourseRepositoryExpecter) UpdateStats(ctx, id, stats interface{}) *mock.Call {
	return e.mock.On("UpdateStats", ctx, id, stats)
}

// MockAssetRepository is a mock of repository.AssetRepository.
type MockAssetRepository struct {
	mock.Mock
}

var _ repository.AssetRepository = (*MockAssetRepository)(nil)

func NewMockAssetRepository(t T) *MockAssetRepository {
	m := &MockAssetRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

type MockAssetRepositoryExpecter struct {
	mock *mock.Mock
}

func (m *MockAssetRepository) EXPECT() *MockAssetRepositoryExpecter {
	return &MockAssetRepositoryExpecter{mock: &m.Mock}
}

func (m *MockAssetRepository) CreateAsset(ctx context.Context, a *domain.Asset) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (e *MockAssetRepositoryExpecter) CreateAsset(ctx, a interface{}) *mock.Call {
	return e.mock.On("CreateAsset", ctx, a)
}

func (m *MockAssetRepository) GetAsset(ctx context.Context, handle string) (*domain.Asset, error) {
	args := m.Called(ctx, handle)
	a, _ := args.Get(0).(*domain.Asset)
	return a, args.Error(1)
}

func (e *MockAssetRepositoryExpecter) GetAsset(ctx, handle interface{}) *mock.Call {
	return e.mock.On("GetAsset", ctx, handle)
}

// MockOptionRepository is a mock of repository.OptionRepository.
type MockOptionRepository struct {
	mock.Mock
}

var _ repository.OptionRepository = (*MockOptionRepository)(nil)

func NewMockOptionRepository(t T) *MockOptionRepository {
	m := &MockOptionRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

type MockOptionRepositoryExpecter struct {
	mock *mock.Mock
}

func (m *MockOptionRepository) EXPECT() *MockOptionRepositoryExpecter {
	return &MockOptionRepositoryExpecter{mock: &m.Mock}
}

func (m *MockOptionRepository) ListOptions(ctx context.Context, kind domain.OptionKind) ([]domain.Option, error) {
	args := m.Called(ctx, kind)
	opts, _ := args.Get(0).([]domain.Option)
	return opts, args.Error(1)
}

func (e *MockOptionRepositoryExpecter) ListOptions(ctx, kind interface{}) *mock.Call {
	return e.mock.On("ListOptions", ctx, kind)
}
