package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"course-authoring/internal/domain"
	"course-authoring/internal/push"
	"course-authoring/internal/service"
)

// MockCourseServiceInterface is a mock of service.CourseServiceInterface.
type MockCourseServiceInterface struct {
	mock.Mock
}

var _ service.CourseServiceInterface = (*MockCourseServiceInterface)(nil)

func NewMockCourseServiceInterface(t T) *MockCourseServiceInterface {
	m := &MockCourseServiceInterface{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

type MockCourseServiceInterfaceExpecter struct {
	mock *mock.Mock
}

func (m *MockCourseServiceInterface) EXPECT() *MockCourseServiceInterfaceExpecter {
	return &MockCourseServiceInterfaceExpecter{mock: &m.Mock}
}

func course(args mock.Arguments) (*domain.Course, error) {
	c, _ := args.Get(0).(*domain.Course)
	return c, args.Error(1)
}

func (m *MockCourseServiceInterface) ListOptions(ctx context.Context, kind domain.OptionKind) ([]domain.Option, error) {
	args := m.Called(ctx, kind)
	opts, _ := args.Get(0).([]domain.Option)
	return opts, args.Error(1)
}

func (e *MockCourseServiceInterfaceExpecter) ListOptions(ctx, kind interface{}) *mock.Call {
	return e.mock.On("ListOptions", ctx, kind)
}

func (m *MockCourseServiceInterface) CreateCourse(ctx context.Context, userID string, payload domain.CoursePayload) (*domain.Course, error) {
	return course(m.Called(ctx, userID, payload))
}

func (e *MockCourseServiceInterfaceExpecter) CreateCourse(ctx, userID, payload interface{}) *mock.Call {
	return e.mock.On("CreateCourse", ctx, userID, payload)
}

func (m *MockCourseServiceInterface) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	return course(m.Called(ctx, id))
}

func (e *MockCourseServiceInterfaceExpecter) GetCourse(ctx, id interface{}) *mock.Call {
	return e.mock.On("GetCourse", ctx, id)
}

func (m *MockCourseServiceInterface) UpdateCourse(ctx context.Context, id string, payload domain.CoursePayload) (*domain.Course, error) {
	return course(m.Called(ctx, id, payload))
}

func (e *MockCourseServiceInterfaceExpecter) UpdateCourse(ctx, id, payload interface{}) *mock.Call {
	return e.mock.On("UpdateCourse", ctx, id, payload)
}

func (m *MockCourseServiceInterface) Publish(ctx context.Context, id string, expectedVersion int64) (*domain.Course, error) {
	return course(m.Called(ctx, id, expectedVersion))
}

func (e *MockCourseServiceInterfaceExpecter) Publish(ctx, id, expectedVersion interface{}) *mock.Call {
	return e.mock.On("Publish", ctx, id, expectedVersion)
}

func (m *MockCourseServiceInterface) Unpublish(ctx context.Context, id string, expectedVersion int64) (*domain.Course, error) {
	return course(m.Called(ctx, id, expectedVersion))
}

func (e *MockCourseServiceInterfaceExpecter) Unpublish(ctx, id, expectedVersion interface{}) *mock.Call {
	return e.mock.On("Unpublish", ctx, id, expectedVersion)
}

func (m *MockCourseServiceInterface) Schedule(ctx context.Context, id string, at time.Time, expectedVersion int64) (*domain.Course, error) {
	return course(m.Called(ctx, id, at, expectedVersion))
}

func (e *MockCourseServiceInterfaceExpecter) Schedule(ctx, id, at, expectedVersion interface{}) *mock.Call {
	return e.mock.On("Schedule", ctx, id, at, expectedVersion)
}

func (m *MockCourseServiceInterface) CancelSchedule(ctx context.Context, id string, expectedVersion int64) (*domain.Course, error) {
	return course(m.Called(ctx, id, expectedVersion))
}

func (e *MockCourseServiceInterfaceExpecter) CancelSchedule(ctx, id, expectedVersion interface{}) *mock.Call {
	return e.mock.On("CancelSchedule", ctx, id, expectedVersion)
}

func (m *MockCourseServiceInterface) SetVisibility(ctx context.Context, id string, isPublic bool, expectedVersion int64) (*domain.Course, error) {
	return course(m.Called(ctx, id, isPublic, expectedVersion))
}

func (e *MockCourseServiceInterfaceExpecter) SetVisibility(ctx, id, isPublic, expectedVersion interface{}) *mock.Call {
	return e.mock.On("SetVisibility", ctx, id, isPublic, expectedVersion)
}

func (m *MockCourseServiceInterface) UpdateStats(ctx context.Context, id string, stats domain.CourseStats) (*domain.Course, error) {
	return course(m.Called(ctx, id, stats))
}

func (e *MockCourseServiceInterfaceExpecter) UpdateStats(ctx, id, stats interface{}) *mock.Call {
	return e.mock.On("UpdateStats", ctx, id, stats)
}

func (m *MockCourseServiceInterface) UploadImage(ctx context.Context, courseID string, data []byte) (string, error) {
	args := m.Called(ctx, courseID, data)
	return args.String(0), args.Error(1)
}

func (e *MockCourseServiceInterfaceExpecter) UploadImage(ctx, courseID, data interface{}) *mock.Call {
	return e.mock.On("UploadImage", ctx, courseID, data)
}

func (m *MockCourseServiceInterface) GetAsset(ctx context.Context, handle string) (*domain.Asset, error) {
	args := m.Called(ctx, handle)
	a, _ := args.Get(0).(*domain.Asset)
	return a, args.Error(1)
}

func (e *MockCourseServiceInterfaceExpecter) GetAsset(ctx, handle interface{}) *mock.Call {
	return e.mock.On("GetAsset", ctx, handle)
}

// MockPublisher is a mock of push.Publisher.
type MockPublisher struct {
	mock.Mock
}

var _ push.Publisher = (*MockPublisher)(nil)

func NewMockPublisher(t T) *MockPublisher {
	m := &MockPublisher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

type MockPublisherExpecter struct {
	mock *mock.Mock
}

func (m *MockPublisher) EXPECT() *MockPublisherExpecter {
	return &MockPublisherExpecter{mock: &m.Mock}
}

func (m *MockPublisher) Publish(ctx context.Context, evt domain.PushEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func (e *MockPublisherExpecter) Publish(ctx, evt interface{}) *mock.Call {
	return e.mock.On("Publish", ctx, evt)
}
