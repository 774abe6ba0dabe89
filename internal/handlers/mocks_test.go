package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/mock"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/notify"
	"github.com/zoobzio/clockz"
)

// MockUserCollection is a mock implementation of UserCollection
type MockUserCollection struct {
	mock.Mock
}

func (m *MockUserCollection) InsertUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserCollection) UpdateUser(ctx context.Context, id string, user models.User) error {
	args := m.Called(ctx, id, user)
	return args.Error(0)
}

func (m *MockUserCollection) DeleteUser(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserCollection) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// MockVehicleCollection is a mock implementation of VehicleCollection
type MockVehicleCollection struct {
	mock.Mock
}

func (m *MockVehicleCollection) InsertVehicle(ctx context.Context, vehicle models.Vehicle) error {
	args := m.Called(ctx, vehicle)
	return args.Error(0)
}

func (m *MockVehicleCollection) FindVehiclesByOwner(ctx context.Context, ownerID string) ([]models.Vehicle, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vehicle), args.Error(1)
}

func (m *MockVehicleCollection) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleCollection) UpdateVehicle(ctx context.Context, id string, vehicle models.Vehicle) error {
	args := m.Called(ctx, id, vehicle)
	return args.Error(0)
}

func (m *MockVehicleCollection) BumpCurrentKm(ctx context.Context, id string, km int) error {
	args := m.Called(ctx, id, km)
	return args.Error(0)
}

func (m *MockVehicleCollection) DeleteVehicle(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockVehicleCollection) DeleteVehiclesByOwner(ctx context.Context, ownerID string) (int64, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(int64), args.Error(1)
}

// MockTypeCollection is a mock implementation of MaintenanceTypeCollection
type MockTypeCollection struct {
	mock.Mock
}

func (m *MockTypeCollection) InsertType(ctx context.Context, t models.MaintenanceType) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTypeCollection) InsertTypes(ctx context.Context, types []models.MaintenanceType) error {
	args := m.Called(ctx, types)
	return args.Error(0)
}

func (m *MockTypeCollection) FindTypesByUser(ctx context.Context, userID string) ([]models.MaintenanceType, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MaintenanceType), args.Error(1)
}

func (m *MockTypeCollection) FindTypeByID(ctx context.Context, id string) (*models.MaintenanceType, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MaintenanceType), args.Error(1)
}

func (m *MockTypeCollection) FindTypeByName(ctx context.Context, userID, name string) (*models.MaintenanceType, error) {
	args := m.Called(ctx, userID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MaintenanceType), args.Error(1)
}

func (m *MockTypeCollection) UpdateType(ctx context.Context, id string, t models.MaintenanceType) error {
	args := m.Called(ctx, id, t)
	return args.Error(0)
}

func (m *MockTypeCollection) DeleteType(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTypeCollection) DeleteTypesByUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockLogCollection is a mock implementation of MaintenanceLogCollection
type MockLogCollection struct {
	mock.Mock
}

func (m *MockLogCollection) InsertLog(ctx context.Context, log models.MaintenanceLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockLogCollection) FindLogByID(ctx context.Context, id string) (*models.MaintenanceLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MaintenanceLog), args.Error(1)
}

func (m *MockLogCollection) FindLogsByVehicle(ctx context.Context, vehicleID string) ([]models.MaintenanceLog, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MaintenanceLog), args.Error(1)
}

func (m *MockLogCollection) FindLogsByVehicles(ctx context.Context, vehicleIDs []string) ([]models.MaintenanceLog, error) {
	args := m.Called(ctx, vehicleIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MaintenanceLog), args.Error(1)
}

func (m *MockLogCollection) CountLogsByType(ctx context.Context, typeID string) (int64, error) {
	args := m.Called(ctx, typeID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLogCollection) UpdateLog(ctx context.Context, id string, log models.MaintenanceLog) error {
	args := m.Called(ctx, id, log)
	return args.Error(0)
}

func (m *MockLogCollection) DeleteLog(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockLogCollection) DeleteLogsByVehicle(ctx context.Context, vehicleID string) (int64, error) {
	args := m.Called(ctx, vehicleID)
	return args.Get(0).(int64), args.Error(1)
}

// MockPublisher is a mock notify.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event notify.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

type mocks struct {
	users    *MockUserCollection
	vehicles *MockVehicleCollection
	types    *MockTypeCollection
	logs     *MockLogCollection
}

func newMocks() *mocks {
	return &mocks{
		users:    new(MockUserCollection),
		vehicles: new(MockVehicleCollection),
		types:    new(MockTypeCollection),
		logs:     new(MockLogCollection),
	}
}

func (m *mocks) store() Collections {
	return Collections{Users: m.users, Vehicles: m.vehicles, Types: m.types, Logs: m.logs}
}

func (m *mocks) assert(t *testing.T) {
	m.users.AssertExpectations(t)
	m.vehicles.AssertExpectations(t)
	m.types.AssertExpectations(t)
	m.logs.AssertExpectations(t)
}

func newTestAuthService(clock clockz.Clock) *auth.Service {
	return auth.NewService(config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}, clock)
}

// newRequest builds a request carrying claims for userID and the given route vars.
func newRequest(t *testing.T, method, target string, body interface{}, userID string, vars map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if userID != "" {
		claims := &models.Claims{UserID: userID, Email: "owner@example.com", Role: models.RoleOwner}
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, claims))
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}
