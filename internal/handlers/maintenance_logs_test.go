package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/notify"
	"github.com/zoobzio/clockz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type logFixture struct {
	m         *mocks
	publisher *MockPublisher
	handler   *MaintenanceLogHandler
	vehicle   *models.Vehicle
	oil       *models.MaintenanceType
}

func newLogFixture() *logFixture {
	m := newMocks()
	publisher := new(MockPublisher)
	return &logFixture{
		m:         m,
		publisher: publisher,
		handler:   NewMaintenanceLogHandler(m.store(), publisher, clockz.NewFakeClock()),
		vehicle:   &models.Vehicle{ID: primitive.NewObjectID(), OwnerID: "user-1", Model: "Uno", CurrentKm: 18000, LicensePlate: "ABC1D23"},
		oil: &models.MaintenanceType{ID: primitive.NewObjectID(), UserID: "user-1", Name: "Troca de Óleo do Motor",
			DefaultIntervalKm: 10000, DefaultIntervalMonths: 6},
	}
}

func (f *logFixture) vars() map[string]string {
	return map[string]string{"id": f.vehicle.ID.Hex()}
}

func TestMaintenanceLogHandler_Create(t *testing.T) {
	t.Run("registers, bumps km and notifies", func(t *testing.T) {
		f := newLogFixture()
		vid := f.vehicle.ID.Hex()
		f.m.vehicles.On("FindVehicleByID", mock.Anything, vid).Return(f.vehicle, nil)
		f.m.types.On("FindTypeByID", mock.Anything, f.oil.ID.Hex()).Return(f.oil, nil)
		f.m.logs.On("InsertLog", mock.Anything, mock.MatchedBy(func(l models.MaintenanceLog) bool {
			return l.VehicleID == vid && l.MaintenanceTypeID == f.oil.ID && l.MaintenanceType == f.oil.Name &&
				l.Category == models.CategoryPreventive && l.KmPerformed == 20000 && l.ServiceCost == 150 &&
				l.DatePerformed.Equal(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
		})).Return(nil)
		f.m.vehicles.On("BumpCurrentKm", mock.Anything, vid, 20000).Return(nil)
		f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e notify.Event) bool {
			return e.Kind == notify.KindMaintenanceRegistered && e.UserID == "user-1" && e.Email == "owner@example.com" &&
				e.NextDueKm == 30000 && e.NextDueDate != nil &&
				e.NextDueDate.Equal(time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC))
		})).Return(nil)

		body := `{"maintenance_type_id": "` + f.oil.ID.Hex() + `", "km_performed": 20000,
			"date_performed": "2024-01-15T10:00:00", "service_cost": 150}`
		w := httptest.NewRecorder()
		f.handler.Create(w, newRequest(t, http.MethodPost, "/", body, "user-1", f.vars()))

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var resp RegisteredResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 30000, resp.NextDueKm)
		assert.Equal(t, "Manutenção 'Troca de Óleo do Motor' registrada para Uno. Próxima troca prevista em 30000km.", resp.Message)
		f.m.assert(t)
		f.publisher.AssertExpectations(t)
	})

	t.Run("publish failure does not fail the request", func(t *testing.T) {
		f := newLogFixture()
		vid := f.vehicle.ID.Hex()
		f.m.vehicles.On("FindVehicleByID", mock.Anything, vid).Return(f.vehicle, nil)
		f.m.types.On("FindTypeByID", mock.Anything, f.oil.ID.Hex()).Return(f.oil, nil)
		f.m.logs.On("InsertLog", mock.Anything, mock.Anything).Return(nil)
		f.publisher.On("Publish", mock.Anything, mock.Anything).Return(assert.AnError)

		body := `{"maintenance_type_id": "` + f.oil.ID.Hex() + `", "km_performed": 15000, "date_performed": "2024-01-15", "category": "Desgaste"}`
		w := httptest.NewRecorder()
		f.handler.Create(w, newRequest(t, http.MethodPost, "/", body, "user-1", f.vars()))

		assert.Equal(t, http.StatusCreated, w.Code)
		// km below the vehicle's current km leaves it unchanged
		f.m.vehicles.AssertNotCalled(t, "BumpCurrentKm", mock.Anything, mock.Anything, mock.Anything)
		f.publisher.AssertExpectations(t)
	})

	t.Run("invalid input", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"missing km", `{"maintenance_type_id": "TYPE", "date_performed": "2024-01-15"}`},
			{"unknown category", `{"maintenance_type_id": "TYPE", "km_performed": 1, "date_performed": "2024-01-15", "category": "estetica"}`},
			{"negative cost", `{"maintenance_type_id": "TYPE", "km_performed": 1, "date_performed": "2024-01-15", "product_cost": -1}`},
			{"negative km", `{"maintenance_type_id": "TYPE", "km_performed": -1, "date_performed": "2024-01-15"}`},
			{"bad date", `{"maintenance_type_id": "TYPE", "km_performed": 1, "date_performed": "amanhã"}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newLogFixture()
				f.m.vehicles.On("FindVehicleByID", mock.Anything, f.vehicle.ID.Hex()).Return(f.vehicle, nil).Maybe()
				f.m.types.On("FindTypeByID", mock.Anything, f.oil.ID.Hex()).Return(f.oil, nil).Maybe()

				body := strings.ReplaceAll(tt.body, "TYPE", f.oil.ID.Hex())
				w := httptest.NewRecorder()
				f.handler.Create(w, newRequest(t, http.MethodPost, "/", body, "user-1", f.vars()))

				assert.Equal(t, http.StatusBadRequest, w.Code)
				f.m.logs.AssertNotCalled(t, "InsertLog", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("type of another user", func(t *testing.T) {
		f := newLogFixture()
		f.oil.UserID = "user-2"
		f.m.vehicles.On("FindVehicleByID", mock.Anything, f.vehicle.ID.Hex()).Return(f.vehicle, nil)
		f.m.types.On("FindTypeByID", mock.Anything, f.oil.ID.Hex()).Return(f.oil, nil)

		body := `{"maintenance_type_id": "` + f.oil.ID.Hex() + `", "km_performed": 1, "date_performed": "2024-01-15"}`
		w := httptest.NewRecorder()
		f.handler.Create(w, newRequest(t, http.MethodPost, "/", body, "user-1", f.vars()))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("vehicle of another user", func(t *testing.T) {
		f := newLogFixture()
		f.vehicle.OwnerID = "user-2"
		f.m.vehicles.On("FindVehicleByID", mock.Anything, f.vehicle.ID.Hex()).Return(f.vehicle, nil)

		body := `{"maintenance_type_id": "` + f.oil.ID.Hex() + `", "km_performed": 1, "date_performed": "2024-01-15"}`
		w := httptest.NewRecorder()
		f.handler.Create(w, newRequest(t, http.MethodPost, "/", body, "user-1", f.vars()))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestMaintenanceLogHandler_History(t *testing.T) {
	f := newLogFixture()
	vid := f.vehicle.ID.Hex()
	logs := []models.MaintenanceLog{
		{MaintenanceType: "Pneus", KmPerformed: 25000, DatePerformed: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), ProductCost: 800},
		{MaintenanceType: "Troca de Óleo do Motor", KmPerformed: 20000, DatePerformed: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), ServiceCost: 150},
	}
	f.m.vehicles.On("FindVehicleByID", mock.Anything, vid).Return(f.vehicle, nil)
	f.m.logs.On("FindLogsByVehicle", mock.Anything, vid).Return(logs, nil)

	t.Run("json", func(t *testing.T) {
		w := httptest.NewRecorder()
		f.handler.History(w, newRequest(t, http.MethodGet, "/", nil, "user-1", f.vars()))

		require.Equal(t, http.StatusOK, w.Code)
		var got []models.MaintenanceLog
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "Pneus", got[0].MaintenanceType)
	})

	t.Run("csv", func(t *testing.T) {
		w := httptest.NewRecorder()
		f.handler.HistoryCSV(w, newRequest(t, http.MethodGet, "/", nil, "user-1", f.vars()))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `attachment; filename="ABC1D23-manutencoes.csv"`, w.Header().Get("Content-Disposition"))
		assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
		lines := strings.Split(strings.TrimSpace(w.Body.String()), "\r\n")
		require.Len(t, lines, 3)
		assert.Equal(t, `"01/03/2024","Pneus","25000","0.00","800.00","800.00",""`, lines[1])
	})

	t.Run("empty history", func(t *testing.T) {
		g := newLogFixture()
		g.m.vehicles.On("FindVehicleByID", mock.Anything, g.vehicle.ID.Hex()).Return(g.vehicle, nil)
		g.m.logs.On("FindLogsByVehicle", mock.Anything, g.vehicle.ID.Hex()).Return(nil, nil)

		w := httptest.NewRecorder()
		g.handler.History(w, newRequest(t, http.MethodGet, "/", nil, "user-1", g.vars()))
		assert.JSONEq(t, `[]`, w.Body.String())
	})
}

func TestMaintenanceLogHandler_Update(t *testing.T) {
	t.Run("partial update bumps vehicle km", func(t *testing.T) {
		f := newLogFixture()
		vid := f.vehicle.ID.Hex()
		entry := &models.MaintenanceLog{ID: primitive.NewObjectID(), VehicleID: vid, MaintenanceType: "Pneus",
			Category: models.CategoryWear, KmPerformed: 15000, ServiceCost: 100, Notes: "dianteiros"}
		lid := entry.ID.Hex()
		f.m.logs.On("FindLogByID", mock.Anything, lid).Return(entry, nil)
		f.m.vehicles.On("FindVehicleByID", mock.Anything, vid).Return(f.vehicle, nil)
		f.m.logs.On("UpdateLog", mock.Anything, lid, mock.MatchedBy(func(l models.MaintenanceLog) bool {
			return l.KmPerformed == 19000 && l.ServiceCost == 100 && l.Notes == "dianteiros" && l.Category == models.CategoryCorrective
		})).Return(nil)
		f.m.vehicles.On("BumpCurrentKm", mock.Anything, vid, 19000).Return(nil)

		w := httptest.NewRecorder()
		f.handler.Update(w, newRequest(t, http.MethodPut, "/", `{"km_performed": 19000, "category": "corretiva"}`, "user-1", map[string]string{"id": lid}))

		assert.Equal(t, http.StatusOK, w.Code)
		f.m.assert(t)
	})

	t.Run("log of another user's vehicle", func(t *testing.T) {
		f := newLogFixture()
		f.vehicle.OwnerID = "user-2"
		entry := &models.MaintenanceLog{ID: primitive.NewObjectID(), VehicleID: f.vehicle.ID.Hex()}
		f.m.logs.On("FindLogByID", mock.Anything, entry.ID.Hex()).Return(entry, nil)
		f.m.vehicles.On("FindVehicleByID", mock.Anything, f.vehicle.ID.Hex()).Return(f.vehicle, nil)

		w := httptest.NewRecorder()
		f.handler.Update(w, newRequest(t, http.MethodPut, "/", `{"notes": "x"}`, "user-1", map[string]string{"id": entry.ID.Hex()}))

		assert.Equal(t, http.StatusNotFound, w.Code)
		f.m.logs.AssertNotCalled(t, "UpdateLog", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestMaintenanceLogHandler_Delete(t *testing.T) {
	t.Run("owner", func(t *testing.T) {
		f := newLogFixture()
		entry := &models.MaintenanceLog{ID: primitive.NewObjectID(), VehicleID: f.vehicle.ID.Hex()}
		lid := entry.ID.Hex()
		f.m.logs.On("FindLogByID", mock.Anything, lid).Return(entry, nil)
		f.m.vehicles.On("FindVehicleByID", mock.Anything, f.vehicle.ID.Hex()).Return(f.vehicle, nil)
		f.m.logs.On("DeleteLog", mock.Anything, lid).Return(nil)

		w := httptest.NewRecorder()
		f.handler.Delete(w, newRequest(t, http.MethodDelete, "/", nil, "user-1", map[string]string{"id": lid}))

		assert.Equal(t, http.StatusOK, w.Code)
		f.m.assert(t)
	})

	t.Run("missing", func(t *testing.T) {
		f := newLogFixture()
		f.m.logs.On("FindLogByID", mock.Anything, "x").Return(nil, db.ErrInvalidID)

		w := httptest.NewRecorder()
		f.handler.Delete(w, newRequest(t, http.MethodDelete, "/", nil, "user-1", map[string]string{"id": "x"}))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
