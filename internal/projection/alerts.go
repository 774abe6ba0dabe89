package projection

import (
	"fmt"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// AlertReason tells which limit made a maintenance type due.
type AlertReason string

const (
	DueByDistance AlertReason = "distance"
	DueByTime     AlertReason = "time"
)

// Alert is a maintenance type whose next due point has been reached.
type Alert struct {
	Type            string      `json:"type"`
	Reason          AlertReason `json:"reason"`
	NextDueDistance int         `json:"next_due_distance"`
	NextDueDate     time.Time   `json:"next_due_date"`
	Message         string      `json:"msg"`
}

// DueAlerts returns the maintenance types due for vehicle at now. The distance
// limit is checked first; a type is reported once even if both limits were passed.
// Types without history for the vehicle produce no alert.
func DueAlerts(vehicle models.Vehicle, entries []models.MaintenanceLog, types []models.MaintenanceType, now time.Time) []Alert {
	dated := make([]models.MaintenanceLog, 0, len(entries))
	for _, e := range entries {
		if !e.DatePerformed.IsZero() {
			dated = append(dated, e)
		}
	}

	alerts := []Alert{}
	for _, t := range types {
		p, ok := projectType(t, dated)
		if !ok {
			continue
		}
		switch {
		case vehicle.CurrentKm >= p.NextDueDistance:
			alerts = append(alerts, Alert{
				Type:            t.Name,
				Reason:          DueByDistance,
				NextDueDistance: p.NextDueDistance,
				NextDueDate:     p.NextDueDate,
				Message:         fmt.Sprintf("Vencido por KM (Próx: %dkm)", p.NextDueDistance),
			})
		case !now.Before(p.NextDueDate):
			alerts = append(alerts, Alert{
				Type:            t.Name,
				Reason:          DueByTime,
				NextDueDistance: p.NextDueDistance,
				NextDueDate:     p.NextDueDate,
				Message:         fmt.Sprintf("Vencido por Tempo (Próx: %s)", p.NextDueDate.Format("2006-01-02")),
			})
		}
	}
	return alerts
}

// NextDueDistance returns the distance at which a type falls due again after a
// service at km, applying the fallback interval.
func NextDueDistance(t models.MaintenanceType, km int) int {
	interval := t.DefaultIntervalKm
	if interval <= 0 {
		interval = DefaultIntervalKm
	}
	return km + interval
}
