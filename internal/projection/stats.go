package projection

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// MonthSpending is the spending of one calendar month.
type MonthSpending struct {
	Month       time.Time       `json:"-"`
	Label       string          `json:"month"`
	SortKey     string          `json:"sort_key"`
	ServiceCost decimal.Decimal `json:"service_cost"`
	ProductCost decimal.Decimal `json:"product_cost"`
	Count       int             `json:"count"`
}

// MonthlySpending returns the trailing WindowMonths calendar months ending with
// now's month, oldest first. Entries outside that range or without a date are
// ignored; invalid costs count as zero.
func MonthlySpending(entries []models.MaintenanceLog, now time.Time) []MonthSpending {
	first := AddMonths(MonthStart(now), -(WindowMonths - 1))
	months := make([]MonthSpending, WindowMonths)
	for i := range months {
		m := first.AddDate(0, i, 0)
		months[i] = MonthSpending{
			Month:       m,
			Label:       monthLabel(m),
			SortKey:     m.Format("2006-01"),
			ServiceCost: decimal.Zero,
			ProductCost: decimal.Zero,
		}
	}

	for _, e := range entries {
		if e.DatePerformed.IsZero() {
			continue
		}
		d := e.DatePerformed.In(now.Location())
		idx := (d.Year()-first.Year())*12 + int(d.Month()) - int(first.Month())
		if idx < 0 || idx >= WindowMonths {
			continue
		}
		service, _ := sanitizeCost(e.ServiceCost)
		product, _ := sanitizeCost(e.ProductCost)
		months[idx].ServiceCost = months[idx].ServiceCost.Add(service)
		months[idx].ProductCost = months[idx].ProductCost.Add(product)
		months[idx].Count++
	}
	return months
}
