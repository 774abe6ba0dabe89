// Package projection computes trailing spending statistics, next-due projections
// and due alerts from a vehicle's maintenance history.
//
// Everything in this package is a pure function of its arguments: no I/O, no
// shared state, and the input slices are never modified. Data-quality problems
// never produce errors; they are counted in Diagnostics and the affected entries
// are left out of the computations they would corrupt.
package projection

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

const (
	// WindowMonths is the length of the trailing window and of the forward calendar.
	WindowMonths = 12

	// Fallbacks used when a maintenance type has no interval configured.
	DefaultIntervalKm     = 10000
	DefaultIntervalMonths = 12
)

var (
	monthsPerYear = decimal.NewFromInt(WindowMonths)
	reserveFactor = decimal.RequireFromString("1.2")
)

// TypeProjection is the next-due estimate for one maintenance type.
type TypeProjection struct {
	TypeID          string          `json:"type_id,omitempty"`
	TypeName        string          `json:"type_name"`
	Category        models.Category `json:"category"`
	LastKm          int             `json:"last_km"`
	LastDate        time.Time       `json:"last_date"`
	NextDueDistance int             `json:"next_due_distance"`
	NextDueDate     time.Time       `json:"next_due_date"`
	EstimatedCost   decimal.Decimal `json:"estimated_cost"`
}

// MonthProjection is one slot of the forward calendar.
type MonthProjection struct {
	Month     time.Time        `json:"month"`
	Label     string           `json:"label"`
	Items     []TypeProjection `json:"items"`
	TotalCost decimal.Decimal  `json:"total_cost"`
}

// Diagnostics reports entries that were skipped or adjusted.
type Diagnostics struct {
	SkippedDates      int      `json:"skipped_dates"`
	UnknownCategories int      `json:"unknown_categories"`
	SanitizedCosts    int      `json:"sanitized_costs"`
	Warnings          []string `json:"warnings"`
}

// Clean reports whether no entry needed special handling.
func (d Diagnostics) Clean() bool {
	return d.SkippedDates == 0 && d.UnknownCategories == 0 && d.SanitizedCosts == 0
}

func (d *Diagnostics) warn(format string, args ...interface{}) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// Result is the full projection for one vehicle. All collections are non-nil.
type Result struct {
	GeneratedAt               time.Time                           `json:"generated_at"`
	WindowStart               time.Time                           `json:"window_start"`
	TrailingWindowEntries     []models.MaintenanceLog             `json:"trailing_window_entries"`
	DistanceDriven            int                                 `json:"distance_driven"`
	MonthlyDistanceAverage    float64                             `json:"monthly_distance_average"`
	CostsByCategory           map[models.Category]decimal.Decimal `json:"costs_by_category"`
	AverageCostByCategory     map[models.Category]decimal.Decimal `json:"average_cost_by_category"`
	TotalSpent                decimal.Decimal                     `json:"total_spent"`
	PerTypeProjection         []TypeProjection                    `json:"per_type_projection"`
	MonthlyForwardProjection  []MonthProjection                   `json:"monthly_forward_projection"`
	RecommendedMonthlyReserve decimal.Decimal                     `json:"recommended_monthly_reserve"`
	Diagnostics               Diagnostics                         `json:"diagnostics"`
}

// Compute builds the projection for entries and types as seen at now.
//
// Entries with a zero DatePerformed are treated as having a malformed date and are
// skipped from the trailing window and from next-due calculations. Categories
// outside models.KnownCategories are aggregated under models.CategoryOther so they
// still count toward TotalSpent.
func Compute(entries []models.MaintenanceLog, types []models.MaintenanceType, now time.Time) Result {
	res := Result{
		GeneratedAt:              now,
		WindowStart:              AddMonths(now, -WindowMonths),
		TrailingWindowEntries:    []models.MaintenanceLog{},
		CostsByCategory:          make(map[models.Category]decimal.Decimal, len(models.KnownCategories)+1),
		AverageCostByCategory:    make(map[models.Category]decimal.Decimal, len(models.KnownCategories)+1),
		PerTypeProjection:        []TypeProjection{},
		MonthlyForwardProjection: make([]MonthProjection, 0, WindowMonths),
		Diagnostics:              Diagnostics{Warnings: []string{}},
	}
	for _, c := range models.KnownCategories {
		res.CostsByCategory[c] = decimal.Zero
		res.AverageCostByCategory[c] = decimal.Zero
	}

	dated := make([]models.MaintenanceLog, 0, len(entries))
	// input positions of the trailing window entries
	var window []int
	for i, e := range entries {
		if e.DatePerformed.IsZero() {
			res.Diagnostics.SkippedDates++
			res.Diagnostics.warn("entry %s: missing or malformed date_performed, skipped", entryRef(e, i))
			continue
		}
		dated = append(dated, e)
		if !e.DatePerformed.Before(res.WindowStart) {
			window = append(window, i)
		}
	}

	sort.SliceStable(window, func(a, b int) bool {
		return entries[window[a]].KmPerformed < entries[window[b]].KmPerformed
	})
	for _, i := range window {
		res.TrailingWindowEntries = append(res.TrailingWindowEntries, entries[i])
	}
	if n := len(res.TrailingWindowEntries); n > 1 {
		res.DistanceDriven = res.TrailingWindowEntries[n-1].KmPerformed - res.TrailingWindowEntries[0].KmPerformed
	}
	res.MonthlyDistanceAverage = float64(res.DistanceDriven) / WindowMonths

	counts := make(map[models.Category]int64)
	for _, i := range window {
		e := entries[i]
		cat := e.Category
		if !models.IsValidCategory(cat) {
			res.Diagnostics.UnknownCategories++
			res.Diagnostics.warn("entry %s: unknown category %q counted as %q", entryRef(e, i), cat, models.CategoryOther)
			cat = models.CategoryOther
		}
		res.CostsByCategory[cat] = res.CostsByCategory[cat].Add(entryCost(e, &res.Diagnostics, i))
		counts[cat]++
	}

	res.TotalSpent = decimal.Zero
	for _, cat := range categoryOrder(res.CostsByCategory) {
		sum := res.CostsByCategory[cat]
		res.TotalSpent = res.TotalSpent.Add(sum)
		if n := counts[cat]; n > 0 {
			res.AverageCostByCategory[cat] = sum.Div(decimal.NewFromInt(n))
		} else {
			res.AverageCostByCategory[cat] = decimal.Zero
		}
	}

	for _, t := range types {
		p, ok := projectType(t, dated)
		if !ok {
			continue
		}
		p.EstimatedCost = decimal.Zero
		if models.IsValidCategory(p.Category) {
			p.EstimatedCost = res.AverageCostByCategory[p.Category]
		}
		res.PerTypeProjection = append(res.PerTypeProjection, p)
	}

	res.MonthlyForwardProjection = forwardCalendar(res.PerTypeProjection, now)
	res.RecommendedMonthlyReserve = res.TotalSpent.Div(monthsPerYear).Mul(reserveFactor)
	return res
}

// projectType finds the most recent entry of type t and derives its next due point.
// EstimatedCost is left zero.
func projectType(t models.MaintenanceType, dated []models.MaintenanceLog) (TypeProjection, bool) {
	var latest *models.MaintenanceLog
	for i := range dated {
		e := &dated[i]
		if !matchesType(*e, t) {
			continue
		}
		if latest == nil || e.DatePerformed.After(latest.DatePerformed) {
			latest = e
		}
	}
	if latest == nil {
		return TypeProjection{}, false
	}

	intervalMonths := t.DefaultIntervalMonths
	if intervalMonths <= 0 {
		intervalMonths = DefaultIntervalMonths
	}

	p := TypeProjection{
		TypeName:        t.Name,
		Category:        latest.Category,
		LastKm:          latest.KmPerformed,
		LastDate:        latest.DatePerformed,
		NextDueDistance: NextDueDistance(t, latest.KmPerformed),
		NextDueDate:     AddMonths(latest.DatePerformed, intervalMonths),
	}
	if !t.ID.IsZero() {
		p.TypeID = t.ID.Hex()
	}
	return p, true
}

func matchesType(e models.MaintenanceLog, t models.MaintenanceType) bool {
	if !e.MaintenanceTypeID.IsZero() && !t.ID.IsZero() {
		return e.MaintenanceTypeID == t.ID
	}
	return e.MaintenanceType != "" && e.MaintenanceType == t.Name
}

func forwardCalendar(projections []TypeProjection, now time.Time) []MonthProjection {
	start := MonthStart(now)
	months := make([]MonthProjection, 0, WindowMonths)
	for i := 0; i < WindowMonths; i++ {
		month := start.AddDate(0, i, 0)
		slot := MonthProjection{
			Month:     month,
			Label:     monthLabel(month),
			Items:     []TypeProjection{},
			TotalCost: decimal.Zero,
		}
		for _, p := range projections {
			if SameMonth(month, p.NextDueDate) {
				slot.Items = append(slot.Items, p)
				slot.TotalCost = slot.TotalCost.Add(p.EstimatedCost)
			}
		}
		months = append(months, slot)
	}
	return months
}

// entryCost returns the entry's total cost, replacing negative or non-finite parts with zero.
func entryCost(e models.MaintenanceLog, d *Diagnostics, i int) decimal.Decimal {
	total := decimal.Zero
	for _, part := range []struct {
		field string
		value float64
	}{{"service_cost", e.ServiceCost}, {"product_cost", e.ProductCost}} {
		v, ok := sanitizeCost(part.value)
		if !ok {
			d.SanitizedCosts++
			d.warn("entry %s: invalid %s %v treated as 0", entryRef(e, i), part.field, part.value)
		}
		total = total.Add(v)
	}
	return total
}

func sanitizeCost(v float64) (decimal.Decimal, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(v), true
}

// categoryOrder returns the known categories followed by the other bucket when present.
func categoryOrder(costs map[models.Category]decimal.Decimal) []models.Category {
	order := append([]models.Category(nil), models.KnownCategories...)
	if _, ok := costs[models.CategoryOther]; ok {
		order = append(order, models.CategoryOther)
	}
	return order
}

func entryRef(e models.MaintenanceLog, i int) string {
	if !e.ID.IsZero() {
		return e.ID.Hex()
	}
	return fmt.Sprintf("#%d", i)
}
