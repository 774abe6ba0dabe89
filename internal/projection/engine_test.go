package projection

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func logEntry(typ string, cat models.Category, km int, date time.Time, service, product float64) models.MaintenanceLog {
	return models.MaintenanceLog{
		ID:              primitive.NewObjectID(),
		MaintenanceType: typ,
		Category:        cat,
		KmPerformed:     km,
		DatePerformed:   date,
		ServiceCost:     service,
		ProductCost:     product,
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got.String())
}

func sumCategories(costs map[models.Category]decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range costs {
		sum = sum.Add(v)
	}
	return sum
}

func TestCompute_EmptyInput(t *testing.T) {
	now := day(2024, 6, 15)
	res := Compute(nil, nil, now)

	assert.Empty(t, res.TrailingWindowEntries)
	assert.NotNil(t, res.TrailingWindowEntries)
	assert.Equal(t, 0, res.DistanceDriven)
	assert.Equal(t, 0.0, res.MonthlyDistanceAverage)
	assert.Len(t, res.CostsByCategory, 3)
	for _, c := range models.KnownCategories {
		assertDecimal(t, "0", res.CostsByCategory[c])
		assertDecimal(t, "0", res.AverageCostByCategory[c])
	}
	assertDecimal(t, "0", res.TotalSpent)
	assert.Empty(t, res.PerTypeProjection)
	assert.NotNil(t, res.PerTypeProjection)
	require.Len(t, res.MonthlyForwardProjection, WindowMonths)
	for _, m := range res.MonthlyForwardProjection {
		assert.Empty(t, m.Items)
		assertDecimal(t, "0", m.TotalCost)
	}
	assertDecimal(t, "0", res.RecommendedMonthlyReserve)
	assert.True(t, res.Diagnostics.Clean())
}

func TestCompute_TypesWithoutHistory(t *testing.T) {
	types := []models.MaintenanceType{{ID: primitive.NewObjectID(), Name: "Oil Change", DefaultIntervalKm: 10000, DefaultIntervalMonths: 6}}
	res := Compute(nil, types, day(2024, 6, 15))
	assert.Empty(t, res.PerTypeProjection)
}

func TestCompute_WindowExcludesOldEntries(t *testing.T) {
	now := day(2024, 6, 15)
	entries := []models.MaintenanceLog{
		logEntry("Oil Change", models.CategoryPreventive, 10000, AddMonths(now, -13), 100, 0),
		logEntry("Oil Change", models.CategoryPreventive, 15000, AddMonths(now, -1), 100, 0),
	}

	res := Compute(entries, nil, now)

	require.Len(t, res.TrailingWindowEntries, 1)
	assert.Equal(t, 15000, res.TrailingWindowEntries[0].KmPerformed)
	assert.Equal(t, 0, res.DistanceDriven)
	assertDecimal(t, "100", res.TotalSpent)
}

func TestCompute_DistanceDrivenIgnoresOrder(t *testing.T) {
	now := day(2024, 6, 15)
	for name, entries := range map[string][]models.MaintenanceLog{
		"ascending": {
			logEntry("A", models.CategoryWear, 10000, day(2024, 1, 10), 0, 0),
			logEntry("A", models.CategoryWear, 15000, day(2024, 3, 10), 0, 0),
		},
		"descending": {
			logEntry("A", models.CategoryWear, 15000, day(2024, 1, 10), 0, 0),
			logEntry("A", models.CategoryWear, 10000, day(2024, 3, 10), 0, 0),
		},
	} {
		t.Run(name, func(t *testing.T) {
			res := Compute(entries, nil, now)
			assert.Equal(t, 5000, res.DistanceDriven)
			assert.InDelta(t, 5000.0/12, res.MonthlyDistanceAverage, 1e-9)
			assert.Equal(t, 10000, res.TrailingWindowEntries[0].KmPerformed)
		})
	}
}

func TestCompute_SingleEntryHasNoDistance(t *testing.T) {
	now := day(2024, 6, 15)
	res := Compute([]models.MaintenanceLog{logEntry("A", models.CategoryWear, 42000, day(2024, 5, 1), 10, 0)}, nil, now)
	assert.Equal(t, 0, res.DistanceDriven)
	assert.Equal(t, 0.0, res.MonthlyDistanceAverage)
}

func TestCompute_NextDueFromTypeInterval(t *testing.T) {
	now := day(2024, 3, 1)
	oil := models.MaintenanceType{ID: primitive.NewObjectID(), Name: "Oil Change", DefaultIntervalKm: 10000, DefaultIntervalMonths: 6}
	entries := []models.MaintenanceLog{
		logEntry("Oil Change", models.CategoryPreventive, 12000, day(2023, 7, 15), 90, 30),
		logEntry("Oil Change", models.CategoryPreventive, 20000, day(2024, 1, 15), 150, 50),
	}

	res := Compute(entries, []models.MaintenanceType{oil}, now)

	require.Len(t, res.PerTypeProjection, 1)
	p := res.PerTypeProjection[0]
	assert.Equal(t, "Oil Change", p.TypeName)
	assert.Equal(t, oil.ID.Hex(), p.TypeID)
	assert.Equal(t, 30000, p.NextDueDistance)
	assert.True(t, p.NextDueDate.Equal(day(2024, 7, 15)), "next due date %s", p.NextDueDate)
	assert.Equal(t, 20000, p.LastKm)
	// preventive average over both window entries: (120 + 200) / 2
	assertDecimal(t, "160", p.EstimatedCost)

	require.Len(t, res.MonthlyForwardProjection, WindowMonths)
	assert.True(t, res.MonthlyForwardProjection[0].Month.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	july := res.MonthlyForwardProjection[4]
	assert.Equal(t, "07/2024", july.Label)
	require.Len(t, july.Items, 1)
	assert.Equal(t, "Oil Change", july.Items[0].TypeName)
	assertDecimal(t, "160", july.TotalCost)
	for i, m := range res.MonthlyForwardProjection {
		if i != 4 {
			assert.Empty(t, m.Items, "slot %s", m.Label)
		}
	}
}

func TestCompute_LatestEntryUsesFullHistory(t *testing.T) {
	now := day(2024, 6, 15)
	belts := models.MaintenanceType{Name: "Timing Belt", DefaultIntervalKm: 60000, DefaultIntervalMonths: 48}
	entries := []models.MaintenanceLog{
		logEntry("Timing Belt", models.CategoryWear, 80000, day(2021, 2, 1), 800, 400),
		logEntry("Timing Belt", models.CategoryWear, 20000, day(2017, 2, 1), 700, 300),
	}

	res := Compute(entries, []models.MaintenanceType{belts}, now)

	assert.Empty(t, res.TrailingWindowEntries)
	require.Len(t, res.PerTypeProjection, 1)
	p := res.PerTypeProjection[0]
	assert.Equal(t, 140000, p.NextDueDistance)
	assert.True(t, p.NextDueDate.Equal(day(2025, 2, 1)))
	// no wear entries in the window
	assertDecimal(t, "0", p.EstimatedCost)
	assert.Equal(t, "02/2025", res.MonthlyForwardProjection[8].Label)
	assert.Len(t, res.MonthlyForwardProjection[8].Items, 1)
}

func TestCompute_MatchesByTypeIDBeforeName(t *testing.T) {
	now := day(2024, 6, 15)
	typeID := primitive.NewObjectID()
	renamed := models.MaintenanceType{ID: typeID, Name: "Engine Oil", DefaultIntervalKm: 5000, DefaultIntervalMonths: 6}
	e := logEntry("Oil Change", models.CategoryPreventive, 1000, day(2024, 2, 1), 0, 0)
	e.MaintenanceTypeID = typeID
	other := logEntry("Engine Oil", models.CategoryPreventive, 9000, day(2024, 4, 1), 0, 0)
	other.MaintenanceTypeID = primitive.NewObjectID()

	res := Compute([]models.MaintenanceLog{e, other}, []models.MaintenanceType{renamed}, now)

	require.Len(t, res.PerTypeProjection, 1)
	assert.Equal(t, 6000, res.PerTypeProjection[0].NextDueDistance)
}

func TestCompute_IntervalFallbacks(t *testing.T) {
	now := day(2024, 6, 15)
	bare := models.MaintenanceType{Name: "Inspection"}
	res := Compute([]models.MaintenanceLog{
		logEntry("Inspection", models.CategoryPreventive, 5000, day(2024, 1, 31), 50, 0),
	}, []models.MaintenanceType{bare}, now)

	require.Len(t, res.PerTypeProjection, 1)
	assert.Equal(t, 15000, res.PerTypeProjection[0].NextDueDistance)
	assert.True(t, res.PerTypeProjection[0].NextDueDate.Equal(day(2025, 1, 31)))
}

func TestCompute_CategoryAggregates(t *testing.T) {
	now := day(2024, 6, 15)
	entries := []models.MaintenanceLog{
		logEntry("Oil", models.CategoryPreventive, 1000, day(2024, 1, 1), 80, 20),
		logEntry("Oil", models.CategoryPreventive, 2000, day(2024, 2, 1), 200, 100),
		logEntry("Brakes", models.CategoryWear, 3000, day(2024, 3, 1), 150, 250.5),
	}

	res := Compute(entries, nil, now)

	assertDecimal(t, "400", res.CostsByCategory[models.CategoryPreventive])
	assertDecimal(t, "400.5", res.CostsByCategory[models.CategoryWear])
	assertDecimal(t, "0", res.CostsByCategory[models.CategoryCorrective])
	assertDecimal(t, "200", res.AverageCostByCategory[models.CategoryPreventive])
	assertDecimal(t, "400.5", res.AverageCostByCategory[models.CategoryWear])
	assertDecimal(t, "0", res.AverageCostByCategory[models.CategoryCorrective])
	assertDecimal(t, "800.5", res.TotalSpent)
	assert.True(t, res.TotalSpent.Sub(sumCategories(res.CostsByCategory)).Abs().LessThan(decimal.RequireFromString("0.01")))
}

func TestCompute_RecommendedReserve(t *testing.T) {
	now := day(2024, 6, 15)
	for _, costs := range [][]float64{{1200}, {0}, {33.33, 17.01}, {999.99, 0.01, 1234.56}} {
		entries := make([]models.MaintenanceLog, 0, len(costs))
		for i, c := range costs {
			entries = append(entries, logEntry("X", models.CategoryCorrective, i*100, day(2024, 5, 1), c, 0))
		}
		res := Compute(entries, nil, now)
		want := res.TotalSpent.Div(decimal.NewFromInt(12)).Mul(decimal.RequireFromString("1.2"))
		assert.True(t, want.Equal(res.RecommendedMonthlyReserve), "costs %v", costs)
	}

	res := Compute([]models.MaintenanceLog{logEntry("X", models.CategoryCorrective, 0, day(2024, 5, 1), 1000, 200)}, nil, now)
	assertDecimal(t, "120", res.RecommendedMonthlyReserve)
}

func TestCompute_UnknownCategoryIsReported(t *testing.T) {
	now := day(2024, 6, 15)
	entries := []models.MaintenanceLog{
		logEntry("Oil", models.CategoryPreventive, 1000, day(2024, 1, 1), 50, 0),
		logEntry("Paint", "desconhecida", 2000, day(2024, 2, 1), 100, 0),
	}

	res := Compute(entries, nil, now)

	assert.Equal(t, 1, res.Diagnostics.UnknownCategories)
	assert.False(t, res.Diagnostics.Clean())
	require.NotEmpty(t, res.Diagnostics.Warnings)
	assert.Contains(t, res.Diagnostics.Warnings[0], "desconhecida")
	assertDecimal(t, "100", res.CostsByCategory[models.CategoryOther])
	assertDecimal(t, "100", res.AverageCostByCategory[models.CategoryOther])
	assertDecimal(t, "150", res.TotalSpent)
	assert.True(t, res.TotalSpent.Equal(sumCategories(res.CostsByCategory)))
}

func TestCompute_UnknownCategoryProjectionHasNoEstimate(t *testing.T) {
	now := day(2024, 6, 15)
	paint := models.MaintenanceType{Name: "Paint", DefaultIntervalKm: 50000, DefaultIntervalMonths: 36}
	res := Compute([]models.MaintenanceLog{
		logEntry("Paint", "desconhecida", 2000, day(2024, 2, 1), 100, 0),
	}, []models.MaintenanceType{paint}, now)

	require.Len(t, res.PerTypeProjection, 1)
	assertDecimal(t, "0", res.PerTypeProjection[0].EstimatedCost)
}

func TestCompute_MalformedDatesAreSkipped(t *testing.T) {
	now := day(2024, 6, 15)
	oil := models.MaintenanceType{Name: "Oil", DefaultIntervalKm: 10000, DefaultIntervalMonths: 12}
	undated := logEntry("Oil", models.CategoryPreventive, 90000, time.Time{}, 500, 0)
	entries := []models.MaintenanceLog{
		logEntry("Oil", models.CategoryPreventive, 10000, day(2024, 1, 1), 100, 0),
		undated,
	}

	res := Compute(entries, []models.MaintenanceType{oil}, now)

	assert.Equal(t, 1, res.Diagnostics.SkippedDates)
	assert.Contains(t, res.Diagnostics.Warnings[0], undated.ID.Hex())
	assert.Len(t, res.TrailingWindowEntries, 1)
	assertDecimal(t, "100", res.TotalSpent)
	require.Len(t, res.PerTypeProjection, 1)
	assert.Equal(t, 20000, res.PerTypeProjection[0].NextDueDistance)
}

func TestCompute_InvalidCostsCountAsZero(t *testing.T) {
	now := day(2024, 6, 15)
	entries := []models.MaintenanceLog{
		logEntry("A", models.CategoryCorrective, 1000, day(2024, 1, 1), -50, 20),
		logEntry("A", models.CategoryCorrective, 2000, day(2024, 2, 1), math.NaN(), math.Inf(1)),
	}

	res := Compute(entries, nil, now)

	assert.Equal(t, 3, res.Diagnostics.SanitizedCosts)
	assertDecimal(t, "20", res.TotalSpent)
	assertDecimal(t, "10", res.AverageCostByCategory[models.CategoryCorrective])
	assert.False(t, res.TotalSpent.IsNegative())
}

func TestCompute_WarningsUseInputPosition(t *testing.T) {
	now := day(2024, 6, 15)
	entries := []models.MaintenanceLog{
		{MaintenanceType: "Oil", Category: models.CategoryPreventive, KmPerformed: 30000, DatePerformed: day(2024, 3, 1), ServiceCost: 50},
		{MaintenanceType: "Oil", Category: models.CategoryPreventive, KmPerformed: 20000, DatePerformed: day(2024, 2, 1), ServiceCost: -5},
		{MaintenanceType: "Paint", Category: "desconhecida", KmPerformed: 10000, DatePerformed: day(2024, 1, 1), ServiceCost: 100},
	}

	res := Compute(entries, nil, now)

	require.Len(t, res.TrailingWindowEntries, 3)
	assert.Equal(t, 10000, res.TrailingWindowEntries[0].KmPerformed)
	assert.Equal(t, []string{
		`entry #2: unknown category "desconhecida" counted as "outra"`,
		"entry #1: invalid service_cost -5 treated as 0",
	}, res.Diagnostics.Warnings)
}

func TestCompute_FutureEntriesDoNotBreak(t *testing.T) {
	now := day(2024, 6, 15)
	res := Compute([]models.MaintenanceLog{
		logEntry("A", models.CategoryPreventive, 1000, day(2024, 5, 1), 10, 0),
		logEntry("A", models.CategoryPreventive, 4000, day(2025, 3, 1), 30, 0),
	}, nil, now)

	assert.Len(t, res.TrailingWindowEntries, 2)
	assert.Equal(t, 3000, res.DistanceDriven)
}

func TestCompute_OverdueProjectionsStayOutOfCalendar(t *testing.T) {
	now := day(2024, 6, 15)
	oil := models.MaintenanceType{Name: "Oil", DefaultIntervalKm: 10000, DefaultIntervalMonths: 6}
	res := Compute([]models.MaintenanceLog{
		logEntry("Oil", models.CategoryPreventive, 1000, day(2023, 6, 1), 10, 0),
	}, []models.MaintenanceType{oil}, now)

	require.Len(t, res.PerTypeProjection, 1)
	for _, m := range res.MonthlyForwardProjection {
		assert.Empty(t, m.Items)
	}
}

func TestCompute_IsPureAndIdempotent(t *testing.T) {
	now := day(2024, 6, 15)
	oil := models.MaintenanceType{ID: primitive.NewObjectID(), Name: "Oil", DefaultIntervalKm: 10000, DefaultIntervalMonths: 6}
	entries := []models.MaintenanceLog{
		logEntry("Oil", models.CategoryPreventive, 30000, day(2024, 4, 1), 100, 10),
		logEntry("Oil", models.CategoryPreventive, 10000, day(2023, 10, 1), 90, 10),
		logEntry("Brakes", "outro", 20000, day(2024, 1, 1), 300, 100),
		logEntry("Oil", models.CategoryPreventive, 5000, time.Time{}, 1, 1),
	}
	snapshot := append([]models.MaintenanceLog(nil), entries...)

	first := Compute(entries, []models.MaintenanceType{oil}, now)
	second := Compute(entries, []models.MaintenanceType{oil}, now)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, entries)
	assert.GreaterOrEqual(t, first.DistanceDriven, 0)
}
