package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

func TestMonthlySpending(t *testing.T) {
	now := day(2024, 6, 15)
	entries := []models.MaintenanceLog{
		logEntry("Oil", models.CategoryPreventive, 1000, day(2024, 6, 1), 100, 50),
		logEntry("Oil", models.CategoryPreventive, 1500, day(2024, 6, 10), 20, 0),
		logEntry("Tires", models.CategoryWear, 2000, time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC), 300, 700),
		logEntry("Old", models.CategoryWear, 500, day(2023, 6, 30), 999, 999),
		logEntry("Future", models.CategoryWear, 9000, day(2024, 7, 1), 999, 999),
		logEntry("Undated", models.CategoryWear, 9000, time.Time{}, 999, 999),
		logEntry("Bad", models.CategoryCorrective, 9000, day(2024, 1, 1), -10, 5),
	}

	months := MonthlySpending(entries, now)

	require.Len(t, months, WindowMonths)
	assert.Equal(t, "07/2023", months[0].Label)
	assert.Equal(t, "2023-07", months[0].SortKey)
	assert.Equal(t, "06/2024", months[11].Label)

	assert.Equal(t, 1, months[0].Count)
	assertDecimal(t, "300", months[0].ServiceCost)
	assertDecimal(t, "700", months[0].ProductCost)

	assert.Equal(t, 2, months[11].Count)
	assertDecimal(t, "120", months[11].ServiceCost)
	assertDecimal(t, "50", months[11].ProductCost)

	jan := months[6]
	assert.Equal(t, "01/2024", jan.Label)
	assertDecimal(t, "0", jan.ServiceCost)
	assertDecimal(t, "5", jan.ProductCost)

	total := 0
	for _, m := range months {
		total += m.Count
	}
	assert.Equal(t, 4, total)
}

func TestMonthlySpending_Empty(t *testing.T) {
	months := MonthlySpending(nil, day(2024, 1, 20))
	require.Len(t, months, WindowMonths)
	assert.Equal(t, "02/2023", months[0].Label)
	assert.Equal(t, "01/2024", months[11].Label)
	for _, m := range months {
		assert.Zero(t, m.Count)
	}
}
