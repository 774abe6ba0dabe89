// Package export renders maintenance history as CSV.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Header is the first CSV row.
var Header = []string{"date_performed", "maintenance_type", "km_performed", "service_cost", "product_cost", "total", "notes"}

const dateLayout = "02/01/2006"

// FileName returns the download name for a vehicle's history.
func FileName(plate string) string {
	plate = models.NormalizePlate(plate)
	if plate == "" {
		return "historico-manutencoes.csv"
	}
	return plate + "-manutencoes.csv"
}

// WriteCSV writes logs in the given order. Every field is quoted; rows end in CRLF.
func WriteCSV(w io.Writer, logs []models.MaintenanceLog) error {
	bw := bufio.NewWriter(w)
	if err := writeRow(bw, Header); err != nil {
		return err
	}
	for _, l := range logs {
		date := ""
		if !l.DatePerformed.IsZero() {
			date = l.DatePerformed.Format(dateLayout)
		}
		row := []string{
			date,
			l.MaintenanceType,
			strconv.Itoa(l.KmPerformed),
			money(l.ServiceCost),
			money(l.ProductCost),
			money(l.TotalCost()),
			l.Notes,
		}
		if err := writeRow(bw, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func writeRow(w *bufio.Writer, fields []string) error {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	if _, err := w.WriteString(strings.Join(quoted, ",") + "\r\n"); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}
