// maintctl runs the maintenance projection, due alerts and CSV export offline
// over exported JSON files.
//
// Usage:
//
//	maintctl project --logs logs.json --types types.json [--now 2024-06-01T00:00:00Z] [--format table|json]
//	maintctl alerts --logs logs.json --types types.json --current-km 52000 [--publish]
//	maintctl export --logs logs.json [--plate ABC1D23] [--out history.csv]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/export"
	"github.com/ukydev/fleet-maintenance/internal/ingest"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/notify"
	"github.com/ukydev/fleet-maintenance/internal/projection"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "maintctl",
		Usage:   "Maintenance projections over exported history",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			log.SetOutput(c.App.ErrWriter)
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
			level, err := log.ParseLevel(c.String("log-level"))
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", c.String("log-level"), err)
			}
			log.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			projectCommand(),
			alertsCommand(),
			exportCommand(),
		},
	}
}

func logsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "logs",
		Aliases:  []string{"l"},
		Usage:    "Path to a JSON array of maintenance logs",
		Required: true,
	}
}

func typesFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "types",
		Aliases:  []string{"t"},
		Usage:    "Path to a JSON array of maintenance types",
		Required: true,
	}
}

func nowFlag() cli.Flag {
	return &cli.TimestampFlag{
		Name:   "now",
		Usage:  "Evaluation time (RFC3339), defaults to the current time",
		Layout: time.RFC3339,
	}
}

func projectCommand() *cli.Command {
	return &cli.Command{
		Name:  "project",
		Usage: "Compute trailing spending and next-due projections",
		Flags: []cli.Flag{
			logsFlag(),
			typesFlag(),
			nowFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json)",
			},
		},
		Action: runProject,
	}
}

func alertsCommand() *cli.Command {
	return &cli.Command{
		Name:  "alerts",
		Usage: "List maintenance types that are due",
		Flags: []cli.Flag{
			logsFlag(),
			typesFlag(),
			nowFlag(),
			&cli.IntFlag{
				Name:     "current-km",
				Usage:    "Current odometer reading of the vehicle",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "vehicle-id",
				Usage: "Only use history of this vehicle and attach the id to published alerts",
			},
			&cli.BoolFlag{
				Name:  "publish",
				Usage: "Publish every alert to the sink configured by ALERT_SINK",
			},
		},
		Action: runAlerts,
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write maintenance history as CSV",
		Flags: []cli.Flag{
			logsFlag(),
			&cli.StringFlag{
				Name:  "plate",
				Usage: "License plate used for the default file name",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output file; '-' writes to stdout, empty uses <PLATE>-manutencoes.csv",
			},
		},
		Action: runExport,
	}
}

func evaluationTime(c *cli.Context) time.Time {
	if ts := c.Timestamp("now"); ts != nil {
		return *ts
	}
	return time.Now()
}

func loadLogs(path string) ([]models.MaintenanceLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open logs: %w", err)
	}
	defer f.Close()

	logs, issues, err := ingest.DecodeLogs(f)
	if err != nil {
		return nil, err
	}
	for _, issue := range issues {
		log.WithField("file", path).Warn(issue.String())
	}
	return logs, nil
}

func loadTypes(path string) ([]models.MaintenanceType, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open types: %w", err)
	}
	defer f.Close()

	types, issues, err := ingest.DecodeTypes(f)
	if err != nil {
		return nil, err
	}
	for _, issue := range issues {
		log.WithField("file", path).Warn(issue.String())
	}
	return types, nil
}

func loadInputs(c *cli.Context) ([]models.MaintenanceLog, []models.MaintenanceType, error) {
	logs, err := loadLogs(c.String("logs"))
	if err != nil {
		return nil, nil, err
	}
	types, err := loadTypes(c.String("types"))
	if err != nil {
		return nil, nil, err
	}
	return logs, types, nil
}

func runProject(c *cli.Context) error {
	logs, types, err := loadInputs(c)
	if err != nil {
		return err
	}

	result := projection.Compute(logs, types, evaluationTime(c))
	log.WithFields(log.Fields{
		"entries":            len(logs),
		"window_entries":     len(result.TrailingWindowEntries),
		"skipped_dates":      result.Diagnostics.SkippedDates,
		"unknown_categories": result.Diagnostics.UnknownCategories,
		"sanitized_costs":    result.Diagnostics.SanitizedCosts,
	}).Debug("Projection computed")

	switch c.String("format") {
	case "json":
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "table":
		return writeProjectionTable(c.App.Writer, result)
	default:
		return fmt.Errorf("unknown format %q", c.String("format"))
	}
}

func writeProjectionTable(out io.Writer, res projection.Result) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Window start:\t%s\n", res.WindowStart.Format("2006-01-02"))
	fmt.Fprintf(tw, "Distance driven:\t%d km (%.0f km/month)\n", res.DistanceDriven, res.MonthlyDistanceAverage)
	fmt.Fprintf(tw, "Total spent:\t%s\n", res.TotalSpent.StringFixed(2))
	fmt.Fprintf(tw, "Monthly reserve:\t%s\n", res.RecommendedMonthlyReserve.StringFixed(2))
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "CATEGORY\tSPENT\tAVERAGE")
	cats := make([]string, 0, len(res.CostsByCategory))
	for c := range res.CostsByCategory {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	for _, c := range cats {
		cat := models.Category(c)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", cat, res.CostsByCategory[cat].StringFixed(2), res.AverageCostByCategory[cat].StringFixed(2))
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "TYPE\tLAST KM\tNEXT KM\tNEXT DATE\tESTIMATE")
	for _, p := range res.PerTypeProjection {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", p.TypeName, p.LastKm, p.NextDueDistance, p.NextDueDate.Format("2006-01-02"), p.EstimatedCost.StringFixed(2))
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "MONTH\tITEMS\tCOST")
	for _, m := range res.MonthlyForwardProjection {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", m.Label, len(m.Items), m.TotalCost.StringFixed(2))
	}

	for _, w := range res.Diagnostics.Warnings {
		fmt.Fprintf(tw, "warning:\t%s\n", w)
	}
	return tw.Flush()
}

func forVehicle(logs []models.MaintenanceLog, vehicleID string) []models.MaintenanceLog {
	kept := make([]models.MaintenanceLog, 0, len(logs))
	for _, l := range logs {
		if l.VehicleID == vehicleID {
			kept = append(kept, l)
		}
	}
	return kept
}

func runAlerts(c *cli.Context) error {
	logs, types, err := loadInputs(c)
	if err != nil {
		return err
	}

	if id := c.String("vehicle-id"); id != "" {
		logs = forVehicle(logs, id)
	}

	now := evaluationTime(c)
	vehicle := models.Vehicle{CurrentKm: c.Int("current-km")}
	alerts := projection.DueAlerts(vehicle, logs, types, now)
	if len(alerts) == 0 {
		fmt.Fprintln(c.App.Writer, "No maintenance due.")
		return nil
	}
	for _, a := range alerts {
		fmt.Fprintf(c.App.Writer, "%s: %s\n", a.Type, a.Message)
	}

	if !c.Bool("publish") {
		return nil
	}
	publisher, err := notify.New(config.Load().Notify, log.StandardLogger())
	if err != nil {
		return err
	}
	defer publisher.Close()
	return publishAlerts(c.Context, publisher, c.String("vehicle-id"), alerts, now)
}

func publishAlerts(ctx context.Context, publisher notify.Publisher, vehicleID string, alerts []projection.Alert, now time.Time) error {
	for _, a := range alerts {
		event := notify.NewEvent(notify.KindMaintenanceDue, now)
		event.VehicleID = vehicleID
		event.MaintenanceType = a.Type
		event.NextDueKm = a.NextDueDistance
		due := a.NextDueDate
		event.NextDueDate = &due
		event.Reason = string(a.Reason)
		event.Message = a.Message
		if err := publisher.Publish(ctx, event); err != nil {
			return fmt.Errorf("publish alert for %s: %w", a.Type, err)
		}
	}
	log.WithField("alerts", len(alerts)).Info("Alerts published")
	return nil
}

func runExport(c *cli.Context) error {
	logs, err := loadLogs(c.String("logs"))
	if err != nil {
		return err
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].DatePerformed.After(logs[j].DatePerformed)
	})

	out := c.String("out")
	if out == "-" {
		return export.WriteCSV(c.App.Writer, logs)
	}
	if out == "" {
		out = export.FileName(c.String("plate"))
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := export.WriteCSV(f, logs); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.WithFields(log.Fields{"file": out, "rows": len(logs)}).Info("History exported")
	return nil
}
