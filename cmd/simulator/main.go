// The simulator seeds a running API with vehicles and a plausible maintenance
// history so projections, alerts and stats have data to work on.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/projection"
)

// HistoryEntry is the body posted to /vehicles/{id}/maintenance.
type HistoryEntry struct {
	MaintenanceTypeID string          `json:"maintenance_type_id"`
	TypeName          string          `json:"-"`
	Category          models.Category `json:"category"`
	KmPerformed       int             `json:"km_performed"`
	DatePerformed     string          `json:"date_performed"`
	ServiceCost       float64         `json:"service_cost"`
	ProductCost       float64         `json:"product_cost"`
	Notes             string          `json:"notes,omitempty"`
}

const dateLayout = "2006-01-02T15:04:05"

var catalog = []struct {
	Make   string
	Models []string
}{
	{"Fiat", []string{"Argo", "Mobi", "Strada", "Toro"}},
	{"Volkswagen", []string{"Gol", "Polo", "T-Cross", "Saveiro"}},
	{"Chevrolet", []string{"Onix", "Tracker", "S10"}},
	{"Hyundai", []string{"HB20", "Creta"}},
	{"Toyota", []string{"Corolla", "Hilux", "Yaris"}},
	{"Renault", []string{"Kwid", "Duster", "Sandero"}},
}

// wearKeywords mark types whose services are logged as wear rather than preventive.
var wearKeywords = []string{"pastilha", "pneu", "disco", "amortecedor", "embreagem"}

type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) do(method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

func (c *apiClient) fetchTypes() ([]models.MaintenanceType, error) {
	resp, err := c.do(http.MethodGet, "/maintenance-types", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list maintenance types: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("maintenance type listing failed with status: %d", resp.StatusCode)
	}
	var types []models.MaintenanceType
	if err := json.NewDecoder(resp.Body).Decode(&types); err != nil {
		return nil, fmt.Errorf("failed to decode maintenance types: %w", err)
	}
	return types, nil
}

func (c *apiClient) createVehicle(req models.VehicleRequest) (string, error) {
	resp, err := c.do(http.MethodPost, "/vehicles", req)
	if err != nil {
		return "", fmt.Errorf("failed to create vehicle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("vehicle creation failed with status: %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	id, ok := result["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("invalid vehicle ID in response")
	}
	return id, nil
}

func (c *apiClient) postMaintenance(vehicleID string, entry HistoryEntry) error {
	resp, err := c.do(http.MethodPost, "/vehicles/"+vehicleID+"/maintenance", entry)
	if err != nil {
		return fmt.Errorf("failed to register maintenance: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("maintenance registration failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// randomPlate returns a Mercosul-style plate such as ABC1D23.
func randomPlate(rng *rand.Rand) string {
	letter := func() byte { return byte('A' + rng.Intn(26)) }
	digit := func() byte { return byte('0' + rng.Intn(10)) }
	return string([]byte{letter(), letter(), letter(), digit(), letter(), digit(), digit()})
}

func randomVehicle(rng *rand.Rand, startKm int, now time.Time) models.VehicleRequest {
	entry := catalog[rng.Intn(len(catalog))]
	return models.VehicleRequest{
		Make:         entry.Make,
		Model:        entry.Models[rng.Intn(len(entry.Models))],
		Year:         now.Year() - 1 - rng.Intn(8),
		CurrentKm:    startKm,
		LicensePlate: randomPlate(rng),
	}
}

func categoryFor(typeName string) models.Category {
	name := strings.ToLower(typeName)
	for _, k := range wearKeywords {
		if strings.Contains(name, k) {
			return models.CategoryWear
		}
	}
	return models.CategoryPreventive
}

func price(rng *rand.Rand, lo, hi float64) float64 {
	return math.Round((lo+rng.Float64()*(hi-lo))*100) / 100
}

type dueState struct {
	km   int
	date time.Time
}

// buildHistory drives a vehicle month by month from startKm over the last
// months before now, servicing every type whose distance or time limit passes.
// It returns the entries in chronological order and the final odometer reading.
func buildHistory(rng *rand.Rand, types []models.MaintenanceType, startKm, months int, now time.Time) ([]HistoryEntry, int) {
	start := projection.AddMonths(now, -months)
	monthlyKm := 800 + rng.Intn(1700)

	due := make([]dueState, len(types))
	for i, t := range types {
		intervalKm, intervalMonths := intervals(t)
		due[i] = dueState{
			km:   startKm + rng.Intn(intervalKm) + 1,
			date: projection.AddMonths(start, rng.Intn(intervalMonths)+1),
		}
	}

	entries := []HistoryEntry{}
	km := startKm
	for m := 1; m <= months; m++ {
		km += monthlyKm/2 + rng.Intn(monthlyKm+1)
		date := projection.AddMonths(start, m).Add(time.Duration(rng.Intn(72)) * time.Hour)
		if date.After(now) {
			date = now
		}

		for i, t := range types {
			if km < due[i].km && date.Before(due[i].date) {
				continue
			}
			entries = append(entries, HistoryEntry{
				MaintenanceTypeID: t.ID.Hex(),
				TypeName:          t.Name,
				Category:          categoryFor(t.Name),
				KmPerformed:       km,
				DatePerformed:     date.Format(dateLayout),
				ServiceCost:       price(rng, 60, 250),
				ProductCost:       price(rng, 30, 450),
			})
			intervalKm, intervalMonths := intervals(t)
			due[i] = dueState{km: km + intervalKm, date: projection.AddMonths(date, intervalMonths)}
		}

		if len(types) > 0 && rng.Intn(10) == 0 {
			t := types[rng.Intn(len(types))]
			entries = append(entries, HistoryEntry{
				MaintenanceTypeID: t.ID.Hex(),
				TypeName:          t.Name,
				Category:          models.CategoryCorrective,
				KmPerformed:       km,
				DatePerformed:     date.Format(dateLayout),
				ServiceCost:       price(rng, 150, 600),
				ProductCost:       price(rng, 100, 900),
				Notes:             "Reparo não programado",
			})
		}
	}
	return entries, km
}

func intervals(t models.MaintenanceType) (int, int) {
	km, months := t.DefaultIntervalKm, t.DefaultIntervalMonths
	if km <= 0 {
		km = projection.DefaultIntervalKm
	}
	if months <= 0 {
		months = projection.DefaultIntervalMonths
	}
	return km, months
}

// seedVehicle creates one vehicle and posts its history, returning the number
// of entries the API accepted.
func seedVehicle(c *apiClient, rng *rand.Rand, types []models.MaintenanceType, months int, now time.Time) (string, int, error) {
	startKm := rng.Intn(60000)
	vehicle := randomVehicle(rng, startKm, now)
	id, err := c.createVehicle(vehicle)
	if err != nil {
		return "", 0, err
	}

	entries, finalKm := buildHistory(rng, types, startKm, months, now)
	posted := 0
	for _, e := range entries {
		if err := c.postMaintenance(id, e); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"vehicle_id": id,
				"type":       e.TypeName,
				"km":         e.KmPerformed,
			}).Warn("Failed to register maintenance")
			continue
		}
		posted++
	}

	log.WithFields(log.Fields{
		"vehicle_id": id,
		"make":       vehicle.Make,
		"model":      vehicle.Model,
		"plate":      vehicle.LicensePlate,
		"entries":    posted,
		"final_km":   finalKm,
	}).Info("Seeded vehicle")
	return id, posted, nil
}

type settings struct {
	fleetSize     int
	apiURL        string
	token         string
	historyMonths int
	seed          int64
}

func positiveEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
		log.WithField(key, val).Warn("Ignoring invalid value")
	}
	return fallback
}

func loadSettings() settings {
	s := settings{
		fleetSize:     positiveEnv("FLEET_SIZE", 5),
		apiURL:        os.Getenv("API_BASE_URL"),
		token:         os.Getenv("SIM_AUTH_TOKEN"),
		historyMonths: positiveEnv("SIM_HISTORY_MONTHS", 24),
		seed:          time.Now().UnixNano(),
	}
	if s.apiURL == "" {
		s.apiURL = "http://localhost:8080/api"
	}
	if v := os.Getenv("SIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			s.seed = n
		}
	}
	return s
}

func run(s settings, now time.Time) (int, error) {
	client := newAPIClient(s.apiURL, s.token)
	rng := rand.New(rand.NewSource(s.seed))

	types, err := client.fetchTypes()
	if err != nil {
		return 0, err
	}
	if len(types) == 0 {
		return 0, fmt.Errorf("no maintenance types registered for this account")
	}

	created := 0
	for i := 0; i < s.fleetSize; i++ {
		if _, _, err := seedVehicle(client, rng, types, s.historyMonths, now); err != nil {
			log.WithError(err).Error("Failed to seed vehicle")
			continue
		}
		created++
	}
	return created, nil
}

func main() {
	s := loadSettings()
	log.WithFields(log.Fields{
		"fleet_size":     s.fleetSize,
		"api_url":        s.apiURL,
		"history_months": s.historyMonths,
		"seed":           s.seed,
	}).Info("Starting maintenance history seeding")

	created, err := run(s, time.Now())
	if err != nil {
		log.WithError(err).Fatal("Seeding failed. Ensure SIM_AUTH_TOKEN is valid and the API is reachable")
	}
	if created == 0 {
		log.Fatal("No vehicles created")
	}
	log.WithField("created_vehicles", created).Info("Seeding completed")
}
