package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category classifies a maintenance event.
type Category string

const (
	CategoryPreventive Category = "preventiva"
	CategoryWear       Category = "desgaste"
	CategoryCorrective Category = "corretiva"

	// CategoryOther is never stored; aggregates use it for values outside the known set.
	CategoryOther Category = "outra"
)

// KnownCategories lists the categories accepted on write, in display order.
var KnownCategories = []Category{CategoryPreventive, CategoryWear, CategoryCorrective}

// IsValidCategory checks if a category is one of the known values
func IsValidCategory(c Category) bool {
	switch c {
	case CategoryPreventive, CategoryWear, CategoryCorrective:
		return true
	default:
		return false
	}
}

// MaintenanceType is a catalog entry describing a recurring service.
type MaintenanceType struct {
	ID                    primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID                string             `json:"user_id" bson:"user_id"`
	Name                  string             `json:"name" bson:"name"`
	DefaultIntervalKm     int                `json:"default_interval_km" bson:"default_interval_km"`
	DefaultIntervalMonths int                `json:"default_interval_months" bson:"default_interval_months"`
	Description           string             `json:"description,omitempty" bson:"description,omitempty"`
}

// MaintenanceLog is a historical record of one completed maintenance event.
type MaintenanceLog struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	VehicleID         string             `json:"vehicle_id" bson:"vehicle_id"`
	MaintenanceTypeID primitive.ObjectID `json:"maintenance_type_id" bson:"maintenance_type_id,omitempty"`
	MaintenanceType   string             `json:"maintenance_type" bson:"maintenance_type"` // type name, denormalized
	Category          Category           `json:"category" bson:"category"`
	KmPerformed       int                `json:"km_performed" bson:"km_performed"`
	DatePerformed     time.Time          `json:"date_performed" bson:"date_performed"`
	ServiceCost       float64            `json:"service_cost" bson:"service_cost"`
	ProductCost       float64            `json:"product_cost" bson:"product_cost"`
	Notes             string             `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}

// TotalCost returns service plus product cost.
func (l MaintenanceLog) TotalCost() float64 {
	return l.ServiceCost + l.ProductCost
}

// DefaultMaintenanceTypes is the catalog seeded for every new user.
func DefaultMaintenanceTypes(userID string) []MaintenanceType {
	defaults := []struct {
		name   string
		km     int
		months int
	}{
		{"Troca de Óleo do Motor", 10000, 12},
		{"Filtro de Óleo", 10000, 12},
		{"Filtro de Ar", 20000, 24},
		{"Filtro de Combustível", 20000, 24},
		{"Pastilhas de Freio", 30000, 36},
		{"Fluido de Freio", 40000, 24},
		{"Líquido de Arrefecimento", 40000, 24},
		{"Óleo de Câmbio (Manual)", 100000, 60},
		{"Correia Dentada", 60000, 48},
		{"Velas de Ignição", 50000, 48},
	}

	types := make([]MaintenanceType, 0, len(defaults))
	for _, d := range defaults {
		types = append(types, MaintenanceType{
			ID:                    primitive.NewObjectID(),
			UserID:                userID,
			Name:                  d.name,
			DefaultIntervalKm:     d.km,
			DefaultIntervalMonths: d.months,
		})
	}
	return types
}

// MaintenanceTypeRequest is the body of type create/update requests. Nil fields are left unchanged.
type MaintenanceTypeRequest struct {
	Name                  *string `json:"name"`
	DefaultIntervalKm     *int    `json:"default_interval_km"`
	DefaultIntervalMonths *int    `json:"default_interval_months"`
	Description           *string `json:"description"`
}

// Apply copies the interval and description fields onto t. It returns a
// validation message, or "" when the request is acceptable.
func (r MaintenanceTypeRequest) Apply(t *MaintenanceType) string {
	if r.DefaultIntervalKm != nil {
		if *r.DefaultIntervalKm < 0 {
			return "Interval km cannot be negative"
		}
		t.DefaultIntervalKm = *r.DefaultIntervalKm
	}
	if r.DefaultIntervalMonths != nil {
		if *r.DefaultIntervalMonths < 0 {
			return "Interval months cannot be negative"
		}
		t.DefaultIntervalMonths = *r.DefaultIntervalMonths
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	return ""
}

// MaintenanceLogRequest is the body of log create/update requests. Nil fields are left unchanged.
type MaintenanceLogRequest struct {
	MaintenanceTypeID *string   `json:"maintenance_type_id"`
	Category          *Category `json:"category"`
	KmPerformed       *int      `json:"km_performed"`
	DatePerformed     *string   `json:"date_performed"`
	ServiceCost       *float64  `json:"service_cost"`
	ProductCost       *float64  `json:"product_cost"`
	Notes             *string   `json:"notes"`
}
