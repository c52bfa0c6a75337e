package domain

import "time"

type FuelEntry struct {
	ID              string    `json:"fuel_entry_id"`
	VehicleID       string    `json:"vehicle_id"`
	FuelDate        time.Time `json:"fuel_date"`
	FuelQuantity    float64   `json:"fuel_quantity"`
	OdometerReading *float64  `json:"odometer_reading,omitempty"`
	FuelStation     string    `json:"fuel_station,omitempty"`
	EnteredBy       string    `json:"entered_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// FuelEntryInput is the supervisor's fuel entry body.
type FuelEntryInput struct {
	VehicleID       string   `json:"vehicle_id"`
	FuelDate        string   `json:"fuel_date"`
	FuelQuantity    *float64 `json:"fuel_quantity"`
	OdometerReading *float64 `json:"odometer_reading"`
	FuelStation     string   `json:"fuel_station"`
	EnteredBy       string   `json:"entered_by"`
}

type FuelAnalysis struct {
	ID              string    `json:"analysis_id"`
	VehicleID       string    `json:"vehicle_id"`
	FuelEntryID     string    `json:"fuel_entry_id"`
	FuelGiven       float64   `json:"fuel_given"`
	DistanceCovered float64   `json:"distance_covered"`
	ExpectedMileage *float64  `json:"expected_mileage,omitempty"`
	ActualMileage   float64   `json:"actual_mileage"`
	FuelVariance    *float64  `json:"fuel_variance,omitempty"`
	TheftFlag       bool      `json:"theft_flag"`
	Policy          string    `json:"policy"`
	AnalysisDate    time.Time `json:"analysis_date"`
}
