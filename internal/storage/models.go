package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// FeatureColumns is the classifier's input schema in training column order.
// The order is load-bearing: attribution ties are broken by position here.
var FeatureColumns = []string{
	"gen_units",
	"operating_hrs",
	"avg_wind_speed",
	"lull_hrs",
	"fault_time",
	"pm_shut_down",
	"int_grid_down",
	"ext_grid_down",
	"capacity",
	"downtime_hrs",
	"availability",
	"plf_percent",
	"mttr",
	"mtbf",
}

// FeatureRow is one turbine-day of numeric operational measurements.
// Values is aligned with FeatureColumns; identifier, label, and free-text
// columns never leave the storage layer.
type FeatureRow struct {
	TurbineID string
	LogDate   string // ISO date, YYYY-MM-DD
	Values    []float64
}

// ErrorLog is one recorded operational error event.
type ErrorLog struct {
	ID               int64
	TurbineID        string
	ErrorTime        time.Time
	AlarmCode        string
	ShortDescription string
	Duration         string
}

// Turn is one persisted conversation exchange.
type Turn struct {
	ID        string
	UserID    string
	Question  string
	Answer    string
	Intent    string
	CreatedAt time.Time
}
