// Package core provides the business logic for chemical equipment uploads.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"time"

	"github.com/google/uuid"
)

// EquipmentType is the fixed classification of process equipment.
type EquipmentType string

const (
	TypePump          EquipmentType = "Pump"
	TypeCompressor    EquipmentType = "Compressor"
	TypeValve         EquipmentType = "Valve"
	TypeHeatExchanger EquipmentType = "HeatExchanger"
	TypeReactor       EquipmentType = "Reactor"
	TypeCondenser     EquipmentType = "Condenser"
	TypeOther         EquipmentType = "Other"
)

// KnownTypes lists the enumerated equipment types in display order.
var KnownTypes = []EquipmentType{
	TypePump,
	TypeCompressor,
	TypeValve,
	TypeHeatExchanger,
	TypeReactor,
	TypeCondenser,
	TypeOther,
}

// Label returns the human-readable name ("Heat Exchanger" for HeatExchanger).
func (t EquipmentType) Label() string {
	if t == TypeHeatExchanger {
		return "Heat Exchanger"
	}
	return string(t)
}

// ClassifyType maps a free-text type onto the fixed enumeration.
// Matching is exact; anything unrecognized classifies as TypeOther with ok=false.
func ClassifyType(s string) (EquipmentType, bool) {
	for _, t := range KnownTypes {
		if string(t) == s {
			return t, true
		}
	}
	return TypeOther, false
}

// EquipmentRecord is one validated CSV row. It is never mutated after ingestion.
type EquipmentRecord struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"` // Free text as uploaded, trimmed
	Flowrate    float64 `json:"flowrate"`
	Pressure    float64 `json:"pressure"`
	Temperature float64 `json:"temperature"`
}

// Equipment is a persisted EquipmentRecord belonging to an upload.
type Equipment struct {
	ID       int64     `json:"id"`
	UploadID uuid.UUID `json:"-"`
	EquipmentRecord
}

// Records strips persistence metadata from a slice of Equipment.
func Records(items []Equipment) []EquipmentRecord {
	out := make([]EquipmentRecord, len(items))
	for i, item := range items {
		out[i] = item.EquipmentRecord
	}
	return out
}

// SummaryStatistics holds aggregate values over a set of records.
// All numeric fields are zero when TotalCount is zero.
type SummaryStatistics struct {
	TotalCount       int            `json:"total_count"`
	AvgFlowrate      float64        `json:"avg_flowrate"`
	AvgPressure      float64        `json:"avg_pressure"`
	AvgTemperature   float64        `json:"avg_temperature"`
	MinFlowrate      float64        `json:"min_flowrate"`
	MaxFlowrate      float64        `json:"max_flowrate"`
	MinPressure      float64        `json:"min_pressure"`
	MaxPressure      float64        `json:"max_pressure"`
	MinTemperature   float64        `json:"min_temperature"`
	MaxTemperature   float64        `json:"max_temperature"`
	TypeDistribution map[string]int `json:"type_distribution"`
}

// Upload is one CSV ingestion event and its group of equipment rows.
type Upload struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"-"`
	Filename    string    `json:"filename"`
	UploadedAt  time.Time `json:"uploaded_at"`
	RecordCount int       `json:"record_count"`
}

// UploadDetail is an upload together with its equipment rows.
type UploadDetail struct {
	Upload
	Equipment []Equipment `json:"equipment"`
}

// UploadResult is returned after a successful upload.
type UploadResult struct {
	Upload   Upload        `json:"upload"`
	Stats    IngestStats   `json:"stats"`
	Pruned   []uuid.UUID   `json:"pruned,omitempty"`
	Duration time.Duration `json:"-"`
}

// User is an account that owns uploads.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// Token is an opaque bearer credential issued at login or registration.
type Token struct {
	Key       string
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at time now.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}
