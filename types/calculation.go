package types

import "time"

// CalculationState is the review state of a calculation.
type CalculationState string

const (
	CalculationPending  CalculationState = "Pending"
	CalculationApproved CalculationState = "Approved"
	CalculationRejected CalculationState = "Rejected"
)

// DefaultPeriod is used when a calculation is recorded without a period label.
const DefaultPeriod = "Mensual"

// Valid reports whether s is one of the known states.
func (s CalculationState) Valid() bool {
	switch s {
	case CalculationPending, CalculationApproved, CalculationRejected:
		return true
	default:
		return false
	}
}

// Calculation is one measurement of an indicator in a period.
type Calculation struct {
	// ID is the unique identifier of the calculation.
	ID int `json:"id" db:"id"`

	// IndicatorID references the measured indicator.
	IndicatorID int `json:"indicator_id" db:"indicator_id"`

	// UserID references the user who recorded the calculation.
	UserID int `json:"user_id" db:"user_id"`

	// RealValue is the observed value for the period.
	RealValue float64 `json:"real_value" db:"real_value"`

	// TargetValue is the expected value for the period.
	TargetValue float64 `json:"target_value" db:"target_value"`

	// CompliancePercentage is derived from RealValue and TargetValue on
	// every write and never taken from the client.
	CompliancePercentage float64 `json:"compliance_percentage" db:"compliance_percentage"`

	// Period is a free label such as "Mensual" or "2024-Q1".
	Period string `json:"period" db:"period"`

	Observations string `json:"observations" db:"observations"`

	// State is the review state; new calculations start as Pending.
	State CalculationState `json:"state" db:"state"`

	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
