package types

import "time"

// Indicator is a named, formula-bearing metric that belongs to a category.
type Indicator struct {
	// ID is the unique identifier of the indicator.
	ID int `json:"id" db:"id"`

	// Name is unique among the active indicators of the same category.
	Name string `json:"name" db:"name"`

	Description string `json:"description" db:"description"`

	// Formula describes how the indicator's real value is obtained.
	Formula string `json:"formula" db:"formula"`

	// Unit is the measurement unit (e.g. "%", "USD").
	Unit string `json:"unit" db:"unit"`

	// Frequency is how often the indicator is measured (e.g. "Mensual").
	Frequency string `json:"frequency" db:"frequency"`

	// Responsible names the party accountable for the indicator.
	Responsible string `json:"responsible" db:"responsible"`

	// CategoryID references the owning category, which must be active.
	CategoryID int `json:"category_id" db:"category_id"`

	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
