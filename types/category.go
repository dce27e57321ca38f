package types

import "time"

// Category groups related indicators.
type Category struct {
	// ID is the unique identifier of the category.
	ID int `json:"id" db:"id"`

	// Name is unique among active categories.
	Name string `json:"name" db:"name"`

	// Description is optional free text.
	Description string `json:"description" db:"description"`

	// Active is false once the category has been logically deleted.
	Active bool `json:"active" db:"active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Indicators holds the active indicators of the category. It is only
	// populated when a single category is requested.
	Indicators []Indicator `json:"indicators,omitempty" db:"-"`
}
