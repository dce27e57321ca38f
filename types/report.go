package types

import "time"

// Report describes an exported indicator report held in object storage.
type Report struct {
	// Key is the object key inside the reports bucket.
	Key string `json:"key"`

	IndicatorID int `json:"indicator_id"`

	// Rows is the number of calculations written to the report.
	Rows int `json:"rows"`

	// Size is the report size in bytes.
	Size int64 `json:"size"`

	ContentType string    `json:"content_type"`
	CreatedBy   int       `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}
