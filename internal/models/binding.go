package models

import "time"

// Binding ties the application to one remote endpoint and the sheet it created.
type Binding struct {
	EndpointURL string    `db:"endpoint_url" json:"endpoint_url" yaml:"endpoint_url"`
	SheetURL    string    `db:"sheet_url" json:"sheet_url" yaml:"sheet_url"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at" yaml:"updated_at"`
}

// Configured reports whether setup has completed for this binding.
func (b Binding) Configured() bool {
	return b.SheetURL != ""
}
