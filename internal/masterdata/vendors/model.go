package vendors

import "time"

// Vendor is a job-work partner for outsourced customization stages.
type Vendor struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Contact     string    `json:"contact"`
	Phone       string    `json:"phone"`
	Specialties []string  `json:"specialties"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
