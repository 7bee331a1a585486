package domain

import "time"

// Material availability states.
const (
	MaterialAvailable = "AVAILABLE"
	MaterialLoaned    = "LOANED"
)

// Material is a tracked inventory item. SerialNumber is unique.
type Material struct {
	ID           string
	Category     string
	Model        string
	SerialNumber string
	Hostname     string
	IMEI         string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Loan statuses.
const (
	LoanOpen     = "OPEN"
	LoanReturned = "RETURNED"
)

// Loan records a material checkout to a borrower.
type Loan struct {
	ID              string
	MaterialID      string
	TechnicianID    string
	BorrowerName    string
	BorrowerService string
	LoanType        string
	Accessories     string
	CheckedOutAt    time.Time
	DueAt           *time.Time
	ReturnedAt      *time.Time
	Status          string
}
