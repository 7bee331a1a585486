package dto

import (
	"time"

	"github.com/spec-kit/service-desk/internal/domain"
)

// MaterialRequest payload for registry entries.
type MaterialRequest struct {
	Category     string `json:"category"`
	Model        string `json:"model"`
	SerialNumber string `json:"serial_number"`
	Hostname     string `json:"hostname"`
	IMEI         string `json:"imei"`
}

// MaterialResponse mirrors a registry entry.
type MaterialResponse struct {
	ID           string    `json:"id"`
	Category     string    `json:"category"`
	Model        string    `json:"model"`
	SerialNumber string    `json:"serial_number"`
	Hostname     string    `json:"hostname,omitempty"`
	IMEI         string    `json:"imei,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CheckoutRequest payload.
type CheckoutRequest struct {
	MaterialID      string     `json:"material_id"`
	BorrowerName    string     `json:"borrower_name"`
	BorrowerService string     `json:"borrower_service"`
	LoanType        string     `json:"loan_type"`
	Accessories     string     `json:"accessories"`
	DueAt           *time.Time `json:"due_at"`
}

// LoanResponse mirrors a loan.
type LoanResponse struct {
	ID              string     `json:"id"`
	MaterialID      string     `json:"material_id"`
	TechnicianID    string     `json:"technician_id"`
	BorrowerName    string     `json:"borrower_name"`
	BorrowerService string     `json:"borrower_service"`
	LoanType        string     `json:"loan_type"`
	Accessories     string     `json:"accessories,omitempty"`
	CheckedOutAt    time.Time  `json:"checked_out_at"`
	DueAt           *time.Time `json:"due_at"`
	ReturnedAt      *time.Time `json:"returned_at"`
	Status          string     `json:"status"`
}

// MaterialFrom maps a domain material.
func MaterialFrom(m *domain.Material) MaterialResponse {
	return MaterialResponse{
		ID:           m.ID,
		Category:     m.Category,
		Model:        m.Model,
		SerialNumber: m.SerialNumber,
		Hostname:     m.Hostname,
		IMEI:         m.IMEI,
		Status:       m.Status,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// LoanFrom maps a domain loan.
func LoanFrom(l *domain.Loan) LoanResponse {
	return LoanResponse{
		ID:              l.ID,
		MaterialID:      l.MaterialID,
		TechnicianID:    l.TechnicianID,
		BorrowerName:    l.BorrowerName,
		BorrowerService: l.BorrowerService,
		LoanType:        l.LoanType,
		Accessories:     l.Accessories,
		CheckedOutAt:    l.CheckedOutAt,
		DueAt:           l.DueAt,
		ReturnedAt:      l.ReturnedAt,
		Status:          l.Status,
	}
}
