package packages

import (
	"packtrack/infrastructure/lifecycle"
	"packtrack/models"
)

type TransitionRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
	Packer string `json:"packer,omitempty"`
}

type BatchRequest struct {
	Codes []string `json:"codes"`
	Actor string   `json:"actor"`
}

// PackageView is the status of one code. Record is absent for unassigned
// codes.
type PackageView struct {
	Code          string                `json:"code"`
	Status        lifecycle.Status      `json:"status"`
	ReportDetails string                `json:"report_details,omitempty"`
	Record        *models.PackageRecord `json:"record,omitempty"`
}
