// Package guarantee implements the guarantee lifecycle: creation and one-way deactivation,
// each gated by the region policy and recorded in the audit log within the same transaction.
package guarantee

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"garantias.org/internal/apperr"
	"garantias.org/internal/auth"
)

// Table is the audited table name for guarantees.
const Table = "guarantees"

// Type is the legal form of the guarantee.
type Type string

const (
	TypeSurety     Type = "Surety"
	TypeMortgage   Type = "Mortgage"
	TypePledge     Type = "Pledge"
	TypeBank       Type = "Bank"
	TypeCommercial Type = "Commercial"
)

// Operation is the kind of operation that originated the guarantee.
type Operation string

const (
	OperationConstitution Operation = "Constitution"
	OperationRenewal      Operation = "Renewal"
	OperationExtension    Operation = "Extension"
	OperationReduction    Operation = "Reduction"
	OperationCancellation Operation = "Cancellation"
)

// Currency is an ISO 4217 code accepted for face values.
type Currency string

const (
	CurrencyBOB Currency = "BOB"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

var typeAliases = map[string]Type{
	"surety": TypeSurety, "fianza": TypeSurety,
	"mortgage": TypeMortgage, "hipotecaria": TypeMortgage,
	"pledge": TypePledge, "prendaria": TypePledge,
	"bank": TypeBank, "bancaria": TypeBank,
	"commercial": TypeCommercial, "comercial": TypeCommercial,
}

var operationAliases = map[string]Operation{
	"constitution": OperationConstitution, "constitución": OperationConstitution, "constitucion": OperationConstitution,
	"renewal": OperationRenewal, "renovación": OperationRenewal, "renovacion": OperationRenewal,
	"extension": OperationExtension, "ampliación": OperationExtension, "ampliacion": OperationExtension,
	"reduction": OperationReduction, "reducción": OperationReduction, "reduccion": OperationReduction,
	"cancellation": OperationCancellation, "cancelación": OperationCancellation, "cancelacion": OperationCancellation,
}

// ParseType accepts canonical names and the legacy Spanish labels.
func ParseType(s string) (Type, error) {
	if t, ok := typeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown guarantee type %q", apperr.ErrValidation, s)
}

// ParseOperation accepts canonical names and the legacy Spanish labels.
func ParseOperation(s string) (Operation, error) {
	if o, ok := operationAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return o, nil
	}
	return "", fmt.Errorf("%w: unknown operation type %q", apperr.ErrValidation, s)
}

// ParseCurrency accepts the code in any case.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CurrencyBOB, CurrencyUSD, CurrencyEUR:
		return c, nil
	}
	return "", fmt.Errorf("%w: unsupported currency %q", apperr.ErrValidation, s)
}

// Guarantee is a tracked guarantee instrument.
type Guarantee struct {
	ID            string          `json:"id"`
	PolicyNumber  string          `json:"policy_number"`
	SubjectID     string          `json:"subject_id"`
	Region        auth.Region     `json:"region"`
	ExternalID    string          `json:"guarantee_external_id"`
	Type          Type            `json:"guarantee_type"`
	Operation     Operation       `json:"operation_type"`
	Currency      Currency        `json:"currency"`
	FaceValue     decimal.Decimal `json:"face_value"`
	IsActive      bool            `json:"is_active"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	DeactivatedBy string          `json:"deactivated_by,omitempty"`
	DeactivatedAt *time.Time      `json:"deactivated_at,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Deactivate returns the post-image of the one-way Active to Inactive transition.
func (g Guarantee) Deactivate(by string, at time.Time) (Guarantee, error) {
	if !g.IsActive {
		return Guarantee{}, fmt.Errorf("%w: guarantee %s is already inactive", apperr.ErrConflict, g.ID)
	}
	next := g
	next.IsActive = false
	next.DeactivatedBy = by
	next.DeactivatedAt = &at
	next.UpdatedAt = at
	return next, nil
}

// Fields is the caller-supplied input for a new guarantee.
type Fields struct {
	PolicyNumber string          `json:"policy_number"`
	SubjectID    string          `json:"subject_id"`
	Region       string          `json:"region"`
	ExternalID   string          `json:"guarantee_external_id"`
	Type         string          `json:"guarantee_type"`
	Operation    string          `json:"operation_type"`
	Currency     string          `json:"currency"`
	FaceValue    decimal.Decimal `json:"face_value"`
}

// Face values are stored as numeric(20,2): two decimal places and at most 18 integer digits.
const faceValueScale = 2

var faceValueLimit = decimal.New(1, 18)

// Validate normalises f into a guarantee draft, reporting every problem at once.
func (f Fields) Validate() (Guarantee, error) {
	var problems []string
	g := Guarantee{
		PolicyNumber: strings.TrimSpace(f.PolicyNumber),
		SubjectID:    strings.TrimSpace(f.SubjectID),
		ExternalID:   strings.TrimSpace(f.ExternalID),
		FaceValue:    f.FaceValue,
	}
	if g.PolicyNumber == "" {
		problems = append(problems, "policy_number is required")
	}
	if g.SubjectID == "" {
		problems = append(problems, "subject_id is required")
	}
	if g.ExternalID == "" {
		problems = append(problems, "guarantee_external_id is required")
	}
	switch {
	case f.FaceValue.IsNegative():
		problems = append(problems, "face_value must be >= 0")
	case !f.FaceValue.Equal(f.FaceValue.Round(faceValueScale)):
		problems = append(problems, fmt.Sprintf("face_value allows at most %d decimal places", faceValueScale))
	case f.FaceValue.GreaterThanOrEqual(faceValueLimit):
		problems = append(problems, fmt.Sprintf("face_value must be below %s", faceValueLimit))
	}

	var err error
	if g.Region, err = auth.ParseRegion(f.Region); err != nil {
		problems = append(problems, fmt.Sprintf("unknown region %q", f.Region))
	}
	if g.Type, err = ParseType(f.Type); err != nil {
		problems = append(problems, fmt.Sprintf("unknown guarantee_type %q", f.Type))
	}
	if g.Operation, err = ParseOperation(f.Operation); err != nil {
		problems = append(problems, fmt.Sprintf("unknown operation_type %q", f.Operation))
	}
	if g.Currency, err = ParseCurrency(f.Currency); err != nil {
		problems = append(problems, fmt.Sprintf("unsupported currency %q", f.Currency))
	}

	if len(problems) > 0 {
		return Guarantee{}, fmt.Errorf("%w: %s", apperr.ErrValidation, strings.Join(problems, "; "))
	}
	return g, nil
}
