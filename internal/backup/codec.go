// Package backup serializes a household's full data set into a versioned
// portable document and validates documents before restore.
//
// The format is shared with earlier exports of the tracker: a JSON object
// with top-level version, exportDate, familyCode and a data object holding
// the five collections. The codec only encodes and decodes; gathering the
// snapshot and applying a restore belong to the services layer.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gastos/internal/core"
)

// Version is the document version this codec produces. Decoding accepts
// any version as long as the required fields are present.
const Version = "1.0"

var (
	ErrMalformedBackup = errors.New("malformed backup document")
	ErrFamilyMismatch  = errors.New("backup belongs to a different family")
)

// Collections holds the five entity collections of one household.
// Key names are part of the wire format.
type Collections struct {
	Expenses          []core.Transaction `json:"expenses"`
	Incomes           []core.Transaction `json:"incomes"`
	ExpenseCategories []core.Category    `json:"expense_categories"`
	IncomeCategories  []core.Category    `json:"income_categories"`
	Budgets           []core.Budget      `json:"budgets"`
}

// Document is a point-in-time snapshot of a household's data. Immutable
// once created.
type Document struct {
	Version    string      `json:"version"`
	ExportDate string      `json:"exportDate"`
	FamilyCode string      `json:"familyCode"`
	Data       Collections `json:"data"`
}

// NewDocument wraps a snapshot into a document stamped with the export
// time in RFC 3339.
func NewDocument(familyCode string, data Collections, now time.Time) Document {
	return Document{
		Version:    Version,
		ExportDate: now.UTC().Format(time.RFC3339),
		FamilyCode: familyCode,
		Data:       data,
	}
}

// Encode renders the document as indented JSON, the form users download
// and keep.
func Encode(doc Document) ([]byte, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return b, nil
}

// Decode parses an untrusted byte stream into a Document. It returns
// ErrMalformedBackup when the bytes are not JSON or when the required
// familyCode or data fields are absent.
func Decode(raw []byte) (Document, error) {
	// Distinguish a missing data field from an empty one.
	var probe struct {
		Version    string          `json:"version"`
		ExportDate string          `json:"exportDate"`
		FamilyCode string          `json:"familyCode"`
		Data       json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Document{}, fmt.Errorf("%w: %s", ErrMalformedBackup, err)
	}
	if probe.FamilyCode == "" {
		return Document{}, fmt.Errorf("%w: missing familyCode", ErrMalformedBackup)
	}
	if len(probe.Data) == 0 || string(probe.Data) == "null" {
		return Document{}, fmt.Errorf("%w: missing data", ErrMalformedBackup)
	}

	doc := Document{
		Version:    probe.Version,
		ExportDate: probe.ExportDate,
		FamilyCode: probe.FamilyCode,
	}
	if err := json.Unmarshal(probe.Data, &doc.Data); err != nil {
		return Document{}, fmt.Errorf("%w: %s", ErrMalformedBackup, err)
	}
	return doc, nil
}

// ValidateOwnership rejects documents that belong to another household.
// This check is mandatory before any destructive restore step.
func (d Document) ValidateOwnership(familyCode string) error {
	if d.FamilyCode != familyCode {
		return ErrFamilyMismatch
	}
	return nil
}
