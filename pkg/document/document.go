// Package document classifies and prices the registry numbers a caller can look up.
// All functions are pure.
package document

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/consulta/pkg/models"
)

var (
	ErrMissingDocument = errors.New("missing document")
	ErrInvalidFormat   = errors.New("invalid document format")
)

// Type is the kind of registry number being looked up.
type Type string

const (
	CNPJ Type = "cnpj"
	CPF  Type = "cpf"
)

type policy struct {
	digits int
	cost   models.Credits
}

// policies is the single source of per-type length and price.
// Adding a document type means adding an entry here.
var policies = map[Type]policy{
	CNPJ: {digits: 14, cost: 12},
	CPF:  {digits: 11, cost: 15},
}

// Cost returns the credit cost of one lookup of this type. Unknown types cost zero.
func (t Type) Cost() models.Credits {
	return policies[t].cost
}

// Digits returns the expected digit count for this type.
func (t Type) Digits() int {
	return policies[t].digits
}

// Document is a normalized registry number with its type.
type Document struct {
	Type   Type
	Number string
}

// Cost returns the credit cost of looking up d.
func (d Document) Cost() models.Credits {
	return d.Type.Cost()
}

// Parse picks the document from the cnpj and cpf request fields, which are
// mutually exclusive, and validates its digit count after normalization.
func Parse(cnpj, cpf string) (Document, error) {
	cnpj = strings.TrimSpace(cnpj)
	cpf = strings.TrimSpace(cpf)

	var d Document
	switch {
	case cnpj != "" && cpf != "":
		return Document{}, fmt.Errorf("%w: provide either cnpj or cpf, not both", ErrMissingDocument)
	case cnpj != "":
		d = Document{Type: CNPJ, Number: Normalize(cnpj)}
	case cpf != "":
		d = Document{Type: CPF, Number: Normalize(cpf)}
	default:
		return Document{}, fmt.Errorf("%w: cnpj or cpf is required", ErrMissingDocument)
	}

	if want := d.Type.Digits(); len(d.Number) != want {
		return Document{}, fmt.Errorf("%w: %s must have %d digits, got %d",
			ErrInvalidFormat, strings.ToUpper(string(d.Type)), want, len(d.Number))
	}
	return d, nil
}

// Normalize strips every non-digit character.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
