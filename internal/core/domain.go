package core

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeIncome  Type = "income"
	TypeExpense Type = "expense"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

type (
	// Type classifies a transaction as income or expense.
	Type string

	// Date is a calendar date with no time component.
	Date struct {
		time.Time
	}

	// Transaction is a single dated financial record.
	Transaction struct {
		ID          int64           `json:"id"`
		Date        Date            `json:"date"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Type        Type            `json:"type"`
	}

	// TransactionInput carries the caller-supplied fields of a transaction.
	// The persisting store assigns the ID.
	TransactionInput struct {
		Date        Date            `json:"date"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Type        Type            `json:"type"`
	}
)

var (
	ErrNotFound         = errors.New("transaction not found")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("amount must not be negative")
	ErrInvalidType      = errors.New("type must be income or expense")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyDescription = errors.New("empty description")
)

// ParseType normalizes a raw type label to lowercase and validates it.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypeIncome, TypeExpense:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

func (t Type) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

func (t Type) String() string {
	return string(t)
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO calendar date such as "2024-01-31".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer, storing the date as ISO text.
func (d Date) Value() (driver.Value, error) {
	return d.Format(DateLayout), nil
}

// Scan implements sql.Scanner for TEXT date columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	case time.Time:
		*d = NewDate(v.Year(), int(v.Month()), v.Day())
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// Normalize trims free-form fields and lowercases the type. It is applied
// at every construction boundary before Validate.
func (in TransactionInput) Normalize() TransactionInput {
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	in.Type = Type(strings.ToLower(strings.TrimSpace(string(in.Type))))
	return in
}

func (in TransactionInput) Validate() error {
	if err := in.Date.Validate(); err != nil {
		return err
	}
	if in.Category == "" {
		return ErrEmptyCategory
	}
	if in.Description == "" {
		return ErrEmptyDescription
	}
	if in.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, in.Type)
	}
	return nil
}

// Input returns the non-id fields of a stored transaction.
func (t Transaction) Input() TransactionInput {
	return TransactionInput{
		Date:        t.Date,
		Category:    t.Category,
		Description: t.Description,
		Amount:      t.Amount,
		Type:        t.Type,
	}
}

// WithID builds the stored record from an input and an assigned id.
func (in TransactionInput) WithID(id int64) Transaction {
	return Transaction{
		ID:          id,
		Date:        in.Date,
		Category:    in.Category,
		Description: in.Description,
		Amount:      in.Amount,
		Type:        in.Type,
	}
}
