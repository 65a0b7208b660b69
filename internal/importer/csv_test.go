package importer

import (
	"errors"
	"strings"
	"testing"

	"fintrack/internal/core"
)

func TestParseCSV(t *testing.T) {
	input := strings.Join([]string{
		"date,category,description,amount,type",
		"2024-01-15,Food,groceries,42.50,expense",
		"2024-01-31,Salary,Jan pay,3000.00,Income",
	}, "\n")

	inputs, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(inputs) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(inputs))
	}

	first := inputs[0]
	if first.Date.String() != "2024-01-15" || first.Category != "Food" ||
		first.Description != "groceries" || first.Amount.String() != "42.5" ||
		first.Type != core.TypeExpense {
		t.Fatalf("first row mismatch: %+v", first)
	}
	if inputs[1].Type != core.TypeIncome {
		t.Fatalf("row type not normalized: %q", inputs[1].Type)
	}
}

func TestParseCSVHeaderOrderAndExtras(t *testing.T) {
	input := strings.Join([]string{
		"Type,Amount,notes,Date,Description,Category",
		"expense,10.00,ignored,2024-02-01,coffee,Food",
	}, "\n")

	inputs, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(inputs) != 1 || inputs[0].Category != "Food" || inputs[0].Description != "coffee" {
		t.Fatalf("reordered header misparsed: %+v", inputs)
	}
}

func TestParseCSVMissingColumn(t *testing.T) {
	input := strings.Join([]string{
		"date,category,description,amount",
		"2024-01-15,Food,groceries,42.50",
	}, "\n")

	if _, err := ParseCSV(strings.NewReader(input)); !errors.Is(err, ErrMissingHeader) {
		t.Fatalf("expected ErrMissingHeader, got %v", err)
	}
}

func TestParseCSVEmptyInput(t *testing.T) {
	if _, err := ParseCSV(strings.NewReader("")); !errors.Is(err, ErrMissingHeader) {
		t.Fatalf("expected ErrMissingHeader on empty input, got %v", err)
	}
}

func TestParseCSVBadRowFailsWholeParse(t *testing.T) {
	tests := []struct {
		name  string
		row   string
		wants string
	}{
		{"bad date", "15/01/2024,Food,groceries,42.50,expense", "row 3"},
		{"bad amount", "2024-01-15,Food,groceries,abc,expense", "row 3"},
		{"bad type", "2024-01-15,Food,groceries,42.50,transfer", "row 3"},
		{"empty category", "2024-01-15,,groceries,42.50,expense", "row 3"},
		{"negative amount", "2024-01-15,Food,groceries,-5.00,expense", "row 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := strings.Join([]string{
				"date,category,description,amount,type",
				"2024-01-01,Food,ok,1.00,expense",
				tt.row,
			}, "\n")

			inputs, err := ParseCSV(strings.NewReader(input))
			if err == nil {
				t.Fatalf("expected parse failure")
			}
			if !strings.Contains(err.Error(), tt.wants) {
				t.Fatalf("error should name the offending row: %v", err)
			}
			if inputs != nil {
				t.Fatalf("bad row must not yield partial results")
			}
		})
	}
}
