// Package importer parses transaction CSV files for bulk upload.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// RequiredColumns must all appear in the header, in any order. Extra
// columns are ignored.
var RequiredColumns = []string{"date", "category", "description", "amount", "type"}

var ErrMissingHeader = errors.New("csv must contain columns: date, category, description, amount, type")

// ParseCSV reads a full CSV file into transaction inputs. Any malformed
// row fails the whole parse with a row-numbered reason, so nothing partial
// ever reaches a store.
func ParseCSV(r io.Reader) ([]core.TransactionInput, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var inputs []core.TransactionInput
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		in, err := parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		inputs = append(inputs, in)
	}

	return inputs, nil
}

// columnIndex maps each required column name to its position.
func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range RequiredColumns {
		if _, ok := cols[required]; !ok {
			return nil, ErrMissingHeader
		}
	}
	return cols, nil
}

func parseRecord(record []string, cols map[string]int) (core.TransactionInput, error) {
	field := func(name string) (string, error) {
		i := cols[name]
		if i >= len(record) {
			return "", fmt.Errorf("missing %s column value", name)
		}
		return strings.TrimSpace(record[i]), nil
	}

	rawDate, err := field("date")
	if err != nil {
		return core.TransactionInput{}, err
	}
	date, err := core.ParseDate(rawDate)
	if err != nil {
		return core.TransactionInput{}, err
	}

	category, err := field("category")
	if err != nil {
		return core.TransactionInput{}, err
	}
	description, err := field("description")
	if err != nil {
		return core.TransactionInput{}, err
	}

	rawAmount, err := field("amount")
	if err != nil {
		return core.TransactionInput{}, err
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return core.TransactionInput{}, fmt.Errorf("invalid amount %q", rawAmount)
	}

	rawType, err := field("type")
	if err != nil {
		return core.TransactionInput{}, err
	}
	typ, err := core.ParseType(rawType)
	if err != nil {
		return core.TransactionInput{}, err
	}

	in := core.TransactionInput{
		Date:        date,
		Category:    category,
		Description: description,
		Amount:      amount,
		Type:        typ,
	}.Normalize()

	if err := in.Validate(); err != nil {
		return core.TransactionInput{}, err
	}
	return in, nil
}
