package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PeriodThisMonth PeriodFilter = "this-month"
	PeriodThisYear  PeriodFilter = "this-year"
	PeriodAllTime   PeriodFilter = "all-time"
)

type (
	// PeriodFilter names a relative reporting window.
	PeriodFilter string

	// Totals holds the aggregate amounts over a set of transactions.
	Totals struct {
		Income   decimal.Decimal `json:"total_income"`
		Expenses decimal.Decimal `json:"total_expenses"`
		Balance  decimal.Decimal `json:"balance"`
	}

	// Summary is the reporting surface: totals plus the period they cover.
	Summary struct {
		Totals
		Period string `json:"period"`
	}
)

// Summarize aggregates a set of transactions. The input is never mutated.
// An empty input yields exact zero totals.
func Summarize(items []Transaction) Totals {
	income := decimal.Zero
	expenses := decimal.Zero
	for _, t := range items {
		switch t.Type {
		case TypeIncome:
			income = income.Add(t.Amount)
		case TypeExpense:
			expenses = expenses.Add(t.Amount)
		}
	}
	return Totals{
		Income:   income,
		Expenses: expenses,
		Balance:  income.Sub(expenses),
	}
}

// PeriodLabel derives a human-readable label from optional date bounds.
func PeriodLabel(start, end *Date) string {
	switch {
	case start != nil && end != nil:
		return fmt.Sprintf("%s to %s", start, end)
	case start != nil:
		return "Since " + start.String()
	case end != nil:
		return "Until " + end.String()
	default:
		return "All time"
	}
}

// FilterByPeriod keeps the transactions inside a relative window and returns
// a display name for it, e.g. "January 2026", "2026" or "All Time".
func FilterByPeriod(items []Transaction, p PeriodFilter, now time.Time) ([]Transaction, string) {
	switch p {
	case PeriodThisMonth:
		out := make([]Transaction, 0, len(items))
		for _, t := range items {
			if t.Date.Year() == now.Year() && t.Date.Month() == now.Month() {
				out = append(out, t)
			}
		}
		return out, fmt.Sprintf("%s %d", now.Month(), now.Year())
	case PeriodThisYear:
		out := make([]Transaction, 0, len(items))
		for _, t := range items {
			if t.Date.Year() == now.Year() {
				out = append(out, t)
			}
		}
		return out, fmt.Sprintf("%d", now.Year())
	default:
		return items, "All Time"
	}
}
