package domain

import (
	"sort"

	schooldomain "github.com/edusuite/billing/internal/school/domain"
)

// ResolveLines filters a structure's items down to what the student owes and
// orders them by category rank ascending, category name as tie-break.
// Boarding-only items apply to boarders alone; items carrying a class level
// apply only to students in that class.
func ResolveLines(structure FeeStructure, student schooldomain.StudentContext) []FeeLine {
	lines := make([]FeeLine, 0, len(structure.Items))
	for _, item := range structure.Items {
		if item.BoardersOnly && !student.Boarder {
			continue
		}
		if item.ClassLevel != "" && item.ClassLevel != student.ClassLevel {
			continue
		}
		lines = append(lines, FeeLine{
			Category:     item.Category,
			CategoryRank: item.CategoryRank,
			Amount:       item.Amount,
			Currency:     structure.Currency,
		})
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].CategoryRank != lines[j].CategoryRank {
			return lines[i].CategoryRank < lines[j].CategoryRank
		}
		return lines[i].Category < lines[j].Category
	})
	return lines
}

// TotalOf sums resolved fee lines.
func TotalOf(lines []FeeLine) int64 {
	var total int64
	for _, line := range lines {
		total += line.Amount
	}
	return total
}
