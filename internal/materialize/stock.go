package materialize

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/table"
)

const (
	// ConstructionYearColumn holds the year a building was built.
	ConstructionYearColumn = "year"
	// DemolitionYearColumn optionally holds the year a building was removed.
	DemolitionYearColumn = "demolished_year"
)

// Stock is the baseline building stock with its construction and
// demolition years. Buildings without a construction year stand in every
// year until demolished.
type Stock struct {
	Names        []string
	Construction map[string]int
	Demolition   map[string]int
}

// NewStock reads construction and demolition years from a zone table.
// Unparseable years are reported together as one VALIDATION error.
func NewStock(zone *table.Table) (*Stock, error) {
	s := &Stock{
		Names:        zone.Keys(),
		Construction: map[string]int{},
		Demolition:   map[string]int{},
	}
	var problems []string
	for _, name := range s.Names {
		for col, dst := range map[string]map[string]int{
			ConstructionYearColumn: s.Construction,
			DemolitionYearColumn:   s.Demolition,
		} {
			cell, ok := zone.Get(name, col)
			if !ok || strings.TrimSpace(cell) == "" {
				continue
			}
			y, err := parseYear(cell)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: %s %q is not a year", name, col, cell))
				continue
			}
			dst[name] = y
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, errs.Validation("zone table has invalid building years").WithKeys(problems...)
	}
	return s, nil
}

// Stands reports whether a building exists in year.
func (s *Stock) Stands(name string, year int) bool {
	if built, ok := s.Construction[name]; ok && built > year {
		return false
	}
	if gone, ok := s.Demolition[name]; ok && gone <= year {
		return false
	}
	return true
}

// Present returns the buildings standing in year, in zone order.
func (s *Stock) Present(year int) []string {
	var out []string
	for _, n := range s.Names {
		if s.Stands(n, year) {
			out = append(out, n)
		}
	}
	return out
}

// Absent returns the buildings not standing in year, in zone order.
func (s *Stock) Absent(year int) []string {
	var out []string
	for _, n := range s.Names {
		if !s.Stands(n, year) {
			out = append(out, n)
		}
	}
	return out
}

// EventYears returns every distinct construction and demolition year,
// ascending.
func (s *Stock) EventYears() []int {
	seen := map[int]bool{}
	for _, y := range s.Construction {
		seen[y] = true
	}
	for _, y := range s.Demolition {
		seen[y] = true
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// parseYear accepts integers and integral decimals such as "2020.0".
func parseYear(cell string) (int, error) {
	cell = strings.TrimSpace(cell)
	if y, err := strconv.Atoi(cell); err == nil {
		return y, nil
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer year")
	}
	return int(f), nil
}
