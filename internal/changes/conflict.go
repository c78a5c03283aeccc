package changes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/strata/internal/recipe"
)

// Conflict is one (archetype, component, field) written by several changes.
type Conflict struct {
	Key     recipe.Path
	Changes []string
}

// String renders "archetype.component.field <- a, b".
func (c Conflict) String() string {
	return fmt.Sprintf("%s <- %s", c.Key, strings.Join(c.Changes, ", "))
}

// DetectConflicts maps every key to the changes that set it and returns the
// keys claimed more than once, sorted by key. Keep leaves do not claim a key.
func DetectConflicts(selected []Change) []Conflict {
	owners := map[recipe.Path][]string{}
	for _, c := range selected {
		c.Modifications.Walk(func(p recipe.Path, v recipe.Value) {
			if v.IsKeep() {
				return
			}
			owners[p] = append(owners[p], c.Name)
		})
	}

	var conflicts []Conflict
	for key, names := range owners {
		if len(names) > 1 {
			conflicts = append(conflicts, Conflict{Key: key, Changes: names})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Key.String() < conflicts[j].Key.String()
	})
	return conflicts
}
