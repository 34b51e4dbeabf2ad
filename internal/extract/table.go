package extract

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultTableYAML []byte

// TestDefinition holds the canonical spelling of a test and the values used
// when a row leaves them empty.
type TestDefinition struct {
	Name     string   `yaml:"name"`
	Category string   `yaml:"category,omitempty"` // Section the aliases are scoped to; empty matches anywhere
	Aliases  []string `yaml:"aliases,omitempty"`
	Unit     string   `yaml:"unit,omitempty"`
	Range    string   `yaml:"range,omitempty"`
	Result   string   `yaml:"result,omitempty"`
}

type tableFile struct {
	Tests []TestDefinition `yaml:"tests"`
}

// Table is the per-test default lookup, keyed by canonical test name.
// It is read-only after construction.
type Table struct {
	tests []TestDefinition
	index map[string][]int // lookup key of name or alias -> tests indexes, at most one per category
}

var (
	defaultTableOnce sync.Once
	defaultTable     *Table
)

// DefaultTable returns the built-in table for the supported report template
func DefaultTable() *Table {
	defaultTableOnce.Do(func() {
		t, err := ParseTable(defaultTableYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded test table: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// LoadTable reads a table from a YAML file
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test table: %w", err)
	}
	t, err := ParseTable(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse test table %s: %w", path, err)
	}
	return t, nil
}

// ParseTable decodes a YAML table. Every test needs a name and no name or
// alias may be claimed by two tests.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Tests) == 0 {
		return nil, fmt.Errorf("table has no tests")
	}

	t := &Table{index: make(map[string][]int)}
	for _, def := range f.Tests {
		def.Name = strings.TrimSpace(def.Name)
		def.Category = collapseSpaces(def.Category)
		if def.Name == "" {
			return nil, fmt.Errorf("test %d has no name", len(t.tests))
		}
		i := len(t.tests)
	spellings:
		for _, spelling := range append([]string{def.Name}, def.Aliases...) {
			key := lookupKey(spelling)
			if key == "" {
				continue
			}
			for _, prev := range t.index[key] {
				if prev == i {
					continue spellings
				}
				if strings.EqualFold(t.tests[prev].Category, def.Category) {
					return nil, fmt.Errorf("%q is claimed by both %q and %q", spelling, t.tests[prev].Name, def.Name)
				}
			}
			t.index[key] = append(t.index[key], i)
		}
		t.tests = append(t.tests, def)
	}
	return t, nil
}

// Lookup finds a test by canonical name or alias, ignoring case, commas and
// spacing. An unscoped test is preferred over a category-scoped one.
func (t *Table) Lookup(name string) (TestDefinition, bool) {
	return t.LookupIn("", name)
}

// LookupIn is Lookup for a row under the given category heading. A test
// scoped to that category wins, then an unscoped test, then any other.
func (t *Table) LookupIn(category, name string) (TestDefinition, bool) {
	candidates := t.index[lookupKey(name)]
	if len(candidates) == 0 {
		return TestDefinition{}, false
	}

	best := candidates[0]
	for _, i := range candidates {
		c := t.tests[i].Category
		if category != "" && strings.EqualFold(c, category) {
			return t.tests[i], true
		}
		if c == "" && t.tests[best].Category != "" {
			best = i
		}
	}
	return t.tests[best], true
}

// Names returns every canonical name and alias
func (t *Table) Names() []string {
	var names []string
	for _, def := range t.tests {
		names = append(names, def.Name)
		names = append(names, def.Aliases...)
	}
	return names
}

// Units returns the distinct units the row scanner accepts: the table's
// default units plus the known unit spellings.
func (t *Table) Units() []string {
	seen := make(map[string]bool)
	var units []string
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			units = append(units, u)
		}
	}
	for _, def := range t.tests {
		add(def.Unit)
	}
	for spelling := range unitSpellings {
		add(spelling)
	}
	sort.Strings(units)
	return units
}

// Len returns the number of tests
func (t *Table) Len() int {
	return len(t.tests)
}

func lookupKey(name string) string {
	name = strings.ToLower(strings.ReplaceAll(name, ",", " "))
	return strings.Join(strings.Fields(name), " ")
}
