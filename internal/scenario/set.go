package scenario

import (
	"fmt"

	"github.com/petersaints/YanuX-Cruncher/internal/dataset"
)

// Scenario is one named dataset variant.
type Scenario struct {
	Name string
	Data *dataset.Table
}

// Set holds scenarios in insertion order with unique names.
type Set struct {
	scenarios []Scenario
	index     map[string]int
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{index: make(map[string]int)}
}

// Add registers data under name. Names must be unique within the set.
func (s *Set) Add(name string, data *dataset.Table) error {
	if name == "" {
		return fmt.Errorf("scenario name must not be empty")
	}
	if data == nil {
		return fmt.Errorf("scenario %s has no data", name)
	}
	if _, dup := s.index[name]; dup {
		return fmt.Errorf("scenario %s already exists", name)
	}
	s.index[name] = len(s.scenarios)
	s.scenarios = append(s.scenarios, Scenario{Name: name, Data: data})
	return nil
}

// Get returns the data for name.
func (s *Set) Get(name string) (*dataset.Table, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.scenarios[i].Data, true
}

// Len returns the number of scenarios.
func (s *Set) Len() int { return len(s.scenarios) }

// Names returns scenario names in insertion order.
func (s *Set) Names() []string {
	out := make([]string, len(s.scenarios))
	for i, sc := range s.scenarios {
		out[i] = sc.Name
	}
	return out
}

// Scenarios returns the scenarios in insertion order.
func (s *Set) Scenarios() []Scenario {
	return append([]Scenario(nil), s.scenarios...)
}
