package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mergepoint/internal/config"
)

// Scenario defines a merge point test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// MergePoints declares the merge points, as in a configuration file.
	MergePoints []config.MergePoint `yaml:"merge_points"`

	// Point selects the merge point the flow runs against. Empty selects
	// the first declared.
	Point string `yaml:"point,omitempty"`

	// Setup seeds origin rows before the flow. Setup steps must succeed.
	Setup []SeedStep `yaml:"setup,omitempty"`

	// Flow contains the steps under test.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final records and union view.
	Assertions []Assertion `yaml:"assertions"`
}

// Config returns the merge point configuration the scenario declares.
func (s *Scenario) Config() *config.Config {
	return &config.Config{MergePoints: s.MergePoints}
}

// SeedStep inserts origin rows into one declared source.
type SeedStep struct {
	// Source is the declared source name.
	Source string `yaml:"source"`

	// Rows are full origin rows: key and non-key attributes.
	Rows []map[string]interface{} `yaml:"rows"`
}

// FlowStep is one step of the flow. Exactly one of Insert, Delete and Purge
// is set.
type FlowStep struct {
	// Insert is a batch of candidate keys.
	Insert []map[string]interface{} `yaml:"insert,omitempty"`

	// Delete removes one origin row.
	Delete *DeleteStep `yaml:"delete,omitempty"`

	// Purge lists full origin keys whose records are purged.
	Purge []map[string]interface{} `yaml:"purge,omitempty"`

	// Expect specifies the expected outcome. If nil, the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Op returns the step operation.
func (s FlowStep) Op() string {
	switch {
	case s.Insert != nil:
		return OpInsert
	case s.Delete != nil:
		return OpDelete
	case s.Purge != nil:
		return OpPurge
	default:
		return ""
	}
}

// DeleteStep names an origin row to delete.
type DeleteStep struct {
	Source string                 `yaml:"source"`
	Key    map[string]interface{} `yaml:"key"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Inserted is the expected number of new records (insert).
	Inserted *int `yaml:"inserted,omitempty"`

	// Deleted is the expected number of rows or records removed (delete,
	// purge).
	Deleted *int `yaml:"deleted,omitempty"`

	// Errors lists the error codes the step must fail with, in any order:
	// the merge error codes, ORIGIN_EXISTS or NOT_FOUND.
	Errors []string `yaml:"errors,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Count is the expected count (record_count, dangling).
	Count int `yaml:"count,omitempty"`

	// Key is a full origin key (bound_to, not_merged).
	Key map[string]interface{} `yaml:"key,omitempty"`

	// Origin is the expected origin name (bound_to).
	Origin string `yaml:"origin,omitempty"`

	// Where selects union rows by value (union_row).
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected union values, subset match (union_row).
	// A null expects a padded attribute.
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Origins is the expected origin of every union row (union_origins).
	Origins []string `yaml:"origins,omitempty"`
}

// Assertion types.
const (
	AssertRecordCount  = "record_count"
	AssertBoundTo      = "bound_to"
	AssertNotMerged    = "not_merged"
	AssertDangling     = "dangling"
	AssertUnionRow     = "union_row"
	AssertUnionOrigins = "union_origins"
)

// LoadScenario parses and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenario, nil
}

// ParseScenario parses and validates a scenario from YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.MergePoints) == 0 {
		return fmt.Errorf("merge_points list is required and must be non-empty")
	}
	if errs := config.Validate(s.Config()); len(errs) > 0 {
		return fmt.Errorf("merge_points: %w", errs[0])
	}
	if s.Point != "" {
		if _, ok := s.Config().Point(s.Point); !ok {
			return fmt.Errorf("point %q is not declared", s.Point)
		}
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if step.Source == "" {
			return fmt.Errorf("setup[%d]: source is required", i)
		}
		if len(step.Rows) == 0 {
			return fmt.Errorf("setup[%d]: rows list is required", i)
		}
	}

	for i, step := range s.Flow {
		set := 0
		for _, present := range []bool{step.Insert != nil, step.Delete != nil, step.Purge != nil} {
			if present {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("flow[%d]: exactly one of insert, delete and purge is required", i)
		}
		if step.Delete != nil && (step.Delete.Source == "" || len(step.Delete.Key) == 0) {
			return fmt.Errorf("flow[%d].delete: source and key are required", i)
		}
		if step.Expect != nil && step.Expect.Inserted != nil && step.Op() != OpInsert {
			return fmt.Errorf("flow[%d].expect: inserted only applies to insert", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRecordCount, AssertDangling:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertBoundTo:
		if len(a.Key) == 0 || a.Origin == "" {
			return fmt.Errorf("assertions[%d]: key and origin are required for bound_to", index)
		}
	case AssertNotMerged:
		if len(a.Key) == 0 {
			return fmt.Errorf("assertions[%d]: key is required for not_merged", index)
		}
	case AssertUnionRow:
		if len(a.Where) == 0 {
			return fmt.Errorf("assertions[%d]: where is required for union_row", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for union_row", index)
		}
	case AssertUnionOrigins:
		if a.Origins == nil {
			return fmt.Errorf("assertions[%d]: origins list is required for union_origins", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
