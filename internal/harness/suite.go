package harness

import (
	"fmt"
	"path/filepath"
	"sort"
)

// SuiteResult aggregates the scenarios of one directory.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure names a scenario that failed to load, run or pass.
type ScenarioFailure struct {
	ScenarioPath string   `json:"scenario_path"`
	Scenario     string   `json:"scenario,omitempty"`
	Errors       []string `json:"errors"`
}

// RunDir loads and runs every *.yaml scenario in dir, in name order. A file
// that does not load counts as a failed scenario; the rest still run.
func RunDir(dir string) (*SuiteResult, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("glob scenarios: %w", err)
	}
	sort.Strings(paths)

	suite := &SuiteResult{}
	for _, path := range paths {
		suite.TotalScenarios++

		scenario, err := LoadScenario(path)
		if err != nil {
			suite.fail(ScenarioFailure{ScenarioPath: path, Errors: []string{err.Error()}})
			continue
		}

		result, err := Run(scenario)
		if err != nil {
			suite.fail(ScenarioFailure{ScenarioPath: path, Scenario: scenario.Name, Errors: []string{err.Error()}})
			continue
		}
		if !result.Pass {
			suite.fail(ScenarioFailure{ScenarioPath: path, Scenario: scenario.Name, Errors: result.Errors})
			continue
		}
		suite.Passed++
	}
	return suite, nil
}

func (s *SuiteResult) fail(f ScenarioFailure) {
	s.Failed++
	s.Failures = append(s.Failures, f)
}
