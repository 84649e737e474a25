package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackingConfig() *Config {
	return &Config{MergePoints: []MergePoint{
		{
			Name: "PositionOutput",
			Sources: []Source{
				{
					Name:       "TrackingV1",
					Table:      "tracking_v1",
					Key:        []string{"nwb_file_name", "interval", "params_name"},
					Attributes: []string{"n_frames", "camera"},
				},
				{
					Name:       "ImportedPose",
					Table:      "imported_pose",
					Key:        []string{"nwb_file_name", "interval"},
					Attributes: []string{"pose_source"},
				},
			},
		},
		{
			Name:    "Curation",
			Sources: []Source{{Table: "curation_v1", Key: []string{"sorting_id"}}},
		},
	}}
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "tracking.yaml"))
	require.NoError(t, err)
	assert.Equal(t, trackingConfig(), cfg)
}

func TestLoadCUE(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "tracking.cue"))
	require.NoError(t, err)
	assert.Equal(t, trackingConfig(), cfg, "CUE and YAML declare the same merge points")
}

func TestLoadRejectsUnknownYAMLField(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "typo.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "atributes")
}

func TestLoadCUESchemaViolation(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "bad_identifier.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid CUE config")
}

func TestLoadCUEClosedDefinitions(t *testing.T) {
	_, err := ParseCUE("inline.cue", []byte(`merge_points: [{name: "P", sources: [{table: "t", key: ["s"], atributes: ["x"]}]}]`))
	require.Error(t, err)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoadCollectsAllValidationErrors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "invalid.yaml"))
	require.Error(t, err)

	var invalid *InvalidError
	require.True(t, errors.As(err, &invalid))

	codes := make(map[string]int)
	for _, ve := range invalid.Errors {
		codes[ve.Code]++
	}
	assert.Equal(t, 1, codes[ErrInvalidIdentifier], "table name with a space")
	assert.Equal(t, 1, codes[ErrEmptyKey])
	assert.Equal(t, 1, codes[ErrSourceName])
	assert.Equal(t, 2, codes[ErrDuplicateColumn], "repeated key and key reused as attribute")
	assert.Equal(t, 1, codes[ErrMergePointName])
	assert.Equal(t, 1, codes[ErrNoSources])
	assert.Contains(t, err.Error(), "testdata/invalid.yaml")
}

func TestValidateEmpty(t *testing.T) {
	errs := Validate(&Config{})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrNoMergePoints, errs[0].Code)

	errs = Validate(nil)
	require.Len(t, errs, 1)
}

func TestValidationErrorString(t *testing.T) {
	ve := ValidationError{Field: "merge_points[0].name", Code: ErrMergePointName, Message: "name is required"}
	assert.Equal(t, "[E202] merge_points[0].name: name is required", ve.Error())
}

func TestOriginNameDefaultsToTable(t *testing.T) {
	assert.Equal(t, "curation_v1", Source{Table: "curation_v1"}.OriginName())
	assert.Equal(t, "Curation", Source{Name: "Curation", Table: "curation_v1"}.OriginName())
}

func TestPoint(t *testing.T) {
	cfg := trackingConfig()

	mp, ok := cfg.Point("Curation")
	require.True(t, ok)
	assert.Equal(t, "Curation", mp.Name)

	_, ok = cfg.Point("Missing")
	assert.False(t, ok)
}
