package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/testutil"
)

// fixture is a seeded tracking database and its config file on disk.
type fixture struct {
	DB     string
	Config string
}

// newFixture seeds the tracking database, lets setup act on it while it is
// open, then closes it so commands can open it themselves.
func newFixture(t *testing.T, setup func(*testutil.Tracking)) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		DB:     filepath.Join(dir, "tracking.db"),
		Config: filepath.Join(dir, "mergepoint.yaml"),
	}
	require.NoError(t, os.WriteFile(f.Config, []byte(testutil.TrackingYAML), 0o644))

	tr := testutil.NewTrackingAt(t, f.DB)
	if setup != nil {
		setup(tr)
	}
	require.NoError(t, tr.Store.Close())
	return f
}

// execute runs the root command with the fixture's global flags prepended.
func (f fixture) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", f.DB, "--config", f.Config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func keyArg(t *testing.T, key ir.Object) string {
	t.Helper()
	data, err := key.MarshalJSON()
	require.NoError(t, err)
	return string(data)
}

var (
	importedKey = ir.Object{
		"nwb_file_name": testutil.ImportedEpoch1["nwb_file_name"],
		"interval":      testutil.ImportedEpoch1["interval"],
	}
	v1Key = ir.Object{
		"nwb_file_name": testutil.V1Epoch1["nwb_file_name"],
		"interval":      testutil.V1Epoch1["interval"],
		"params_name":   testutil.V1Epoch1["params_name"],
	}
	orphanKey = ir.Object{
		"nwb_file_name": ir.String("m9.nwb"),
		"interval":      ir.String("epoch 1"),
	}
)
