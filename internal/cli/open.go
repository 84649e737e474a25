package cli

import (
	"errors"

	"github.com/roach88/mergepoint/internal/config"
	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/merge"
	"github.com/roach88/mergepoint/internal/store"
)

// workspace is an open database with its merge points built.
type workspace struct {
	store  *store.Store
	points *config.Points
}

func (w *workspace) Close() error {
	return w.store.Close()
}

// openWorkspace loads the configuration, opens the database and binds every
// declared merge point to it.
func openWorkspace(opts *RootOptions) (*workspace, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		var invalid *config.InvalidError
		if errors.As(err, &invalid) {
			return nil, WrapExitError(ExitFailure, "invalid config", err)
		}
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	points, err := config.Build(cfg, st.DB(), st, merge.WithLogger(opts.logger()))
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to build merge points", err)
	}
	return &workspace{store: st, points: points}, nil
}

// table looks up the merge point named by --point; empty selects the default.
func (w *workspace) table(point string) (*merge.Table, error) {
	t, err := w.points.Lookup(point)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to select merge point", err)
	}
	return t, nil
}

// parseKey parses one KEYJSON argument.
func parseKey(arg string) (ir.Object, error) {
	key, err := ir.ParseObject([]byte(arg))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid key "+arg, err)
	}
	return key, nil
}

// parseIdentities parses ID arguments.
func parseIdentities(args []string) ([]ir.Identity, error) {
	ids := make([]ir.Identity, len(args))
	for i, arg := range args {
		id, err := ir.ParseIdentity(arg)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid identity", err)
		}
		ids[i] = id
	}
	return ids, nil
}
