package config

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// schemaCUE constrains CUE configurations before they are decoded. Definitions
// are closed, so unknown fields inside a merge point or source are errors.
const schemaCUE = `
#Identifier: =~"^[A-Za-z_][A-Za-z0-9_]*$"

#Source: {
	name?:       string & !=""
	table:       #Identifier
	key:         [#Identifier, ...#Identifier]
	attributes?: [...#Identifier]
}

#MergePoint: {
	name:    string & !=""
	sources: [#Source, ...#Source]
}

merge_points: [...#MergePoint]
`

// ParseCUE evaluates a CUE configuration against the merge-point schema and
// decodes it. filename is used for error positions only.
func ParseCUE(filename string, data []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("mergepoint-schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %s", cueerrors.Details(err, nil))
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid CUE config: %s", cueerrors.Details(err, nil))
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode CUE config: %w", err)
	}
	return &cfg, nil
}
