package remap

import (
	"errors"
	"fmt"

	"github.com/gogpu/psoarchive/internal/parallel"
)

// Stages remaps every stage with the remapper registered for its backend.
//
// Each stage is remapped on a private copy of its code. If any stage fails,
// Stages returns nil and the error of the first failing stage in input order;
// no partially remapped set is ever returned. A nil pool remaps sequentially.
func Stages(stages []Stage, r Resolver, reg *Registry, opts Options, pool *parallel.WorkerPool) ([]Stage, error) {
	remappers := make([]Remapper, len(stages))
	for i, s := range stages {
		m, err := reg.Lookup(s.Backend)
		if err != nil {
			return nil, fmt.Errorf("shader %q: %w", s.Name, err)
		}
		remappers[i] = m
	}

	out := make([]Stage, len(stages))
	errs := make([]error, len(stages))
	work := make([]func(), len(stages))
	for i, s := range stages {
		work[i] = func() {
			code, err := remappers[i].Remap(s, r, opts)
			if err != nil {
				errs[i] = withShader(err, s)
				return
			}
			out[i] = s
			out[i].Code = code
		}
	}

	if pool != nil && len(work) > 1 {
		pool.ExecuteAll(work)
	} else {
		for _, fn := range work {
			fn()
		}
	}

	for i, err := range errs {
		if err != nil {
			slogger().Warn("remap: stage failed",
				"shader", stages[i].Name, "stage", stages[i].Stage, "backend", stages[i].Backend, "err", err)
			return nil, err
		}
	}
	return out, nil
}

// withShader attaches the shader name to a remap error. A *ResolutionError
// anywhere in the chain gets the name set in place, keeping any wrapping.
func withShader(err error, s Stage) error {
	var re *ResolutionError
	if errors.As(err, &re) {
		if re.Shader == "" {
			re.Shader = s.Name
		}
		return err
	}
	return fmt.Errorf("remap: shader %q (%s stage): %w", s.Name, s.Stage, err)
}
