package cli

import (
	"errors"
	"fmt"

	"github.com/rwp0/Cor/internal/compiler"
	"github.com/rwp0/Cor/internal/object"
)

// loadDecls loads a declaration directory fail-fast, converting the
// first load error to an ExitError a command can return directly.
// A missing path is a command error; broken content is a failure.
func loadDecls(dir string) (*compiler.LoadResult, error) {
	result, loadErrs := compiler.LoadDecls(dir, compiler.LoadModeFailFast)
	if len(loadErrs) > 0 {
		err := loadErrs[0]
		code := ExitFailure
		var loadErr *compiler.LoadError
		if errors.As(err, &loadErr) && loadErr.Code == compiler.ErrCodeNotFound {
			code = ExitCommandError
		}
		return nil, WrapExitError(code, fmt.Sprintf("loading declarations from %s", dir), err)
	}
	return result, nil
}

// buildRuntime loads a declaration directory and registers everything
// into a fresh runtime. Roles register before classes; linearization
// stays lazy until a command resolves a class.
func buildRuntime(dir string, opts ...object.Option) (*object.Runtime, *compiler.LoadResult, error) {
	result, err := loadDecls(dir)
	if err != nil {
		return nil, nil, err
	}

	rt := object.New(opts...)
	for _, r := range result.Roles {
		if err := rt.RegisterRole(r); err != nil {
			return nil, nil, WrapExitError(ExitFailure, fmt.Sprintf("registering role %s", r.Name), err)
		}
	}
	for _, c := range result.Classes {
		if err := rt.RegisterClass(c); err != nil {
			return nil, nil, WrapExitError(ExitFailure, fmt.Sprintf("registering class %s", c.Name), err)
		}
	}
	return rt, result, nil
}
