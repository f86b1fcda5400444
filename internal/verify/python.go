// Package verify checks generated page objects before they are used.
package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// PythonVerifier byte-compiles a page object with the Python interpreter.
// A compile failure is a negative verdict, not an error.
type PythonVerifier struct {
	python  string
	timeout time.Duration
}

// NewPython returns a verifier running the given interpreter, python3 when
// empty.
func NewPython(python string) *PythonVerifier {
	if python == "" {
		python = "python3"
	}
	return &PythonVerifier{python: python, timeout: defaultTimeout}
}

// Verify reports whether ref compiles. err is only returned when ctx is
// done; any other failure to run the check is a negative verdict with the
// reason as diagnostic.
func (v *PythonVerifier) Verify(ctx context.Context, ref string) (bool, string, error) {
	if _, err := os.Stat(ref); err != nil {
		return false, "file not found: " + ref, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, v.python, "-m", "py_compile", ref)
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, "", ctxErr
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return true, "OK", nil
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return false, fmt.Sprintf("error: py_compile timed out after %s", v.timeout), nil
	case errors.As(err, &exitErr):
		return false, "syntax error: " + strings.TrimSpace(stderr.String()), nil
	default:
		return false, "error: " + err.Error(), nil
	}
}
