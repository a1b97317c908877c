package testing

import (
	"context"
	"testing"
	"time"

	"github.com/metastage/metastage/kit/platform/errors"
)

// awaitTimeout bounds every future awaited by the conformance suites.
const awaitTimeout = 5 * time.Second

func awaitContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), awaitTimeout)
	t.Cleanup(cancel)
	return ctx
}

// ErrorsEqual checks to see if the provided errors are equivalent. It compares
// codes and messages of platform errors.
func ErrorsEqual(t *testing.T, actual, expected error) {
	t.Helper()
	if expected == nil && actual == nil {
		return
	}

	if expected == nil && actual != nil {
		t.Fatalf("unexpected error %s", actual.Error())
	}

	if expected != nil && actual == nil {
		t.Fatalf("expected error %s but received nil", expected.Error())
	}

	if errors.ErrorCode(expected) != errors.ErrorCode(actual) {
		t.Logf("\nexpected: %v\nactual: %v\n\n", expected, actual)
		t.Fatalf("expected error code %q but received %q", errors.ErrorCode(expected), errors.ErrorCode(actual))
	}

	if errors.ErrorMessage(expected) != errors.ErrorMessage(actual) {
		t.Logf("\nexpected: %v\nactual: %v\n\n", expected, actual)
		t.Fatalf("expected error message %q but received %q", errors.ErrorMessage(expected), errors.ErrorMessage(actual))
	}
}
