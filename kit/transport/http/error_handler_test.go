package http_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/metastage/metastage/kit/platform/errors"
	kithttp "github.com/metastage/metastage/kit/transport/http"
)

func TestEncodeError(t *testing.T) {
	ctx := context.TODO()

	w := httptest.NewRecorder()

	kithttp.ErrorHandler(0).HandleHTTPError(ctx, nil, w)

	if w.Code != 200 {
		t.Errorf("expected status code 200, got: %d", w.Code)
	}
}

func TestEncodeErrorWithError(t *testing.T) {
	ctx := context.TODO()
	err := &errors.Error{
		Code: errors.EInternal,
		Msg:  "an error occurred",
		Err:  fmt.Errorf("there's an error here, be aware"),
	}

	w := httptest.NewRecorder()

	kithttp.ErrorHandler(0).HandleHTTPError(ctx, err, w)

	if w.Code != 500 {
		t.Errorf("expected status code 500, got: %d", w.Code)
	}

	errHeader := w.Header().Get("X-Platform-Error-Code")
	if errHeader != errors.EInternal {
		t.Errorf("expected X-Platform-Error-Code: %s, got: %s", errors.EInternal, errHeader)
	}

	pe := kithttp.CheckError(w.Result()).(*errors.Error)
	if want, got := errors.EInternal, pe.Code; want != got {
		t.Errorf("unexpected code -want/+got:\n\t- %q\n\t+ %q", want, got)
	}
	if want, got := "an error occurred: there's an error here, be aware", pe.Msg; want != got {
		t.Errorf("unexpected message -want/+got:\n\t- %q\n\t+ %q", want, got)
	}
}

func TestErrorCodeToStatusCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{code: errors.EInvalid, want: http.StatusBadRequest},
		{code: errors.ENotFound, want: http.StatusNotFound},
		{code: errors.EConflict, want: http.StatusUnprocessableEntity},
		{code: errors.EUnavailable, want: http.StatusServiceUnavailable},
		{code: "made up", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := kithttp.ErrorCodeToStatusCode(context.Background(), tt.code); got != tt.want {
				t.Errorf("want %d, got %d", tt.want, got)
			}
		})
	}
}
