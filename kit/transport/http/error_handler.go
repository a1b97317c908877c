package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/metastage/metastage/kit/platform/errors"
)

// PlatformErrorCodeHeader shows the error code of platform error.
const PlatformErrorCodeHeader = "X-Platform-Error-Code"

// ErrorHandler is the error handler in http package.
type ErrorHandler int

// HandleHTTPError encodes err with the appropriate status code and format,
// sets the X-Platform-Error-Code headers on the response.
func (h ErrorHandler) HandleHTTPError(ctx context.Context, err error, w http.ResponseWriter) {
	if err == nil {
		return
	}

	code := errors.ErrorCode(err)
	w.Header().Set(PlatformErrorCodeHeader, code)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(ErrorCodeToStatusCode(ctx, code))
	var e struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	e.Code = code
	if pe, ok := err.(*errors.Error); ok {
		e.Message = pe.Error()
	} else {
		e.Message = "An internal error has occurred"
	}
	b, _ := json.Marshal(e)
	_, _ = w.Write(b)
}

// ErrorCodeToStatusCode maps a platform error code string to a
// corresponding HTTP status code.
func ErrorCodeToStatusCode(ctx context.Context, code string) int {
	if statusCode, ok := httpStatusCodes[code]; ok {
		return statusCode
	}
	return http.StatusBadRequest
}

var httpStatusCodes = map[string]int{
	errors.EInternal:       http.StatusInternalServerError,
	errors.ENotImplemented: http.StatusNotImplemented,
	errors.EInvalid:        http.StatusBadRequest,
	errors.EConflict:       http.StatusUnprocessableEntity,
	errors.ENotFound:       http.StatusNotFound,
	errors.EUnavailable:    http.StatusServiceUnavailable,
}

// CheckError reads the http.Response and returns an error if one exists.
// It will automatically recognize the errors returned by ErrorHandler.
func CheckError(resp *http.Response) error {
	if resp.StatusCode/100 == 2 {
		return nil
	}

	perr := &errors.Error{
		Code: errors.EInternal,
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err == nil && mediaType == "application/json" {
			var body struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			b, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(b, &body); err != nil {
				perr.Msg = fmt.Sprintf("invalid error body: %s", string(b))
				return perr
			}
			perr.Code = body.Code
			perr.Msg = body.Message
			return perr
		}
	}
	perr.Msg = http.StatusText(resp.StatusCode)
	return perr
}
