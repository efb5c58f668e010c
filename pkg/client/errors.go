package client

import (
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: %s", e.Status)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

func restyErr(resp *resty.Response) error {
	return &StatusError{Code: resp.StatusCode(), Status: resp.Status()}
}
