// README: Closed set of routing result codes and submission errors.
package engine

import (
	"errors"
	"fmt"
)

// ResultCode is the status of a routing call. Values are stable because they
// are shown to users in diagnostics and written to the route log.
type ResultCode int

const (
	ResultOK                  ResultCode = 0
	ResultGeneral             ResultCode = 1
	ResultInvalidArgument     ResultCode = 2
	ResultUnsupportedProfile  ResultCode = 3
	ResultBusy                ResultCode = 4
	ResultQuotaExceeded       ResultCode = 5
	ResultRequestDenied       ResultCode = 6
	ResultTransport           ResultCode = 7
	ResultNoRoadsNearStart    ResultCode = 50
	ResultNoRoadsNearEnd      ResultCode = 51
	ResultNoRoad              ResultCode = 52
	ResultNoRouteConnectivity ResultCode = 53
)

func (c ResultCode) String() string {
	switch c {
	case ResultOK:
		return "ok"
	case ResultGeneral:
		return "general"
	case ResultInvalidArgument:
		return "invalid_argument"
	case ResultUnsupportedProfile:
		return "unsupported_profile"
	case ResultBusy:
		return "busy"
	case ResultQuotaExceeded:
		return "quota_exceeded"
	case ResultRequestDenied:
		return "request_denied"
	case ResultTransport:
		return "transport"
	case ResultNoRoadsNearStart:
		return "no_roads_near_start"
	case ResultNoRoadsNearEnd:
		return "no_roads_near_end"
	case ResultNoRoad:
		return "no_road"
	case ResultNoRouteConnectivity:
		return "no_route_connectivity"
	default:
		return fmt.Sprintf("code_%d", int(c))
	}
}

// SubmitError is returned when the engine refuses a route request up front.
type SubmitError struct {
	Code ResultCode
	Err  error
}

func (e *SubmitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("route submission refused (code %d): %v", int(e.Code), e.Err)
	}
	return fmt.Sprintf("route submission refused (code %d)", int(e.Code))
}

func (e *SubmitError) Unwrap() error { return e.Err }

// SubmitCode extracts the numeric submission status from err. Errors that are
// not a *SubmitError report ResultGeneral.
func SubmitCode(err error) ResultCode {
	if err == nil {
		return ResultOK
	}
	var se *SubmitError
	if errors.As(err, &se) {
		return se.Code
	}
	return ResultGeneral
}
