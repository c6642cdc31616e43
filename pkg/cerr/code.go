package cerr

import (
	"net/http"

	"connectrpc.com/connect"
)

// Code follows the gRPC status codes so the same value can be rendered as
// an HTTP status or a connect error.
type Code int

const (
	OK Code = iota
	Canceled
	Unknown
	InvalidArgument
	DeadlineExceeded
	NotFound
	AlreadyExists
	PermissionDenied
	ResourceExhausted
	FailedPrecondition
	Aborted
	OutOfRange
	Unimplemented
	Internal
	Unavailable
	DataLoss
	Unauthenticated
)

// statusClientClosedRequest is nginx's non-standard status for a client
// that went away before the response.
const statusClientClosedRequest = 499

type codeInfo struct {
	name    string
	http    int
	connect connect.Code
}

var codes = map[Code]codeInfo{
	OK:                 {"ok", http.StatusOK, 0},
	Canceled:           {"canceled", statusClientClosedRequest, connect.CodeCanceled},
	Unknown:            {"unknown", http.StatusInternalServerError, connect.CodeUnknown},
	InvalidArgument:    {"invalid_argument", http.StatusBadRequest, connect.CodeInvalidArgument},
	DeadlineExceeded:   {"deadline_exceeded", http.StatusGatewayTimeout, connect.CodeDeadlineExceeded},
	NotFound:           {"not_found", http.StatusNotFound, connect.CodeNotFound},
	AlreadyExists:      {"already_exists", http.StatusConflict, connect.CodeAlreadyExists},
	PermissionDenied:   {"permission_denied", http.StatusForbidden, connect.CodePermissionDenied},
	ResourceExhausted:  {"resource_exhausted", http.StatusTooManyRequests, connect.CodeResourceExhausted},
	FailedPrecondition: {"failed_precondition", http.StatusPreconditionFailed, connect.CodeFailedPrecondition},
	Aborted:            {"aborted", http.StatusConflict, connect.CodeAborted},
	OutOfRange:         {"out_of_range", http.StatusBadRequest, connect.CodeOutOfRange},
	Unimplemented:      {"unimplemented", http.StatusNotImplemented, connect.CodeUnimplemented},
	Internal:           {"internal", http.StatusInternalServerError, connect.CodeInternal},
	Unavailable:        {"unavailable", http.StatusServiceUnavailable, connect.CodeUnavailable},
	DataLoss:           {"data_loss", http.StatusInternalServerError, connect.CodeDataLoss},
	Unauthenticated:    {"unauthenticated", http.StatusUnauthorized, connect.CodeUnauthenticated},
}

func (c Code) info() codeInfo {
	if info, ok := codes[c]; ok {
		return info
	}
	return codes[Unknown]
}

func (c Code) String() string {
	return c.info().name
}

func (c Code) ConnectCode() connect.Code {
	return c.info().connect
}

func (c Code) HTTPCode() int {
	return c.info().http
}
