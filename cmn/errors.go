package cmn

import (
	"fmt"
	"net/http"
)

// ErrKind is the closed taxonomy of typed errors this server raises, per the
// error handling design: every error surfaced across a package boundary is
// one of these kinds so the dispatcher can map it to an HTTP status without
// string-sniffing.
type ErrKind int

const (
	ErrInvalidURI ErrKind = iota
	ErrInvalidArgument
	ErrPermissionDenied
	ErrNodeDoesNotExist
	ErrContainerDoesNotExist
	ErrDuplicateNode
	ErrLinkFound
	ErrNodeIsBusy
	ErrInvalidJobState
	ErrConflict
	ErrInternal
)

var httpStatus = map[ErrKind]int{
	ErrInvalidURI:            http.StatusBadRequest,
	ErrInvalidArgument:       http.StatusBadRequest,
	ErrPermissionDenied:      http.StatusForbidden,
	ErrNodeDoesNotExist:      http.StatusNotFound,
	ErrContainerDoesNotExist: http.StatusNotFound,
	ErrDuplicateNode:         http.StatusConflict,
	ErrLinkFound:             http.StatusBadRequest,
	ErrNodeIsBusy:            http.StatusConflict,
	ErrInvalidJobState:       http.StatusBadRequest,
	ErrConflict:              http.StatusConflict,
	ErrInternal:              http.StatusInternalServerError,
}

var kindName = map[ErrKind]string{
	ErrInvalidURI:            "InvalidURI",
	ErrInvalidArgument:       "InvalidArgument",
	ErrPermissionDenied:      "PermissionDenied",
	ErrNodeDoesNotExist:      "NodeDoesNotExist",
	ErrContainerDoesNotExist: "ContainerDoesNotExist",
	ErrDuplicateNode:         "DuplicateNode",
	ErrLinkFound:             "LinkFound",
	ErrNodeIsBusy:            "NodeIsBusy",
	ErrInvalidJobState:       "InvalidJobStateError",
	ErrConflict:              "Conflict",
	ErrInternal:              "InternalError",
}

// VOSpaceErr is the single error type carried across package boundaries.
type VOSpaceErr struct {
	Kind ErrKind
	msg  string
	wrap error
}

func (e *VOSpaceErr) Error() string {
	if e.wrap != nil {
		return fmt.Sprintf("%s: %s: %v", kindName[e.Kind], e.msg, e.wrap)
	}
	return fmt.Sprintf("%s: %s", kindName[e.Kind], e.msg)
}

func (e *VOSpaceErr) Unwrap() error { return e.wrap }

// HTTPStatus maps the error's kind to the status code the dispatcher must
// write, per the error handling design table.
func (e *VOSpaceErr) HTTPStatus() int {
	if s, ok := httpStatus[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func newErr(kind ErrKind, format string, a ...interface{}) *VOSpaceErr {
	return &VOSpaceErr{Kind: kind, msg: fmt.Sprintf(format, a...)}
}

func NewErrInvalidURI(f string, a ...interface{}) error {
	return newErr(ErrInvalidURI, f, a...)
}

func NewErrInvalidArgument(f string, a ...interface{}) error {
	return newErr(ErrInvalidArgument, f, a...)
}

func NewErrPermissionDenied(f string, a ...interface{}) error {
	return newErr(ErrPermissionDenied, f, a...)
}

func NewErrNodeDoesNotExist(path string) error {
	return newErr(ErrNodeDoesNotExist, "node does not exist: %q", path)
}

func NewErrContainerDoesNotExist(path string) error {
	return newErr(ErrContainerDoesNotExist, "container does not exist: %q", path)
}

func NewErrDuplicateNode(path string) error {
	return newErr(ErrDuplicateNode, "node already exists: %q", path)
}

func NewErrLinkFound(path string) error {
	return newErr(ErrLinkFound, "path traverses a link node: %q", path)
}

func NewErrNodeIsBusy(path string) error {
	return newErr(ErrNodeIsBusy, "node is busy: %q", path)
}

func NewErrInvalidJobState(f string, a ...interface{}) error {
	return newErr(ErrInvalidJobState, f, a...)
}

func NewErrConflict(f string, a ...interface{}) error {
	return newErr(ErrConflict, f, a...)
}

func NewErrInternal(err error) error {
	return &VOSpaceErr{Kind: ErrInternal, msg: "internal error", wrap: err}
}

// AsVOSpaceErr extracts a *VOSpaceErr from err, wrapping it as ErrInternal if
// it isn't already typed — the fallback the dispatcher uses before writing a
// response so that an un-typed error from a third-party library never leaks
// a 500 with no kind attached.
func AsVOSpaceErr(err error) *VOSpaceErr {
	if err == nil {
		return nil
	}
	if e, ok := err.(*VOSpaceErr); ok {
		return e
	}
	return &VOSpaceErr{Kind: ErrInternal, msg: "internal error", wrap: err}
}

func (k ErrKind) String() string { return kindName[k] }
