package common

import (
	"errors"
)

// Errno is the error kind returned by every file system operation. The
// values are negative so that they double as the status codes of the C-style
// interface (negative = failure).
type Errno int

const (
	ErrNotFound    Errno = -1
	ErrNotDir      Errno = -2
	ErrIsDir       Errno = -3
	ErrNoSpace     Errno = -4
	ErrNoHandles   Errno = -5
	ErrBadHandle   Errno = -6
	ErrPathTooLong Errno = -7
	ErrNameTooLong Errno = -8
	ErrExists      Errno = -9
	ErrInval       Errno = -10
)

var errnoNames = map[Errno]string{
	ErrNotFound:    "no such file or directory",
	ErrNotDir:      "not a directory",
	ErrIsDir:       "is a directory",
	ErrNoSpace:     "no space left on device",
	ErrNoHandles:   "too many open files",
	ErrBadHandle:   "bad file descriptor",
	ErrPathTooLong: "path too long",
	ErrNameTooLong: "file name too long",
	ErrExists:      "file exists",
	ErrInval:       "invalid argument",
}

func (e Errno) Error() string {
	if s, ok := errnoNames[e]; ok {
		return s
	}
	return "unknown error"
}

// Code returns the negative status code for e.
func (e Errno) Code() int {
	return int(e)
}

// Code maps err onto the C-style status space: 0 for nil, the Errno value
// for file system errors, and ErrInval for anything else.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var e Errno
	if errors.As(err, &e) {
		return e.Code()
	}
	return ErrInval.Code()
}
