package common

import (
	"errors"
)

// Error kinds shared by the file system, the wire protocol and the client.
var (
	ErrInvalidInode = errors.New("invalid inode")
	ErrNotDir       = errors.New("not a directory")
	ErrNotFile      = errors.New("not a regular file")
	ErrInvalidName  = errors.New("invalid name")
	ErrInvalidArg   = errors.New("invalid argument")
	ErrNoSpace      = errors.New("resource exhausted")
	ErrNotEmpty     = errors.New("directory not empty")
	ErrHole         = errors.New("read of unassigned block")
	ErrNotFound     = errors.New("not found")
	ErrProtocol     = errors.New("protocol error")
	ErrTimeout      = errors.New("transport timeout")
	ErrTransport    = errors.New("transport failure")
	ErrIO           = errors.New("i/o error")
)
