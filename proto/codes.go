package proto

import (
	"errors"
	"fmt"

	"github.com/mit-pdos/go-mfs/common"
)

// Result codes. Any negative code is a failure; RcFailure is the generic
// one, used for requests the server could not decode.
const (
	RcOK           int32 = 0
	RcFailure      int32 = -1
	RcInvalidInode int32 = -2
	RcNotDir       int32 = -3
	RcNotFile      int32 = -4
	RcInvalidName  int32 = -5
	RcInvalidArg   int32 = -6
	RcNoSpace      int32 = -7
	RcNotEmpty     int32 = -8
	RcHole         int32 = -9
	RcNotFound     int32 = -10
	RcIO           int32 = -11
)

var codes = []struct {
	rc  int32
	err error
}{
	{RcFailure, common.ErrProtocol},
	{RcInvalidInode, common.ErrInvalidInode},
	{RcNotDir, common.ErrNotDir},
	{RcNotFile, common.ErrNotFile},
	{RcInvalidName, common.ErrInvalidName},
	{RcInvalidArg, common.ErrInvalidArg},
	{RcNoSpace, common.ErrNoSpace},
	{RcNotEmpty, common.ErrNotEmpty},
	{RcHole, common.ErrHole},
	{RcNotFound, common.ErrNotFound},
	{RcIO, common.ErrIO},
}

// ErrToCode maps an error from the file system to its result code. Errors
// of no known kind are reported as RcIO.
func ErrToCode(err error) int32 {
	if err == nil {
		return RcOK
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.rc
		}
	}
	return RcIO
}

// CodeToErr is the inverse of ErrToCode; non-negative codes are success.
func CodeToErr(rc int32) error {
	if rc >= 0 {
		return nil
	}
	for _, c := range codes {
		if c.rc == rc {
			return c.err
		}
	}
	return fmt.Errorf("%w: result %d", common.ErrProtocol, rc)
}
