package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/gbasim/insts"
)

// ErrUnimplemented matches any *UnimplementedError with errors.Is.
var ErrUnimplemented = errors.New("unimplemented operation")

// UnimplementedError reports a decoded instruction the executor has no
// behavior for. No state is changed when it is returned.
type UnimplementedError struct {
	Format insts.Format
	Detail string
}

func (e *UnimplementedError) Error() string {
	return fmt.Sprintf("unimplemented %v: %s", e.Format, e.Detail)
}

// Is makes errors.Is(err, ErrUnimplemented) hold for every UnimplementedError.
func (e *UnimplementedError) Is(target error) bool {
	return target == ErrUnimplemented
}

func unimplemented(format insts.Format, detail string) error {
	return &UnimplementedError{Format: format, Detail: detail}
}
