package insts

import (
	"errors"
	"fmt"
)

// ErrDecode matches any *DecodeError with errors.Is.
var ErrDecode = errors.New("decode error")

// DecodeFailure tags why a word could not be decoded.
type DecodeFailure uint8

// Decode failure reasons.
const (
	ReasonReservedCondition DecodeFailure = iota // condition field 0b1111
	ReasonUndefined                              // architecturally undefined encoding
	ReasonHalfwordTransfer                       // LDRH/STRH/LDRSB/LDRSH
	ReasonCoprocessor                            // CDP/LDC/STC/MCR/MRC
	ReasonSoftwareInterrupt                      // SWI
)

func (r DecodeFailure) String() string {
	switch r {
	case ReasonReservedCondition:
		return "reserved condition"
	case ReasonUndefined:
		return "undefined encoding"
	case ReasonHalfwordTransfer:
		return "halfword transfer not supported"
	case ReasonCoprocessor:
		return "coprocessor instruction not supported"
	case ReasonSoftwareInterrupt:
		return "software interrupt not supported"
	}
	return fmt.Sprintf("DecodeFailure(%d)", uint8(r))
}

// DecodeError reports a word that did not match an implemented encoding.
type DecodeError struct {
	Word   uint32
	Cond   uint8 // raw bits [31:28]
	Reason DecodeFailure
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode 0x%08X (cond %04b): %v", e.Word, e.Cond, e.Reason)
}

// Is makes errors.Is(err, ErrDecode) hold for every DecodeError.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
