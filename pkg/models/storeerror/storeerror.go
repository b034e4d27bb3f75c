package storeerror

import (
	"errors"
	"fmt"
)

const (
	STORE_UNEXPECTED                 = "SSU"
	STORE_INTERNAL                   = "SSI"
	STORE_FOREIGN_COLUMN_HANDLE      = "SSF"
	STORE_NO_HOST_FOR_BUCKETED_SHARD = "SSB"
	STORE_NO_HOST_FOR_SHARD          = "SSH"
	STORE_NO_NODES_AVAILABLE         = "SSN"
	STORE_BATCH_IN_FLIGHT            = "SSP"
	STORE_BATCH_INTERRUPTED          = "SSX"
	STORE_SOURCE_CLOSED              = "SSC"
	STORE_METADATA_ERROR             = "SSM"
	STORE_INVALID_CONFIG             = "SSV"
)

var existingErrorCodeMap = map[string]string{
	STORE_INTERNAL:                   "Internal consistency failure",
	STORE_FOREIGN_COLUMN_HANDLE:      "ForeignColumnHandle",
	STORE_NO_HOST_FOR_BUCKETED_SHARD: "NoHostForBucketedShard",
	STORE_NO_HOST_FOR_SHARD:          "NoHostForShard",
	STORE_NO_NODES_AVAILABLE:         "NoNodesAvailable",
	STORE_BATCH_IN_FLIGHT:            "BatchAlreadyInFlight",
	STORE_BATCH_INTERRUPTED:          "BatchInterrupted",
	STORE_SOURCE_CLOSED:              "SplitSourceClosed",
	STORE_METADATA_ERROR:             "Metadata error",
	STORE_INVALID_CONFIG:             "Invalid config",
}

func GetMessageByCode(errorCode string) string {
	rep, ok := existingErrorCodeMap[errorCode]
	if ok {
		return rep
	}
	return "Unexpected error"
}

var _ error = &StoreError{}

type StoreError struct {
	Err error

	ErrorCode string
}

func New(errorCode string, errorMsg string) *StoreError {
	return &StoreError{
		Err:       errors.New(errorMsg),
		ErrorCode: errorCode,
	}
}

func Newf(errorCode string, format string, a ...any) *StoreError {
	return &StoreError{
		Err:       fmt.Errorf(format, a...),
		ErrorCode: errorCode,
	}
}

// Wrap classifies err under errorCode, keeping it reachable through errors.Unwrap.
func Wrap(errorCode string, err error) *StoreError {
	return &StoreError{
		Err:       err,
		ErrorCode: errorCode,
	}
}

func (er *StoreError) Error() string {
	return fmt.Sprintf("Code: %s. Name: %s. Description: %s.",
		er.ErrorCode, GetMessageByCode(er.ErrorCode), er.Err)
}

func (er *StoreError) Unwrap() error {
	return er.Err
}

// Is reports whether target is a StoreError with the same code.
func (er *StoreError) Is(target error) bool {
	var other *StoreError
	if !errors.As(target, &other) {
		return false
	}
	return other.ErrorCode == er.ErrorCode
}

// Code returns the classifying code of err, or STORE_UNEXPECTED when err
// carries none.
func Code(err error) string {
	var se *StoreError
	if errors.As(err, &se) {
		return se.ErrorCode
	}
	return STORE_UNEXPECTED
}

func HasCode(err error, code string) bool {
	var se *StoreError
	if !errors.As(err, &se) {
		return false
	}
	return se.ErrorCode == code
}
