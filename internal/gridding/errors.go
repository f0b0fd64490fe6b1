package gridding

import (
	"errors"
	"fmt"
)

var (
	// ErrSpecMismatch is returned when grids built on different specs are merged
	ErrSpecMismatch = errors.New("grid specification mismatch")

	// ErrFinalized is returned when an aggregator is used after Finalize
	ErrFinalized = errors.New("aggregator already finalized")

	// ErrInvalidPhase is returned when a run operation is called out of order
	ErrInvalidPhase = errors.New("invalid run phase")
)

// ConfigurationError 잘못된 격자/필터 설정 (실행 시작 전 중단)
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// MalformedInputError 단일 swath 파일의 배열 불일치 (해당 파일만 제외)
type MalformedInputError struct {
	Source string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed swath %q: %s", e.Source, e.Reason)
}

// IsConfigurationError reports whether err wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsMalformedInput reports whether err wraps a MalformedInputError
func IsMalformedInput(err error) bool {
	var me *MalformedInputError
	return errors.As(err, &me)
}
