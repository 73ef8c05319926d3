// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package energymon

import "fmt"

// ErrAcquisitionFailed is returned when discovery of the native monitor fails
type ErrAcquisitionFailed struct {
	Code int
}

func (e ErrAcquisitionFailed) Error() string {
	return fmt.Sprintf("failed to acquire energy monitor: status %d", e.Code)
}

// ErrInitializationFailed is returned when the monitor's init entry point fails
type ErrInitializationFailed struct {
	Code int
}

func (e ErrInitializationFailed) Error() string {
	return fmt.Sprintf("failed to initialize energy monitor: status %d", e.Code)
}

// ErrFinalizationFailed is returned when the monitor's finish entry point fails
type ErrFinalizationFailed struct {
	Code int
}

func (e ErrFinalizationFailed) Error() string {
	return fmt.Sprintf("failed to finalize energy monitor: status %d", e.Code)
}

// ErrUnsupportedOperation is returned when an operation without a safe
// default is invoked on a backend that does not provide it
type ErrUnsupportedOperation struct {
	Op string
}

func (e ErrUnsupportedOperation) Error() string {
	return fmt.Sprintf("energy monitor does not support %s", e.Op)
}

// ErrClosed is returned when a finalized monitor is read
type ErrClosed struct{}

func (e ErrClosed) Error() string {
	return "energy monitor is finalized"
}

// ErrInstanceUnavailable is returned by a Coordinator whose one and only
// construction attempt failed. Cause is the construction error.
type ErrInstanceUnavailable struct {
	Cause error
}

func (e ErrInstanceUnavailable) Error() string {
	return fmt.Sprintf("shared energy monitor unavailable: %v", e.Cause)
}

func (e ErrInstanceUnavailable) Unwrap() error {
	return e.Cause
}
