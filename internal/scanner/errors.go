package scanner

import "errors"

var (
	// ErrScannerBusy means another session holds the scanner and its claim
	// is still fresh.
	ErrScannerBusy = errors.New("scanner is in use by another session")

	// ErrDeviceUnavailable means no capture device could be found or opened.
	ErrDeviceUnavailable = errors.New("no capture device available")

	// ErrDecodeTimeout means no code was decoded within the allowed window.
	ErrDecodeTimeout = errors.New("no code decoded before timeout")

	// ErrNotActive means the operation needs a running scanner.
	ErrNotActive = errors.New("scanner is not active")
)
