package watermark

import "errors"

// ErrInvalidInput is returned when a caller hands the locator malformed data,
// e.g. a detection quad without exactly four finite points or a negative padding.
var ErrInvalidInput = errors.New("invalid locator input")
