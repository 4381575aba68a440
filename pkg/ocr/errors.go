package ocr

import "errors"

// ErrEmptyImage is returned when a zero-area image is handed to an OCR engine.
var ErrEmptyImage = errors.New("image has no pixels")
