package ocr

import "fmt"

// UnavailableError is returned when an engine cannot process an image
type UnavailableError struct {
	Engine string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s ocr unavailable: %v", e.Engine, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// PayloadTooLargeError is returned when an image exceeds a remote engine's
// input cap
type PayloadTooLargeError struct {
	Engine string
	Size   int
	Limit  int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("image too large for %s (%d bytes, max %d MB)", e.Engine, e.Size, e.Limit/(1024*1024))
}
