package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
)

// Job records the processing of one image: how its mask was derived and where
// the outputs went. Failed jobs are kept with their reason for review.
type Job struct {
	ID         uint `gorm:"primaryKey"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	RunID      string `gorm:"size:64;index"` // batch run or API request id
	FileName   string `gorm:"size:255;not null;index"`
	MaskSource string `gorm:"size:16;index"` // ocr, fallback or empty
	Detections int
	Matched    int
	// band rectangle before dilation, in pixels
	SpanX0     int
	SpanY0     int
	SpanX1     int
	SpanY1     int
	Width      int
	Height     int
	MaskPath   string `gorm:"size:512"`
	ResultPath string `gorm:"size:512"`
	Status     string `gorm:"size:16;index;not null"` // done, masked or failed
	Error      string `gorm:"size:512"`
	DurationMs int64
}

const (
	JobDone   = "done"
	JobMasked = "masked"
	JobFailed = "failed"
)

// BeforeCreate fits the text columns to their sizes. Postgres counts varchar
// length in characters and rejects invalid UTF-8, so values are cut by rune.
func (j *Job) BeforeCreate(*gorm.DB) error {
	for _, f := range []struct {
		v *string
		n int
	}{
		{&j.RunID, 64},
		{&j.FileName, 255},
		{&j.MaskSource, 16},
		{&j.MaskPath, 512},
		{&j.ResultPath, 512},
		{&j.Status, 16},
		{&j.Error, 512},
	} {
		*f.v = Truncate(*f.v, f.n)
	}
	return nil
}

// Truncate returns s as valid UTF-8 of at most n runes.
func Truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
