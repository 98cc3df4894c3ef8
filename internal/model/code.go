package model

import (
	"fmt"
	"strings"
	"time"
)

// Format identifies the symbology of a detected code.
type Format string

const (
	FormatQRCode  Format = "qr_code"
	FormatCode128 Format = "code_128"
	FormatEAN13   Format = "ean_13"
	FormatUnknown Format = "unknown"
)

// DefaultFormats is the set of symbologies enabled when nothing else is configured.
var DefaultFormats = []Format{FormatCode128, FormatEAN13, FormatQRCode}

// String returns the string representation of the format.
func (f Format) String() string {
	return string(f)
}

// IsValid reports whether the format is one the decoder can be asked for.
func (f Format) IsValid() bool {
	switch f {
	case FormatQRCode, FormatCode128, FormatEAN13:
		return true
	}
	return false
}

// ParseFormat accepts the canonical names plus the common upper-case and
// dashed spellings ("QR_CODE", "code-128", "ean13").
func ParseFormat(s string) (Format, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	switch norm {
	case "qr_code", "qr", "qrcode":
		return FormatQRCode, nil
	case "code_128", "code128":
		return FormatCode128, nil
	case "ean_13", "ean13":
		return FormatEAN13, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// DetectedCode is one value produced by the decode engine.
type DetectedCode struct {
	RawValue   string    `json:"raw_value"`
	Format     Format    `json:"format"`
	DetectedAt time.Time `json:"detected_at"`
}

// Detection is a scan that passed deduplication and is ready for feedback.
type Detection struct {
	Code     DetectedCode  `json:"code"`
	Latency  time.Duration `json:"latency"`
	FrameSeq uint64        `json:"frame_seq"`
}
