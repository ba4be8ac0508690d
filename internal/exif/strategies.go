// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

package exif

import (
	"bytes"
	"fmt"

	"github.com/jdeng/goheif"
	goexif "github.com/rwcarlsen/goexif/exif"
)

// strategy is one step of the extraction chain. Strategies are tried in
// order; each is capability-checked against the file before decoding.
type strategy interface {
	// Name identifies the strategy in results, logs and metrics.
	Name() string
	// CanHandle reports whether this strategy applies to the buffer.
	CanHandle(filename string, data []byte) bool
	// Decode parses EXIF from the buffer.
	Decode(data []byte) (*goexif.Exif, error)
}

// defaultStrategies returns the chain in priority order: cheap direct
// decode first, HEIC container extraction second, and a permissive
// marker scan last.
func defaultStrategies() []strategy {
	return []strategy{
		directStrategy{},
		heicStrategy{},
		scanStrategy{},
	}
}

// directStrategy decodes EXIF straight from the binary buffer. Handles
// JPEG and raw TIFF, which covers the overwhelming majority of uploads.
type directStrategy struct{}

func (directStrategy) Name() string { return "direct" }

func (directStrategy) CanHandle(_ string, data []byte) bool {
	if len(data) < 4 {
		return false
	}
	// JPEG SOI marker
	if data[0] == 0xFF && data[1] == 0xD8 {
		return true
	}
	// TIFF headers, either endianness
	if bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*")) {
		return true
	}
	return false
}

func (directStrategy) Decode(data []byte) (*goexif.Exif, error) {
	x, err := goexif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("direct decode: %w", err)
	}
	return x, nil
}

// heicStrategy extracts the EXIF block out of a HEIC/HEIF container and
// decodes it as raw TIFF. Generic EXIF parsers cannot read the container
// directly, so this is the retry step for Apple photos.
type heicStrategy struct{}

func (heicStrategy) Name() string { return "heic" }

// heifBrands are the ftyp major brands treated as HEIC/HEIF containers.
var heifBrands = [][]byte{
	[]byte("heic"), []byte("heix"), []byte("hevc"), []byte("hevx"),
	[]byte("heim"), []byte("heis"), []byte("mif1"), []byte("msf1"),
}

func (heicStrategy) CanHandle(_ string, data []byte) bool {
	// ISO BMFF: size(4) + "ftyp"(4) + major brand(4)
	if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
		return false
	}
	brand := data[8:12]
	for _, b := range heifBrands {
		if bytes.Equal(brand, b) {
			return true
		}
	}
	return false
}

func (heicStrategy) Decode(data []byte) (*goexif.Exif, error) {
	raw, err := goheif.ExtractExif(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("heic exif extraction: %w", err)
	}
	// The extracted item may carry the Exif\0\0 prefix ahead of the
	// TIFF header depending on how the container was written.
	if idx := bytes.Index(raw, exifMarker); idx >= 0 {
		raw = raw[idx+len(exifMarker):]
	}
	x, err := goexif.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("heic exif decode: %w", err)
	}
	return x, nil
}

// scanStrategy is the last-resort permissive parse: it locates an EXIF
// marker anywhere in the buffer and decodes the TIFF block that follows.
// This recovers metadata from files whose wrapping structure confused
// the stricter decoders.
type scanStrategy struct{}

func (scanStrategy) Name() string { return "scan" }

// exifMarker precedes the TIFF block in JPEG APP1 segments and PNG eXIf chunks.
var exifMarker = []byte("Exif\x00\x00")

func (scanStrategy) CanHandle(_ string, data []byte) bool {
	return bytes.Contains(data, exifMarker)
}

func (scanStrategy) Decode(data []byte) (*goexif.Exif, error) {
	idx := bytes.Index(data, exifMarker)
	if idx < 0 {
		return nil, fmt.Errorf("scan: no exif marker found")
	}
	tiffStart := idx + len(exifMarker)
	if tiffStart >= len(data) {
		return nil, fmt.Errorf("scan: truncated exif block")
	}
	x, err := goexif.Decode(bytes.NewReader(data[tiffStart:]))
	if err != nil {
		return nil, fmt.Errorf("scan decode: %w", err)
	}
	return x, nil
}
