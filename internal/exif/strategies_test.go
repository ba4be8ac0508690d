// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

package exif

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// tiffSpec describes a synthetic photo for the hand-built TIFF fixture.
// Empty strings omit the corresponding tag.
type tiffSpec struct {
	cameraMake  string
	cameraModel string
	dateTime    string
	gps         *gpsSpec
}

// gpsSpec describes the GPS sub-IFD. Coordinates are whole
// degrees/minutes/seconds; refs are "N"/"S" and "E"/"W".
type gpsSpec struct {
	latRef, lngRef string
	lat, lng       [3]uint32
	dateStamp      string
	timeStamp      *[3]uint32
}

// ifdEntry is one directory entry with its value already encoded.
// Values of four bytes or fewer are stored inline, larger ones in the
// data area that follows the directory.
type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

const (
	tiffASCII    = 2
	tiffLong     = 4
	tiffRational = 5
)

// writeIFD appends a directory starting at ifdOffset within the file,
// followed by its overflow data area.
func writeIFD(buf *bytes.Buffer, le binary.ByteOrder, ifdOffset uint32, entries []ifdEntry) {
	binary.Write(buf, le, uint16(len(entries)))
	dataOffset := ifdOffset + uint32(2+len(entries)*12+4)

	var data bytes.Buffer
	for _, e := range entries {
		binary.Write(buf, le, e.tag)
		binary.Write(buf, le, e.typ)
		binary.Write(buf, le, e.count)
		if len(e.data) <= 4 {
			padded := make([]byte, 4)
			copy(padded, e.data)
			buf.Write(padded)
		} else {
			binary.Write(buf, le, dataOffset+uint32(data.Len()))
			data.Write(e.data)
		}
	}
	binary.Write(buf, le, uint32(0)) // next IFD
	buf.Write(data.Bytes())
}

// ifdSize is the byte length of a directory plus its overflow data.
func ifdSize(entries []ifdEntry) uint32 {
	size := uint32(2 + len(entries)*12 + 4)
	for _, e := range entries {
		if len(e.data) > 4 {
			size += uint32(len(e.data))
		}
	}
	return size
}

// buildTIFFSpec assembles a minimal little-endian TIFF from the spec:
// IFD0 with ASCII Make/Model/DateTime tags and, when gps is set, a GPS
// sub-IFD with coordinate and date/time tags. Enough structure for the
// direct and scan strategies to decode.
func buildTIFFSpec(t *testing.T, spec tiffSpec) []byte {
	t.Helper()

	le := binary.LittleEndian

	ascii := func(s string) []byte { return append([]byte(s), 0) }
	rationals := func(vals [3]uint32) []byte {
		var b bytes.Buffer
		for _, v := range vals {
			binary.Write(&b, le, v)
			binary.Write(&b, le, uint32(1))
		}
		return b.Bytes()
	}
	asciiEntry := func(tag uint16, s string) ifdEntry {
		return ifdEntry{tag, tiffASCII, uint32(len(s) + 1), ascii(s)}
	}

	ifd0 := []ifdEntry{
		asciiEntry(0x010F, spec.cameraMake),  // Make
		asciiEntry(0x0110, spec.cameraModel), // Model
	}
	if spec.dateTime != "" {
		ifd0 = append(ifd0, asciiEntry(0x0132, spec.dateTime)) // DateTime
	}

	var gpsIFD []ifdEntry
	if g := spec.gps; g != nil {
		// Tag order: GPSLatitudeRef, GPSLatitude, GPSLongitudeRef,
		// GPSLongitude, then optional GPSTimeStamp and GPSDateStamp.
		gpsIFD = []ifdEntry{
			asciiEntry(0x0001, g.latRef),
			{0x0002, tiffRational, 3, rationals(g.lat)},
			asciiEntry(0x0003, g.lngRef),
			{0x0004, tiffRational, 3, rationals(g.lng)},
		}
		if g.timeStamp != nil {
			gpsIFD = append(gpsIFD, ifdEntry{0x0007, tiffRational, 3, rationals(*g.timeStamp)})
		}
		if g.dateStamp != "" {
			gpsIFD = append(gpsIFD, asciiEntry(0x001D, g.dateStamp))
		}

		// GPSInfoIFDPointer: the sub-IFD sits right after IFD0.
		ptr := ifdEntry{0x8825, tiffLong, 1, nil}
		gpsOffset := 8 + ifdSize(append(append([]ifdEntry{}, ifd0...), ptr))
		ptrValue := make([]byte, 4)
		le.PutUint32(ptrValue, gpsOffset)
		ptr.data = ptrValue
		ifd0 = append(ifd0, ptr)
	}

	var buf bytes.Buffer
	buf.WriteString("II")
	binary.Write(&buf, le, uint16(0x2A))
	binary.Write(&buf, le, uint32(8)) // IFD0 offset

	writeIFD(&buf, le, 8, ifd0)
	if gpsIFD != nil {
		writeIFD(&buf, le, uint32(buf.Len()), gpsIFD)
	}

	return buf.Bytes()
}

// buildTIFF is the GPS-less shorthand most tests use.
func buildTIFF(t *testing.T, cameraMake, cameraModel, dateTime string) []byte {
	t.Helper()
	return buildTIFFSpec(t, tiffSpec{
		cameraMake:  cameraMake,
		cameraModel: cameraModel,
		dateTime:    dateTime,
	})
}

func TestDirectStrategyCanHandle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"jpeg soi", []byte{0xFF, 0xD8, 0xFF, 0xE1}, true},
		{"tiff little endian", []byte("II*\x00rest"), true},
		{"tiff big endian", []byte("MM\x00*rest"), true},
		{"png header", []byte{0x89, 'P', 'N', 'G'}, false},
		{"too short", []byte{0xFF}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := (directStrategy{}).CanHandle("photo.jpg", tt.data); got != tt.want {
				t.Errorf("CanHandle() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHEICStrategyCanHandle(t *testing.T) {
	t.Parallel()

	ftyp := func(brand string) []byte {
		data := make([]byte, 12)
		copy(data[4:8], "ftyp")
		copy(data[8:12], brand)
		return data
	}

	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"heic brand", ftyp("heic"), true},
		{"heix brand", ftyp("heix"), true},
		{"mif1 brand", ftyp("mif1"), true},
		{"mp4 brand", ftyp("isom"), false},
		{"no ftyp box", []byte("II*\x00not a container"), false},
		{"truncated", []byte("\x00\x00\x00\x18ftyp"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := (heicStrategy{}).CanHandle("photo.heic", tt.data); got != tt.want {
				t.Errorf("CanHandle() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScanStrategy(t *testing.T) {
	t.Parallel()

	tiff := buildTIFF(t, "GoPro", "HERO12 Black", "2026:07:15 10:30:00")

	t.Run("finds embedded marker", func(t *testing.T) {
		t.Parallel()

		data := append([]byte("some wrapper bytes"), exifMarker...)
		data = append(data, tiff...)

		if !(scanStrategy{}).CanHandle("photo.jpg", data) {
			t.Fatal("CanHandle() = false, want true")
		}

		x, err := (scanStrategy{}).Decode(data)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if got := stringField(x, "Model"); got != "HERO12 Black" {
			t.Errorf("Model = %q, want %q", got, "HERO12 Black")
		}
	})

	t.Run("rejects buffer without marker", func(t *testing.T) {
		t.Parallel()

		if (scanStrategy{}).CanHandle("photo.jpg", []byte("nothing here")) {
			t.Error("CanHandle() = true, want false")
		}
	})

	t.Run("truncated block errors", func(t *testing.T) {
		t.Parallel()

		if _, err := (scanStrategy{}).Decode(exifMarker); err == nil {
			t.Error("Decode() error = nil, want error")
		}
	})
}
