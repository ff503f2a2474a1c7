package storage

import (
	"bytes"
	"math/rand"
	"testing"
)

func patternedPage() []byte {
	data := make([]byte, PageSize)
	for i := range data {
		data[i] = byte(i % 64)
	}
	return data
}

func randomPage(seed int64) []byte {
	data := make([]byte, PageSize)
	rand.New(rand.NewSource(seed)).Read(data)
	return data
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	algorithms := []struct {
		name string
		typ  CompressionType
	}{
		{"None", CompressionNone},
		{"LZ4", CompressionLZ4},
		{"Snappy", CompressionSnappy},
	}

	for _, alg := range algorithms {
		t.Run(alg.name, func(t *testing.T) {
			original := patternedPage()

			cp, err := CompressPage(original, alg.typ)
			if err != nil {
				t.Fatalf("Compression failed: %v", err)
			}
			if cp.CompressionType != alg.typ {
				t.Errorf("Expected compression type %s, got %s", alg.typ, cp.CompressionType)
			}

			decompressed, err := DecompressPage(cp)
			if err != nil {
				t.Fatalf("Decompression failed: %v", err)
			}
			if !bytes.Equal(original, decompressed) {
				t.Error("Decompressed data does not match original")
			}
		})
	}
}

func TestCompressPageWrongSize(t *testing.T) {
	if _, err := CompressPage(make([]byte, 100), CompressionLZ4); err == nil {
		t.Error("Expected error for short page")
	}
}

func TestCompressPageIncompressibleFallsBack(t *testing.T) {
	for _, typ := range []CompressionType{CompressionLZ4, CompressionSnappy} {
		cp, err := CompressPage(randomPage(42), typ)
		if err != nil {
			t.Fatalf("Compression failed: %v", err)
		}
		if cp.CompressionType != CompressionNone {
			t.Errorf("%s: expected fallback to none for random data, got %s", typ, cp.CompressionType)
		}
	}
}

func TestPageImageRoundTrip(t *testing.T) {
	for _, typ := range []CompressionType{CompressionNone, CompressionLZ4, CompressionSnappy} {
		t.Run(typ.String(), func(t *testing.T) {
			original := patternedPage()

			image, compressed, err := EncodePageImage(original, typ)
			if err != nil {
				t.Fatalf("EncodePageImage failed: %v", err)
			}
			if len(image) != DiskSlotSize {
				t.Errorf("Expected image size %d, got %d", DiskSlotSize, len(image))
			}
			if compressed != (typ != CompressionNone) {
				t.Errorf("Expected compressed=%v, got %v", typ != CompressionNone, compressed)
			}

			decoded, err := DecodePageImage(image)
			if err != nil {
				t.Fatalf("DecodePageImage failed: %v", err)
			}
			if !bytes.Equal(original, decoded) {
				t.Error("Decoded page does not match original")
			}
		})
	}
}

func TestDecodePageImageDetectsCorruption(t *testing.T) {
	image, compressed, err := EncodePageImage(patternedPage(), CompressionSnappy)
	if err != nil || !compressed {
		t.Fatalf("Expected compressed image, got compressed=%v err=%v", compressed, err)
	}

	// Flip the stored checksum
	image[8] ^= 0xFF

	if _, err := DecodePageImage(image); err == nil {
		t.Error("Expected checksum mismatch error")
	}
}

func TestDeserializeCompressedPageErrors(t *testing.T) {
	if _, err := DeserializeCompressedPage([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for short header")
	}

	bad := make([]byte, DiskSlotSize)
	if _, err := DeserializeCompressedPage(bad); err == nil {
		t.Error("Expected error for missing magic")
	}
}

func TestPageImageStartingWithMagic(t *testing.T) {
	for _, typ := range []CompressionType{CompressionNone, CompressionLZ4, CompressionSnappy} {
		t.Run(typ.String(), func(t *testing.T) {
			for _, page := range [][]byte{patternedPage(), randomPage(3)} {
				page[0], page[1] = 0xDE, 0xC0

				image, _, err := EncodePageImage(page, typ)
				if err != nil {
					t.Fatalf("EncodePageImage failed: %v", err)
				}
				decoded, err := DecodePageImage(image)
				if err != nil {
					t.Fatalf("DecodePageImage failed: %v", err)
				}
				if !bytes.Equal(page, decoded) {
					t.Error("Decoded page does not match original")
				}
			}
		})
	}
}

func TestDecodeBlankSlot(t *testing.T) {
	decoded, err := DecodePageImage(make([]byte, DiskSlotSize))
	if err != nil {
		t.Fatalf("DecodePageImage failed: %v", err)
	}
	if !bytes.Equal(decoded, make([]byte, PageSize)) {
		t.Error("Expected blank slot to decode to a zeroed page")
	}
}

func TestDecodeRawImageDetectsCorruption(t *testing.T) {
	image, compressed, err := EncodePageImage(randomPage(11), CompressionNone)
	if err != nil || compressed {
		t.Fatalf("Expected raw image, got compressed=%v err=%v", compressed, err)
	}

	image[CompressedHeaderSize+100] ^= 0xFF

	if _, err := DecodePageImage(image); err == nil {
		t.Error("Expected checksum mismatch for damaged raw page")
	}
}

func TestParseCompressionType(t *testing.T) {
	tests := []struct {
		name    string
		want    CompressionType
		wantErr bool
	}{
		{"", CompressionNone, false},
		{"none", CompressionNone, false},
		{"lz4", CompressionLZ4, false},
		{"snappy", CompressionSnappy, false},
		{"zstd", CompressionNone, true},
	}

	for _, tt := range tests {
		got, err := ParseCompressionType(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCompressionType(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseCompressionType(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}
