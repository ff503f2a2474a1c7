package storage

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// CompressionType represents the compression algorithm used for page images
type CompressionType uint8

const (
	CompressionNone   CompressionType = 0
	CompressionLZ4    CompressionType = 1
	CompressionSnappy CompressionType = 2
)

// ParseCompressionType maps a config name to a CompressionType
func ParseCompressionType(name string) (CompressionType, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "snappy":
		return CompressionSnappy, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression algorithm %q (must be none, lz4, or snappy)", name)
	}
}

func (ct CompressionType) String() string {
	switch ct {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("compression(%d)", uint8(ct))
	}
}

// Page image layout, one per DiskSlotSize slot on disk:
// [0-1]: Magic number (0xC0DE)
// [2]: Compression type (CompressionNone for raw pages)
// [3]: Reserved
// [4-5]: Uncompressed size
// [6-7]: Stored size
// [8-11]: CRC32 (IEEE) of the uncompressed page
// [12+]: Stored data
//
// Every written slot carries the header. A slot with a zero magic number has
// never been written.

const (
	CompressedPageMagic     = 0xC0DE
	CompressedHeaderSize    = 12
	DiskSlotSize            = CompressedHeaderSize + PageSize
	MinCompressionThreshold = 100 // Minimum bytes saved to use compression
)

// CompressedPage is a page image after compression
type CompressedPage struct {
	CompressionType  CompressionType
	UncompressedSize uint16
	CompressedSize   uint16
	CompressedData   []byte
	OriginalChecksum uint32
}

// CompressPage compresses a full page. When the algorithm saves fewer than
// MinCompressionThreshold bytes the result is marked CompressionNone.
func CompressPage(data []byte, compressionType CompressionType) (*CompressedPage, error) {
	if len(data) != PageSize {
		return nil, fmt.Errorf("page data must be exactly %d bytes, got %d", PageSize, len(data))
	}

	var compressed []byte
	switch compressionType {
	case CompressionNone:
		compressed = data

	case CompressionLZ4:
		compressed = make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("LZ4 compression failed: %w", err)
		}
		// lz4 reports 0 for incompressible input
		if n == 0 {
			compressed = data
			compressionType = CompressionNone
		} else {
			compressed = compressed[:n]
		}

	case CompressionSnappy:
		compressed = snappy.Encode(nil, data)

	default:
		return nil, fmt.Errorf("unsupported compression type: %d", compressionType)
	}

	if compressionType != CompressionNone && len(data)-len(compressed) < MinCompressionThreshold {
		compressionType = CompressionNone
		compressed = data
	}

	return &CompressedPage{
		CompressionType:  compressionType,
		UncompressedSize: uint16(len(data)),
		CompressedSize:   uint16(len(compressed)),
		CompressedData:   compressed,
		OriginalChecksum: crc32.ChecksumIEEE(data),
	}, nil
}

// DecompressPage restores the original page and verifies its checksum
func DecompressPage(cp *CompressedPage) ([]byte, error) {
	var decompressed []byte

	switch cp.CompressionType {
	case CompressionNone:
		if len(cp.CompressedData) != PageSize {
			return nil, fmt.Errorf("raw page size mismatch: got %d, expected %d", len(cp.CompressedData), PageSize)
		}
		decompressed = cp.CompressedData

	case CompressionLZ4:
		decompressed = make([]byte, PageSize)
		n, err := lz4.UncompressBlock(cp.CompressedData, decompressed)
		if err != nil {
			return nil, fmt.Errorf("LZ4 decompression failed: %w", err)
		}
		if n != PageSize {
			return nil, fmt.Errorf("LZ4 decompression size mismatch: got %d, expected %d", n, PageSize)
		}

	case CompressionSnappy:
		var err error
		decompressed, err = snappy.Decode(nil, cp.CompressedData)
		if err != nil {
			return nil, fmt.Errorf("snappy decompression failed: %w", err)
		}
		if len(decompressed) != PageSize {
			return nil, fmt.Errorf("snappy decompression size mismatch: got %d, expected %d", len(decompressed), PageSize)
		}

	default:
		return nil, fmt.Errorf("unsupported compression type: %d", cp.CompressionType)
	}

	if checksum := crc32.ChecksumIEEE(decompressed); checksum != cp.OriginalChecksum {
		return nil, fmt.Errorf("checksum mismatch: got %08x, expected %08x", checksum, cp.OriginalChecksum)
	}
	return decompressed, nil
}

// SerializeCompressedPage writes the header and data into a DiskSlotSize buffer
func SerializeCompressedPage(cp *CompressedPage) ([]byte, error) {
	totalSize := CompressedHeaderSize + len(cp.CompressedData)
	if totalSize > DiskSlotSize {
		return nil, fmt.Errorf("page image too large: %d bytes (max %d)", totalSize, DiskSlotSize)
	}

	buf := make([]byte, DiskSlotSize)
	binary.LittleEndian.PutUint16(buf[0:2], CompressedPageMagic)
	buf[2] = uint8(cp.CompressionType)
	binary.LittleEndian.PutUint16(buf[4:6], cp.UncompressedSize)
	binary.LittleEndian.PutUint16(buf[6:8], cp.CompressedSize)
	binary.LittleEndian.PutUint32(buf[8:12], cp.OriginalChecksum)
	copy(buf[CompressedHeaderSize:], cp.CompressedData)

	return buf, nil
}

// DeserializeCompressedPage parses a page image written by SerializeCompressedPage
func DeserializeCompressedPage(data []byte) (*CompressedPage, error) {
	if len(data) < CompressedHeaderSize {
		return nil, fmt.Errorf("data too short for page image header: %d bytes", len(data))
	}

	magic := binary.LittleEndian.Uint16(data[0:2])
	if magic != CompressedPageMagic {
		return nil, fmt.Errorf("invalid magic number: got %04x, expected %04x", magic, CompressedPageMagic)
	}

	compressedSize := binary.LittleEndian.Uint16(data[6:8])
	if CompressedHeaderSize+int(compressedSize) > len(data) {
		return nil, fmt.Errorf("insufficient data for page image: need %d bytes, have %d",
			CompressedHeaderSize+int(compressedSize), len(data))
	}

	compressedData := make([]byte, compressedSize)
	copy(compressedData, data[CompressedHeaderSize:CompressedHeaderSize+int(compressedSize)])

	return &CompressedPage{
		CompressionType:  CompressionType(data[2]),
		UncompressedSize: binary.LittleEndian.Uint16(data[4:6]),
		CompressedSize:   compressedSize,
		CompressedData:   compressedData,
		OriginalChecksum: binary.LittleEndian.Uint32(data[8:12]),
	}, nil
}

// EncodePageImage returns the on-disk image of a page and whether its data
// is compressed. Pages that do not compress well enough are stored raw
// behind the same header.
func EncodePageImage(data []byte, compressionType CompressionType) ([]byte, bool, error) {
	cp, err := CompressPage(data, compressionType)
	if err != nil {
		return nil, false, err
	}

	image, err := SerializeCompressedPage(cp)
	if err != nil {
		return nil, false, err
	}
	return image, cp.CompressionType != CompressionNone, nil
}

// DecodePageImage verifies an image and returns the page it holds.
// A never-written slot decodes to a zeroed page.
func DecodePageImage(image []byte) ([]byte, error) {
	if len(image) >= 2 && binary.LittleEndian.Uint16(image[0:2]) == 0 {
		return make([]byte, PageSize), nil
	}

	cp, err := DeserializeCompressedPage(image)
	if err != nil {
		return nil, err
	}
	return DecompressPage(cp)
}
