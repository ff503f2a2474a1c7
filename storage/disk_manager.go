package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// DiskManager stores page images in a single file.
// Page N lives in the DiskSlotSize slot at offset N*DiskSlotSize.
type DiskManager struct {
	file        *os.File
	nextPageId  uint32
	freePageIds []uint32
	compression CompressionType
	mutex       sync.Mutex
}

// NewDiskManager opens or creates fileName. Existing pages stay readable and
// new allocations continue after the last page in the file.
func NewDiskManager(fileName string) (*DiskManager, error) {
	return NewDiskManagerWithCompression(fileName, CompressionNone)
}

// NewDiskManagerWithCompression is NewDiskManager with page images compressed
// by the given algorithm when that saves space
func NewDiskManagerWithCompression(fileName string, compression CompressionType) (*DiskManager, error) {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open/create file %s: %w", fileName, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file %s: %w", fileName, err)
	}

	return &DiskManager{
		file:        file,
		nextPageId:  uint32((info.Size() + DiskSlotSize - 1) / DiskSlotSize),
		compression: compression,
	}, nil
}

// AllocatePage allocates a page ID, reusing deallocated ones first
func (dm *DiskManager) AllocatePage() uint32 {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if n := len(dm.freePageIds); n > 0 {
		pageId := dm.freePageIds[n-1]
		dm.freePageIds = dm.freePageIds[:n-1]
		return pageId
	}

	pageId := dm.nextPageId
	dm.nextPageId++
	return pageId
}

// DeallocatePage makes pageId available to a later AllocatePage
func (dm *DiskManager) DeallocatePage(pageId uint32) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if pageId >= dm.nextPageId {
		return
	}
	for _, id := range dm.freePageIds {
		if id == pageId {
			return
		}
	}
	dm.freePageIds = append(dm.freePageIds, pageId)
}

// ReadPage reads a page from disk. Pages allocated but never written read
// back as zeroes.
func (dm *DiskManager) ReadPage(pageId uint32) ([]byte, error) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if pageId >= dm.nextPageId {
		return nil, ErrPageNotFound("ReadPage", pageId)
	}

	offset := int64(pageId) * DiskSlotSize
	image := make([]byte, DiskSlotSize)

	n, err := dm.file.ReadAt(image, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, ErrDiskRead("ReadPage", pageId, err)
	}
	if n == 0 {
		// Allocated but never flushed
		return image, nil
	}

	data, err := DecodePageImage(image)
	if err != nil {
		return nil, ErrPageCorrupted("ReadPage", pageId, err)
	}
	return data, nil
}

// WritePage writes a page to disk at the specified page ID and syncs the file
func (dm *DiskManager) WritePage(pageId uint32, data []byte) error {
	if len(data) != PageSize {
		return fmt.Errorf("page data must be exactly %d bytes, got %d", PageSize, len(data))
	}

	image, err := dm.encode(pageId, data)
	if err != nil {
		return err
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if err := dm.writeLocked(pageId, image); err != nil {
		return err
	}
	if err := syncFile(dm.file); err != nil {
		return ErrDiskWrite("WritePage", pageId, err)
	}
	return nil
}

// PageWrite represents a single page write operation
type PageWrite struct {
	PageID uint32
	Data   []byte
}

// WritePagesV writes multiple pages with a single sync at the end
func (dm *DiskManager) WritePagesV(writes []PageWrite) error {
	if len(writes) == 0 {
		return nil
	}

	images := make([][]byte, len(writes))
	for i, pw := range writes {
		if len(pw.Data) != PageSize {
			return fmt.Errorf("page data must be exactly %d bytes, got %d", PageSize, len(pw.Data))
		}
		image, err := dm.encode(pw.PageID, pw.Data)
		if err != nil {
			return err
		}
		images[i] = image
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	for i, pw := range writes {
		if err := dm.writeLocked(pw.PageID, images[i]); err != nil {
			return err
		}
	}

	if err := syncFile(dm.file); err != nil {
		return ErrDiskWrite("WritePagesV", writes[0].PageID, err)
	}
	return nil
}

// encode runs outside the file lock so concurrent writers compress in parallel
func (dm *DiskManager) encode(pageId uint32, data []byte) ([]byte, error) {
	image, _, err := EncodePageImage(data, dm.compression)
	if err != nil {
		return nil, ErrDiskWrite("WritePage", pageId, err)
	}
	return image, nil
}

func (dm *DiskManager) writeLocked(pageId uint32, image []byte) error {
	offset := int64(pageId) * DiskSlotSize
	if _, err := dm.file.WriteAt(image, offset); err != nil {
		return ErrDiskWrite("WritePage", pageId, err)
	}
	if pageId >= dm.nextPageId {
		dm.nextPageId = pageId + 1
	}
	return nil
}

// NumPages returns the number of page slots allocated in the file
func (dm *DiskManager) NumPages() uint32 {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()
	return dm.nextPageId
}

// Close closes the disk manager and its underlying file
func (dm *DiskManager) Close() error {
	if dm.file != nil {
		return dm.file.Close()
	}
	return nil
}
