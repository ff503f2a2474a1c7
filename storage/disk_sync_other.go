//go:build !linux

package storage

import (
	"os"
)

func syncFile(f *os.File) error {
	return f.Sync()
}
