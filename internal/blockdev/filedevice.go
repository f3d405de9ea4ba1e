package blockdev

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileDevice emulated eMMC, one image file per partition
type FileDevice struct {
	mu        sync.Mutex
	blockSize int
	psn       uint32
	part      Partition
	files     map[Partition]*os.File
}

func partitionFile(p Partition) string {
	return p.String() + ".img"
}

// OpenFileDevice opens (or creates) the partition files in dir
func OpenFileDevice(dir string, blockSize int, psn uint32) (*FileDevice, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	d := &FileDevice{
		blockSize: blockSize,
		psn:       psn,
		files:     make(map[Partition]*os.File, 2),
	}
	for _, p := range []Partition{PartitionUser, PartitionBoot} {
		name := filepath.Join(dir, partitionFile(p))
		f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		d.files[p] = f
	}
	return d, nil
}

func (d *FileDevice) BlockSize() int { return d.blockSize }

func (d *FileDevice) PSN() uint32 { return d.psn }

func (d *FileDevice) SwitchPartition(p Partition) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.files[p]; !ok {
		return fmt.Errorf("no such partition %s", p)
	}
	d.part = p
	return nil
}

func (d *FileDevice) current() (*os.File, error) {
	f, ok := d.files[d.part]
	if !ok || f == nil {
		return nil, ErrClosed
	}
	return f, nil
}

func (d *FileDevice) ReadBlock(lba uint64, buf []byte) error {
	if err := checkBlock(buf, d.blockSize); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := d.current()
	if err != nil {
		return err
	}
	n, err := f.ReadAt(buf, int64(lba)*int64(d.blockSize))
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	// past the end of the file reads as erased media
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

func (d *FileDevice) WriteBlock(lba uint64, buf []byte) error {
	if err := checkBlock(buf, d.blockSize); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := d.current()
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(buf, int64(lba)*int64(d.blockSize)); err != nil {
		return err
	}
	return f.Sync()
}

func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for p, f := range d.files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		d.files[p] = nil
	}
	return firstErr
}
