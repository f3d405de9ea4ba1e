// Package blockdev block devices and the reserved-region adapter on top of them
package blockdev

import (
	"errors"
	"fmt"
)

// Partition the access window of an eMMC part
type Partition int

const (
	PartitionUser Partition = iota
	PartitionBoot
)

const DefaultBlockSize = 512

var (
	ErrShortBuffer  = errors.New("buffer smaller than region")
	ErrBadBlockSize = errors.New("buffer size does not match block size")
	ErrClosed       = errors.New("device closed")
)

func (p Partition) String() string {
	switch p {
	case PartitionUser:
		return "user"
	case PartitionBoot:
		return "boot0"
	default:
		return fmt.Sprintf("partition(%d)", int(p))
	}
}

// Device the raw storage driver. Transfers are always one whole block.
//
// SwitchPartition toggles device-global state: callers must not interleave
// unrelated access while the boot window is selected.
type Device interface {
	BlockSize() int
	SwitchPartition(Partition) error
	ReadBlock(lba uint64, buf []byte) error
	WriteBlock(lba uint64, buf []byte) error
	// PSN product serial number of the medium
	PSN() uint32
	Close() error
}

// SwitchError partition switch failed
type SwitchError struct {
	To  Partition
	Err error
}

func (e *SwitchError) Error() string {
	return fmt.Sprintf("switch to %s partition: %v", e.To, e.Err)
}

func (e *SwitchError) Unwrap() error {
	return e.Err
}

// BlockIOError single block transfer failed
type BlockIOError struct {
	Op  string
	LBA uint64
	Err error
}

func (e *BlockIOError) Error() string {
	return fmt.Sprintf("%s block %d: %v", e.Op, e.LBA, e.Err)
}

func (e *BlockIOError) Unwrap() error {
	return e.Err
}

func checkBlock(buf []byte, size int) error {
	if len(buf) != size {
		return fmt.Errorf("%w: got %d, want %d", ErrBadBlockSize, len(buf), size)
	}
	return nil
}
