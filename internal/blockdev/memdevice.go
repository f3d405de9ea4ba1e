package blockdev

import (
	"errors"
	"sync"
)

var ErrInjected = errors.New("injected fault")

type blockAddr struct {
	part Partition
	lba  uint64
}

// MemDevice map backed device. Faults can be armed to exercise error paths.
type MemDevice struct {
	mu        sync.Mutex
	blockSize int
	psn       uint32
	part      Partition
	blocks    map[blockAddr][]byte

	// FailSwitchTo fails every switch into the given partition when set
	FailSwitchTo *Partition
	// FailReadAt / FailWriteAt fail a transfer of the given boot-partition block
	FailReadAt  *uint64
	FailWriteAt *uint64

	Switches int
	Writes   int
}

func NewMemDevice(blockSize int, psn uint32) *MemDevice {
	return &MemDevice{
		blockSize: blockSize,
		psn:       psn,
		blocks:    make(map[blockAddr][]byte),
	}
}

func (m *MemDevice) BlockSize() int { return m.blockSize }

func (m *MemDevice) PSN() uint32 { return m.psn }

func (m *MemDevice) Close() error { return nil }

// Current returns the selected partition
func (m *MemDevice) Current() Partition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.part
}

func (m *MemDevice) SwitchPartition(p Partition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Switches++
	if m.FailSwitchTo != nil && *m.FailSwitchTo == p {
		return ErrInjected
	}
	m.part = p
	return nil
}

func (m *MemDevice) ReadBlock(lba uint64, buf []byte) error {
	if err := checkBlock(buf, m.blockSize); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.part == PartitionBoot && m.FailReadAt != nil && *m.FailReadAt == lba {
		return ErrInjected
	}
	blk, ok := m.blocks[blockAddr{m.part, lba}]
	if !ok {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	copy(buf, blk)
	return nil
}

func (m *MemDevice) WriteBlock(lba uint64, buf []byte) error {
	if err := checkBlock(buf, m.blockSize); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.part == PartitionBoot && m.FailWriteAt != nil && *m.FailWriteAt == lba {
		return ErrInjected
	}
	m.Writes++
	blk := make([]byte, len(buf))
	copy(blk, buf)
	m.blocks[blockAddr{m.part, lba}] = blk
	return nil
}

// Peek returns a copy of a stored block, nil when never written
func (m *MemDevice) Peek(p Partition, lba uint64) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	blk, ok := m.blocks[blockAddr{p, lba}]
	if !ok {
		return nil
	}
	out := make([]byte, len(blk))
	copy(out, blk)
	return out
}
