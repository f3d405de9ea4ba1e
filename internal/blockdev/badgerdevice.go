package blockdev

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDevice keeps every block as one badger value
type BadgerDevice struct {
	db        *badger.DB
	mu        sync.Mutex
	blockSize int
	psn       uint32
	part      Partition
}

// OpenBadgerDevice opens the store at path; an empty path keeps it in memory
func OpenBadgerDevice(path string, blockSize int, psn uint32) (*BadgerDevice, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &BadgerDevice{
		db:        db,
		blockSize: blockSize,
		psn:       psn,
	}, nil
}

func blockKey(p Partition, lba uint64) []byte {
	return []byte(fmt.Sprintf("blk:%s:%016x", p, lba))
}

func (d *BadgerDevice) BlockSize() int { return d.blockSize }

func (d *BadgerDevice) PSN() uint32 { return d.psn }

func (d *BadgerDevice) SwitchPartition(p Partition) error {
	if p != PartitionUser && p != PartitionBoot {
		return fmt.Errorf("no such partition %s", p)
	}
	d.mu.Lock()
	d.part = p
	d.mu.Unlock()
	return nil
}

func (d *BadgerDevice) key(lba uint64) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return blockKey(d.part, lba)
}

func (d *BadgerDevice) ReadBlock(lba uint64, buf []byte) error {
	if err := checkBlock(buf, d.blockSize); err != nil {
		return err
	}
	key := d.key(lba)

	return d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			for i := range buf {
				buf[i] = 0
			}
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			n := copy(buf, val)
			for i := n; i < len(buf); i++ {
				buf[i] = 0
			}
			return nil
		})
	})
}

func (d *BadgerDevice) WriteBlock(lba uint64, buf []byte) error {
	if err := checkBlock(buf, d.blockSize); err != nil {
		return err
	}
	key := d.key(lba)
	val := make([]byte, len(buf))
	copy(val, buf)

	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

func (d *BadgerDevice) Close() error {
	return d.db.Close()
}
