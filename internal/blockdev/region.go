package blockdev

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Region fixed run of blocks in the boot partition. Every transfer switches
// the device into the boot window and back again.
type Region struct {
	dev    Device
	start  uint64
	blocks int

	sugar *zap.SugaredLogger
}

func NewRegion(dev Device, start uint64, blocks int, logger *zap.Logger) *Region {
	return &Region{
		dev:    dev,
		start:  start,
		blocks: blocks,
		sugar:  logger.Sugar(),
	}
}

// Size region size in bytes
func (r *Region) Size() int {
	return r.blocks * r.dev.BlockSize()
}

// Read fills buf[:Size()] from the region
func (r *Region) Read(buf []byte) error {
	return r.transfer("read", buf, r.dev.ReadBlock)
}

// Write stores buf[:Size()] into the region
func (r *Region) Write(buf []byte) error {
	return r.transfer("write", buf, r.dev.WriteBlock)
}

// ReadFirstBlock reads only the block holding the header
func (r *Region) ReadFirstBlock(buf []byte) error {
	bs := r.dev.BlockSize()
	if len(buf) < bs {
		return ErrShortBuffer
	}
	if err := r.dev.SwitchPartition(PartitionBoot); err != nil {
		r.sugar.Errorw("couldn't switch to boot partition", "error", err)
		return &SwitchError{To: PartitionBoot, Err: err}
	}

	var ioErr error
	if err := r.dev.ReadBlock(r.start, buf[:bs]); err != nil {
		r.sugar.Errorw("couldn't read first block", "lba", r.start, "error", err)
		ioErr = &BlockIOError{Op: "read", LBA: r.start, Err: err}
	}

	return multierr.Append(ioErr, r.switchBack())
}

func (r *Region) transfer(op string, buf []byte, fn func(uint64, []byte) error) error {
	bs := r.dev.BlockSize()
	if len(buf) < r.Size() {
		return ErrShortBuffer
	}

	if err := r.dev.SwitchPartition(PartitionBoot); err != nil {
		r.sugar.Errorw("couldn't switch to boot partition", "op", op, "error", err)
		return &SwitchError{To: PartitionBoot, Err: err}
	}

	var ioErr error
	for i := 0; i < r.blocks; i++ {
		lba := r.start + uint64(i)
		if err := fn(lba, buf[i*bs:(i+1)*bs]); err != nil {
			r.sugar.Errorw("block transfer failed", "op", op, "iteration", i, "lba", lba, "error", err)
			ioErr = &BlockIOError{Op: op, LBA: lba, Err: err}
			break
		}
	}

	return multierr.Append(ioErr, r.switchBack())
}

func (r *Region) switchBack() error {
	if err := r.dev.SwitchPartition(PartitionUser); err != nil {
		r.sugar.Errorw("failed to switch out of boot partition", "error", err)
		return &SwitchError{To: PartitionUser, Err: err}
	}
	return nil
}
