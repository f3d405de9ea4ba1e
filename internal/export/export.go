// Package export hands the exportable items to the next boot stage
package export

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/S0me0neR0man/idmestash/internal/fdt"
	"github.com/S0me0neR0man/idmestash/internal/idme"
)

const atagHeaderSize = 8

// Source the manager side of both exports
type Source interface {
	ExportDeviceTree(tree idme.DeviceTree) error
	ExportFlat(dst []byte) error
}

type Exporter struct {
	src Source

	sugar *zap.SugaredLogger
}

func New(src Source, logger *zap.Logger) *Exporter {
	return &Exporter{src: src, sugar: logger.Sugar()}
}

// DeviceTree adds the /idme node to tree. An unsupported store version skips
// the export without error.
func (e *Exporter) DeviceTree(tree idme.DeviceTree) error {
	err := e.src.ExportDeviceTree(tree)
	if errors.Is(err, idme.ErrUnbound) {
		e.sugar.Warnw("idme device tree export skipped", "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("idme device tree export: %w", err)
	}
	return nil
}

// Atag returns the flat export of capacity bytes behind an ATAG header:
// size in 32-bit words including the header, then AtagTag. Both little-endian.
func (e *Exporter) Atag(capacity int) ([]byte, error) {
	if capacity < idme.HeaderSize {
		return nil, fmt.Errorf("%w: atag capacity %d", idme.ErrCapacity, capacity)
	}
	words := (atagHeaderSize + capacity + 3) / 4
	buf := make([]byte, words*4)
	binary.LittleEndian.PutUint32(buf[0:], uint32(words))
	binary.LittleEndian.PutUint32(buf[4:], idme.AtagTag)

	if err := e.src.ExportFlat(buf[atagHeaderSize : atagHeaderSize+capacity]); err != nil {
		return nil, fmt.Errorf("idme atag export: %w", err)
	}
	e.sugar.Debugw("idme atag built", "words", words, "items", idme.Image(buf[atagHeaderSize:]).ItemsNum())
	return buf, nil
}

// Handoff the artifacts passed to the kernel
type Handoff struct {
	DeviceTree []byte
	Atag       []byte
}

// Boot runs both exports. A failing export leaves its artifact nil and the
// other one is still produced.
func (e *Exporter) Boot(tree *fdt.Tree, capacity int) (Handoff, error) {
	var (
		h    Handoff
		errs error
	)
	if err := e.DeviceTree(tree); err != nil {
		errs = multierr.Append(errs, err)
	} else {
		h.DeviceTree = tree.Encode()
	}

	atag, err := e.Atag(capacity)
	if err != nil {
		errs = multierr.Append(errs, err)
	} else {
		h.Atag = atag
	}

	if errs != nil {
		e.sugar.Errorw("idme boot export incomplete", "error", errs)
	}
	return h, errs
}
