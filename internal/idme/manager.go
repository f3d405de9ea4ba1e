package idme

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/S0me0neR0man/idmestash/internal/metrics"
)

// Storer the reserved region holding the image
type Storer interface {
	Size() int
	Read(buf []byte) error
	Write(buf []byte) error
}

type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// loadError read failure of the initial load, reported by every later call
type loadError struct {
	err error
}

func (e *loadError) Error() string { return ErrNotLoaded.Error() + ": " + e.err.Error() }

func (e *loadError) Is(target error) bool { return target == ErrNotLoaded }

func (e *loadError) Unwrap() error { return e.err }

// Manager owns the in-memory image, the bound codec and the write-back
type Manager struct {
	mu      sync.Mutex
	region  Storer
	img     Image
	codec   Codec
	state   State
	loadErr error
	fresh   bool
	table   []ItemSpec
	chain   *SetChain
	loadSFG singleflight.Group

	sugar *zap.SugaredLogger
}

type Option func(*Manager)

// WithDefaults replaces the compiled-in default table
func WithDefaults(table []ItemSpec) Option {
	return func(m *Manager) {
		if len(table) > 0 {
			m.table = table
		}
	}
}

// WithSetMiddleware attaches extra handlers after the built-in ones
func WithSetMiddleware(mw ...MiddlewareSetFunc) Option {
	return func(m *Manager) {
		m.chain.Attach(mw...)
	}
}

func New(region Storer, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		region: region,
		img:    NewImage(region.Size()),
		codec:  unsupportedCodec{reason: "not loaded"},
		table:  DefaultTable,
		chain:  NewSetChain(),
		sugar:  logger.Sugar(),
	}
	audit := NewAuditUnit(logger)
	m.chain.Attach(audit.SetMiddleware, MetricsMiddleware)

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open creates a manager and loads the image
func Open(region Storer, logger *zap.Logger, opts ...Option) (*Manager, error) {
	m := New(region, logger, opts...)
	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load reads the region, binds the codec and creates the defaults on first
// boot. It runs once; later calls report the first outcome.
func (m *Manager) Load() error {
	_, err, _ := m.loadSFG.Do("load", func() (interface{}, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		return nil, m.load()
	})
	return err
}

func (m *Manager) load() error {
	const msg = "Manager.load:"

	switch m.state {
	case StateReady:
		return nil
	case StateFailed:
		return m.loadErr
	}
	m.state = StateLoading

	if err := m.region.Read(m.img); err != nil {
		m.sugar.Errorw(msg+" failed to read idme from boot area", "error", err)
		m.img.zero()
		m.state = StateFailed
		m.loadErr = &loadError{err: err}
		return m.loadErr
	}

	m.fresh = !m.img.HasMagic()
	if m.fresh {
		m.sugar.Warnw(msg + " failed to find idme in boot area, generating default idme")
		m.img.stamp(DefaultVersion)
	}

	m.dispatch()
	m.state = StateReady

	if !m.fresh || !m.codec.Bound() {
		return nil
	}
	skipped, err := m.codec.BuildDefault(m.img, m.table)
	if err != nil {
		return err
	}
	for _, name := range skipped {
		m.sugar.Errorw(msg+" idme size is out of limit, item skipped", "item", name, "limit", len(m.img))
	}
	if err := m.writeBack(); err != nil {
		return fmt.Errorf("persist default idme: %w", err)
	}
	return nil
}

func (m *Manager) dispatch() {
	m.codec = SelectCodec(m.img.versionField())
	if m.codec.Bound() {
		m.sugar.Debugw("idme codec bound", "version", m.img.Version())
		return
	}
	reason := ""
	if u, ok := m.codec.(unsupportedCodec); ok {
		reason = u.Reason()
	}
	m.sugar.Warnw("idme codec unbound", "version", m.img.Version(), "reason", reason)
}

func (m *Manager) ready() error {
	switch m.state {
	case StateReady:
		return nil
	case StateFailed:
		return m.loadErr
	default:
		return ErrNotLoaded
	}
}

func (m *Manager) writeBack() error {
	start := time.Now()
	err := m.region.Write(m.img)
	metrics.WriteBack(start, err)
	if err != nil {
		m.sugar.Errorw("failed to write idme back", "error", err)
		return err
	}
	m.sugar.Debugw("idme written back", "bytes", len(m.img), "elapsed", time.Since(start))
	return nil
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Fresh reports whether the defaults were generated by Load
func (m *Manager) Fresh() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fresh
}

func (m *Manager) Codec() Codec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codec
}

// Version stored version string
func (m *Manager) Version() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.img.Version()
}

// Get copies the payload of name into buf and returns the bytes copied
func (m *Manager) Get(name string, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(); err != nil {
		return 0, err
	}
	return m.codec.Get(m.img, name, buf)
}

// GetString payload of name up to the first NUL
func (m *Manager) GetString(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(); err != nil {
		return "", err
	}
	return m.getString(name)
}

func (m *Manager) getString(name string) (string, error) {
	d, err := m.codec.Describe(m.img, name)
	if err != nil {
		return "", err
	}
	buf := make([]byte, d.Size)
	n, err := m.codec.Get(m.img, name, buf)
	if err != nil {
		return "", err
	}
	return cString(buf[:n]), nil
}

// Set updates name and persists the whole image. A codec failure leaves the
// medium untouched.
func (m *Manager) Set(name string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(); err != nil {
		return err
	}
	return m.set(name, value)
}

func (m *Manager) set(name string, value []byte) error {
	h := m.chain.then(SetHandlerFunc(func(req *SetRequest) error {
		if err := m.codec.Set(m.img, req.Name, req.Value); err != nil {
			return err
		}
		return m.writeBack()
	}))
	return h.Set(&SetRequest{Name: name, Value: value})
}

// Clean erases the whole image on the medium. The next load generates defaults.
func (m *Manager) Clean() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(); err != nil {
		return err
	}
	if !m.img.HasMagic() {
		return ErrInvalidMagic
	}
	m.sugar.Infow("cleaning idme")
	m.img.zero()
	return m.writeBack()
}

// SetVersion rewrites the stored version field with the table entry v resolves
// to, so the field always matches on the next load. The bound codec is kept
// until then.
func (m *Manager) SetVersion(v string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(); err != nil {
		return err
	}
	e, ok := MatchVersionArg(v)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVersion, v)
	}
	m.sugar.Infow("modifying idme version", "from", m.img.Version(), "arg", v, "to", e.Version)
	putPadded(m.img.versionField(), e.Version)
	return m.writeBack()
}

func (m *Manager) Describe(name string) (Desc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(); err != nil {
		return Desc{}, err
	}
	return m.codec.Describe(m.img, name)
}

func (m *Manager) Items() ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(); err != nil {
		return nil, err
	}
	return m.codec.Items(m.img)
}

func (m *Manager) Print(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(); err != nil {
		return err
	}
	return m.codec.Print(m.img, w)
}

func (m *Manager) ExportDeviceTree(tree DeviceTree) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(); err != nil {
		return err
	}
	return m.codec.ExportDeviceTree(tree, m.img)
}

func (m *Manager) ExportFlat(dst []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(); err != nil {
		return err
	}
	if dst == nil {
		return ErrNilBuffer
	}
	return m.codec.ExportFlat(dst, m.img)
}

// BootCountTick increments "bootcount" and persists it
func (m *Manager) BootCountTick() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(); err != nil {
		return 0, err
	}
	cur, err := m.getString("bootcount")
	if err != nil {
		m.sugar.Errorw("failed to read bootcount", "error", err)
		return 0, err
	}
	n := atoi([]byte(cur)) + 1
	if err := m.set("bootcount", []byte(fmt.Sprintf("%d", n))); err != nil {
		return 0, err
	}
	metrics.BootCount(n)
	return n, nil
}

func (m *Manager) BootMode() (BootMode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(); err != nil {
		return BootModeUnknown, err
	}
	v, err := m.getString("bootmode")
	if err != nil {
		return BootModeUnknown, err
	}
	return BootMode(atoi([]byte(v))), nil
}

// SerialNumber "serial" unless it is unset, else the medium PSN in hex
func (m *Manager) SerialNumber(psn uint32) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ready() == nil {
		if s, err := m.getString("serial"); err == nil && s != "" && s != "0" {
			return s
		}
	}
	return fmt.Sprintf("%x", psn)
}

// Snapshot copy of the in-memory image
func (m *Manager) Snapshot() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(); err != nil {
		return nil, err
	}
	out := make([]byte, len(m.img))
	copy(out, m.img)
	return out, nil
}

// Restore replaces the whole image, persists it and binds the codec again.
// It also recovers a manager whose initial load failed.
func (m *Manager) Restore(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateReady && m.state != StateFailed {
		return ErrNotLoaded
	}
	if len(data) != len(m.img) {
		return fmt.Errorf("%w: restore of %d bytes into a %d byte region", ErrCapacity, len(data), len(m.img))
	}

	copy(m.img, data)
	if err := m.writeBack(); err != nil {
		return err
	}
	m.state = StateReady
	m.loadErr = nil
	m.fresh = false
	m.dispatch()
	m.sugar.Infow("idme restored", "version", m.img.Version(), "items", m.img.ItemsNum())
	return nil
}
