package shield

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/micro-nova/piblinker-go/internal/hardware"
)

const (
	maxAddr      = 0x7F
	maxOpsPerSec = 500
)

type device struct {
	bus int
	rd  hardware.I2CHandle
	wr  hardware.I2CHandle
}

// Registry keeps one read/write handle pair per open 7-bit address.
// Misuse (double open, unknown address, bad frame) is logged as a warning
// and returned as a recoverable error; transport faults are returned as
// *IOError. A Registry is meant for a single caller; concurrent transfers
// must be serialized by the caller.
type Registry struct {
	mu      sync.Mutex
	bus     hardware.I2CBus
	devices map[uint16]*device
	limiter *rate.Limiter
	log     *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithRateLimit caps bus transfers per second. Zero or negative disables
// limiting.
func WithRateLimit(opsPerSec int) Option {
	return func(r *Registry) {
		if opsPerSec <= 0 {
			r.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		r.limiter = rate.NewLimiter(rate.Limit(opsPerSec), 10)
	}
}

// WithLogger sets the logger for registry warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// NewRegistry returns an empty registry opening handles through bus.
func NewRegistry(bus hardware.I2CBus, opts ...Option) *Registry {
	r := &Registry{
		bus:     bus,
		devices: make(map[uint16]*device),
		limiter: rate.NewLimiter(rate.Limit(maxOpsPerSec), 10),
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Open binds a read and a write handle to addr on the given adapter.
// Opening an address that is already open logs a warning and returns nil
// without creating new handles.
func (r *Registry) Open(ctx context.Context, addr uint16, bus int) error {
	if addr > maxAddr {
		r.log.Warn("shield: invalid address", "addr", hexAddr(addr), "err", ErrBadAddress)
		return fmt.Errorf("%w: 0x%02x", ErrBadAddress, addr)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[addr]; ok {
		r.log.Warn("shield: device already open", "addr", hexAddr(addr), "err", ErrDeviceBusy)
		return nil
	}
	rd, err := r.bus.OpenHandle(bus, addr)
	if err != nil {
		return &IOError{Op: "open", Addr: addr, Err: err}
	}
	wr, err := r.bus.OpenHandle(bus, addr)
	if err != nil {
		rd.Close()
		return &IOError{Op: "open", Addr: addr, Err: err}
	}
	r.devices[addr] = &device{bus: bus, rd: rd, wr: wr}
	r.log.Info("shield: device opened", "addr", hexAddr(addr), "bus", bus)
	return nil
}

// IsOpen reports whether addr has an open entry.
func (r *Registry) IsOpen(addr uint16) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.devices[addr]
	return ok
}

// Addresses returns the open addresses in ascending order.
func (r *Registry) Addresses() []uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint16, 0, len(r.devices))
	for a := range r.devices {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) lookup(op string, addr uint16) (*device, error) {
	r.mu.Lock()
	dev, ok := r.devices[addr]
	r.mu.Unlock()
	if !ok {
		r.log.Warn("shield: device not open", "op", op, "addr", hexAddr(addr))
		return nil, fmt.Errorf("%w: %s 0x%02x", ErrUnknownDevice, op, addr)
	}
	return dev, nil
}

// WriteAs packs values per layout and writes the frame to addr.
func (r *Registry) WriteAs(ctx context.Context, addr uint16, layout Layout, values ...int64) error {
	dev, err := r.lookup("write", addr)
	if err != nil {
		return err
	}
	data, err := layout.Pack(values...)
	if err != nil {
		r.log.Warn("shield: cannot pack frame", "addr", hexAddr(addr), "err", err)
		return err
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	n, err := dev.wr.Write(data)
	if err != nil {
		return &IOError{Op: "write", Addr: addr, Err: err}
	}
	if n != len(data) {
		return &IOError{Op: "write", Addr: addr, Err: io.ErrShortWrite}
	}
	r.log.Debug("shield: wrote frame", "addr", hexAddr(addr), "layout", layout.String(), "bytes", fmt.Sprintf("% x", data))
	return nil
}

// ReadAs reads exactly byteCount bytes from addr and unpacks them per
// layout. byteCount must equal layout.Size().
func (r *Registry) ReadAs(ctx context.Context, addr uint16, layout Layout, byteCount int) ([]int64, error) {
	dev, err := r.lookup("read", addr)
	if err != nil {
		return nil, err
	}
	if byteCount != layout.Size() {
		err := &FrameError{Layout: layout.String(), Reason: fmt.Sprintf("read of %d bytes, layout needs %d", byteCount, layout.Size())}
		r.log.Warn("shield: cannot unpack frame", "addr", hexAddr(addr), "err", err)
		return nil, err
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	buf := make([]byte, byteCount)
	if _, err := io.ReadFull(dev.rd, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &IOError{Op: "read", Addr: addr, Err: err}
	}
	return layout.Unpack(buf)
}

// ReadSample reads the 2-byte big-endian muxed sample register.
func (r *Registry) ReadSample(ctx context.Context, addr uint16) (Sample, error) {
	vals, err := r.ReadAs(ctx, addr, U16BE, 2)
	if err != nil {
		return 0, err
	}
	return Sample(vals[0]), nil
}

// ReadADC returns the 10-bit analog component of a fresh sample.
func (r *Registry) ReadADC(ctx context.Context, addr uint16) (uint16, error) {
	s, err := r.ReadSample(ctx, addr)
	if err != nil {
		return 0, err
	}
	return s.ADC(), nil
}

// ReadPin returns the digital pin component of a fresh sample.
func (r *Registry) ReadPin(ctx context.Context, addr uint16) (uint8, error) {
	s, err := r.ReadSample(ctx, addr)
	if err != nil {
		return 0, err
	}
	return s.Pin(), nil
}

// Close drops both handles for addr and removes its entry. The entry is
// removed even if closing a handle fails.
func (r *Registry) Close(addr uint16) error {
	r.mu.Lock()
	dev, ok := r.devices[addr]
	delete(r.devices, addr)
	r.mu.Unlock()
	if !ok {
		r.log.Warn("shield: device not open", "op", "close", "addr", hexAddr(addr))
		return fmt.Errorf("%w: close 0x%02x", ErrUnknownDevice, addr)
	}
	errR := dev.rd.Close()
	errW := dev.wr.Close()
	if err := errors.Join(errR, errW); err != nil {
		return &IOError{Op: "close", Addr: addr, Err: err}
	}
	r.log.Info("shield: device closed", "addr", hexAddr(addr))
	return nil
}

// CloseAll closes every open device.
func (r *Registry) CloseAll() error {
	var errs []error
	for _, addr := range r.Addresses() {
		if err := r.Close(addr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func hexAddr(addr uint16) string {
	return fmt.Sprintf("0x%02x", addr)
}
