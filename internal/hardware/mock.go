package hardware

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

// PinWrite is one recorded output write on a MockPins.
type PinWrite struct {
	Pin   int
	Level Level
}

type mockPin struct {
	dir      Direction
	level    Level
	edge     Edge
	callback func(pin int)
}

// MockPins is a thread-safe in-memory PinSet for testing and development.
// Its clock only moves when Advance is called.
type MockPins struct {
	mu        sync.Mutex
	pins      map[int]*mockPin
	writes    []PinWrite
	now       time.Time
	deb       *Debouncer
	failWrite bool
	cleanups  int
}

// NewMockPins creates an empty mock pin set.
func NewMockPins() *MockPins {
	m := &MockPins{
		pins: make(map[int]*mockPin),
		now:  time.Date(2015, 6, 20, 0, 0, 0, 0, time.UTC),
	}
	m.deb = NewDebouncer(m.clock)
	return m
}

func (m *MockPins) clock() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock clock forward.
func (m *MockPins) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// SetFailWrite configures the mock to fail all write operations.
func (m *MockPins) SetFailWrite(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite = fail
}

func (m *MockPins) Configure(pin int, dir Direction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pin < 0 {
		return &PinError{Pin: pin, Op: "configure", Reason: "no such pin"}
	}
	if p, ok := m.pins[pin]; ok {
		p.dir = dir
		return nil
	}
	m.pins[pin] = &mockPin{dir: dir}
	return nil
}

func (m *MockPins) Write(pin int, level Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pins[pin]
	if !ok || p.dir != Out {
		return &PinError{Pin: pin, Op: "write", Reason: "not configured as output"}
	}
	if m.failWrite {
		return ErrHardware("mock: write failure configured")
	}
	p.level = level
	m.writes = append(m.writes, PinWrite{Pin: pin, Level: level})
	return nil
}

func (m *MockPins) Read(pin int) (Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pins[pin]
	if !ok {
		return Low, &PinError{Pin: pin, Op: "read", Reason: "not configured"}
	}
	return p.level, nil
}

func (m *MockPins) WatchEdge(pin int, edge Edge, debounce time.Duration, callback func(pin int)) error {
	m.mu.Lock()
	p, ok := m.pins[pin]
	if !ok || p.dir != In {
		m.mu.Unlock()
		return &PinError{Pin: pin, Op: "watch", Reason: "not configured as input"}
	}
	if p.callback != nil {
		m.mu.Unlock()
		return &PinError{Pin: pin, Op: "watch", Reason: "already watched"}
	}
	p.edge = edge
	p.callback = callback
	m.mu.Unlock()
	m.deb.SetWindow(pin, debounce)
	return nil
}

func (m *MockPins) Cleanup() error {
	m.mu.Lock()
	pins := make([]int, 0, len(m.pins))
	for pin, p := range m.pins {
		p.dir = In
		p.level = Low
		p.callback = nil
		pins = append(pins, pin)
	}
	m.cleanups++
	m.mu.Unlock()
	for _, pin := range pins {
		m.deb.Forget(pin)
	}
	return nil
}

// SetLevel sets an input pin's level without generating an edge.
func (m *MockPins) SetLevel(pin int, level Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pins[pin]; ok {
		p.level = level
	}
}

// Trigger simulates a rising edge: the pin goes high and the watch callback
// runs synchronously if the debounce window allows it. Reports whether the
// callback ran.
func (m *MockPins) Trigger(pin int) bool {
	m.SetLevel(pin, High)
	return m.Fire(pin)
}

// Fire delivers an edge event on pin without touching its level.
func (m *MockPins) Fire(pin int) bool {
	m.mu.Lock()
	p, ok := m.pins[pin]
	var cb func(int)
	if ok {
		cb = p.callback
	}
	m.mu.Unlock()
	if cb == nil || !m.deb.Allow(pin) {
		return false
	}
	cb(pin)
	return true
}

// Writes returns every recorded output write in order.
func (m *MockPins) Writes() []PinWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PinWrite, len(m.writes))
	copy(out, m.writes)
	return out
}

// ResetWrites clears the write log.
func (m *MockPins) ResetWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
}

// Level returns the current level of pin, Low if unknown.
func (m *MockPins) Level(pin int) Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pins[pin]; ok {
		return p.level
	}
	return Low
}

// Direction returns the configured direction of pin.
func (m *MockPins) Direction(pin int) (Direction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pins[pin]
	if !ok {
		return In, false
	}
	return p.dir, true
}

// Watched reports whether pin has an edge callback registered.
func (m *MockPins) Watched(pin int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pins[pin]
	return ok && p.callback != nil
}

// Cleanups returns how many times Cleanup has been called.
func (m *MockPins) Cleanups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleanups
}

// MockI2C is an in-memory I2CBus. All handles bound to one address share a
// loopback buffer: bytes written become readable.
type MockI2C struct {
	mu        sync.Mutex
	loop      map[uint16]*bytes.Buffer
	written   map[uint16][]byte
	opens     map[uint16]int
	failOpen  bool
	failRead  bool
	failWrite bool
}

// NewMockI2C creates an empty mock bus.
func NewMockI2C() *MockI2C {
	return &MockI2C{
		loop:    make(map[uint16]*bytes.Buffer),
		written: make(map[uint16][]byte),
		opens:   make(map[uint16]int),
	}
}

// SetFailOpen configures the mock to fail all opens.
func (m *MockI2C) SetFailOpen(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOpen = fail
}

// SetFailRead configures the mock to fail all read operations.
func (m *MockI2C) SetFailRead(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRead = fail
}

// SetFailWrite configures the mock to fail all write operations.
func (m *MockI2C) SetFailWrite(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite = fail
}

func (m *MockI2C) OpenHandle(bus int, addr uint16) (I2CHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOpen {
		return nil, ErrHardware(fmt.Sprintf("mock: open %s failure configured", i2cDevPath(bus)))
	}
	if _, ok := m.loop[addr]; !ok {
		m.loop[addr] = new(bytes.Buffer)
	}
	m.opens[addr]++
	return &mockI2CHandle{bus: m, addr: addr}, nil
}

// Preload queues bytes that the next reads on addr will return.
func (m *MockI2C) Preload(addr uint16, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loop[addr]; !ok {
		m.loop[addr] = new(bytes.Buffer)
	}
	m.loop[addr].Write(data)
}

// Written returns every byte written to addr.
func (m *MockI2C) Written(addr uint16) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written[addr]...)
}

// Opens returns how many handles were opened for addr.
func (m *MockI2C) Opens(addr uint16) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens[addr]
}

type mockI2CHandle struct {
	bus    *MockI2C
	addr   uint16
	closed bool
}

func (h *mockI2CHandle) Read(p []byte) (int, error) {
	m := h.bus
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.closed {
		return 0, ErrHardware("mock: read on closed handle")
	}
	if m.failRead {
		return 0, ErrHardware("mock: read failure configured")
	}
	buf := m.loop[h.addr]
	if buf.Len() == 0 {
		return 0, io.EOF
	}
	return buf.Read(p)
}

func (h *mockI2CHandle) Write(p []byte) (int, error) {
	m := h.bus
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.closed {
		return 0, ErrHardware("mock: write on closed handle")
	}
	if m.failWrite {
		return 0, ErrHardware("mock: write failure configured")
	}
	m.written[h.addr] = append(m.written[h.addr], p...)
	return m.loop[h.addr].Write(p)
}

func (h *mockI2CHandle) Close() error {
	h.bus.mu.Lock()
	defer h.bus.mu.Unlock()
	h.closed = true
	return nil
}

// MockSerial is an in-memory SerialPort. Reads never block: with nothing
// queued they return 0, nil like a timed-out read.
type MockSerial struct {
	mu        sync.Mutex
	inbound   bytes.Buffer
	written   []byte
	responder func(written []byte) []byte
	timeout   time.Duration
	closed    bool
	failRead  bool
	failWrite bool
}

// NewMockSerial creates a mock port. responder, if non-nil, is called for
// every Write and its result is queued as inbound data.
func NewMockSerial(responder func(written []byte) []byte) *MockSerial {
	return &MockSerial{responder: responder}
}

// SetFailRead configures the mock to fail all read operations.
func (m *MockSerial) SetFailRead(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRead = fail
}

// SetFailWrite configures the mock to fail all write operations.
func (m *MockSerial) SetFailWrite(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite = fail
}

// Queue appends inbound bytes.
func (m *MockSerial) Queue(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound.Write(data)
}

func (m *MockSerial) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrHardware("mock: read on closed port")
	}
	if m.failRead {
		return 0, ErrHardware("mock: read failure configured")
	}
	if m.inbound.Len() == 0 {
		return 0, nil
	}
	return m.inbound.Read(p)
}

func (m *MockSerial) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrHardware("mock: write on closed port")
	}
	if m.failWrite {
		return 0, ErrHardware("mock: write failure configured")
	}
	m.written = append(m.written, p...)
	if m.responder != nil {
		m.inbound.Write(m.responder(p))
	}
	return len(p), nil
}

func (m *MockSerial) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = t
	return nil
}

func (m *MockSerial) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound.Reset()
	return nil
}

func (m *MockSerial) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Written returns every byte written to the port.
func (m *MockSerial) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written...)
}

// Timeout returns the last read timeout set.
func (m *MockSerial) Timeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeout
}

// Closed reports whether Close was called.
func (m *MockSerial) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var (
	_ PinSet     = (*MockPins)(nil)
	_ I2CBus     = (*MockI2C)(nil)
	_ SerialPort = (*MockSerial)(nil)
)

// HardwareError is returned when a hardware operation fails.
type HardwareError struct {
	msg string
}

func (e HardwareError) Error() string { return e.msg }

// ErrHardware creates a new hardware error.
func ErrHardware(msg string) error { return HardwareError{msg: msg} }
