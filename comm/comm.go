package comm

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

const DefaultSettleDelay = 100 * time.Millisecond

type DispatcherState int

const (
	Idle DispatcherState = iota
	Open
	Running
	Draining
	Closed
)

func (s DispatcherState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Open:
		return "open"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("DispatcherState(%d)", int(s))
	}
}

// Opener opens the transport for a port configuration.
type Opener func(PortConfig) (Transport, error)

type Option func(*Dispatcher)

// WithLogger sets the logger failures and lifecycle events are reported to. Without
// it nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithSettleDelay overrides the pause between writing a command byte and reading the
// answer.
func WithSettleDelay(delay time.Duration) Option {
	return func(d *Dispatcher) {
		if delay >= 0 {
			d.settle = delay
		}
	}
}

func WithOpener(open Opener) Option {
	return func(d *Dispatcher) {
		if open != nil {
			d.open = open
		}
	}
}

// Dispatcher serializes all access to the relay board. Commands pushed to the input
// queue are executed one at a time in order, and each produces one Result on the
// output queue. Commands without a valid action are logged and dropped.
type Dispatcher struct {
	cfg    PortConfig
	open   Opener
	logger *slog.Logger
	settle time.Duration

	// mu guards state, in, out, stop and done.
	mu    sync.Mutex
	state DispatcherState
	in    chan Command
	out   chan Result
	stop  chan struct{}
	done  chan struct{}

	// exchangeMu guards transport and keeps one exchange on the wire at a time.
	exchangeMu sync.Mutex
	transport  Transport

	// worker only
	seq uint64
}

func openSerial(cfg PortConfig) (Transport, error) {
	t, err := OpenSerial(cfg)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func NewDispatcher(cfg PortConfig, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:    cfg.withDefaults(),
		open:   openSerial,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		settle: DefaultSettleDelay,
		state:  Idle,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) State() DispatcherState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Setup opens the transport. On failure the dispatcher stays idle and holds no handle.
func (d *Dispatcher) Setup() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Idle {
		return fmt.Errorf("setup: dispatcher is %s", d.state)
	}
	t, err := d.open(d.cfg)
	if err != nil {
		var openErr *OpenError
		if !errors.As(err, &openErr) {
			err = &OpenError{Device: d.cfg.Device, Err: err}
		}
		return err
	}
	d.exchangeMu.Lock()
	d.transport = t
	d.exchangeMu.Unlock()
	d.state = Open
	d.logger.Info("serial port open", "device", d.cfg.Device, "baud", d.cfg.Baud)
	return nil
}

// Open sets the device and baud rate (zero values keep the configured ones) and opens
// the transport. Failures are logged and reported as false.
func (d *Dispatcher) Open(device string, baud int) bool {
	d.mu.Lock()
	if device != "" {
		d.cfg.Device = device
	}
	if baud > 0 {
		d.cfg.Baud = baud
	}
	cfg := d.cfg
	d.mu.Unlock()

	if err := d.Setup(); err != nil {
		d.logger.Error("could not open serial port", "device", cfg.Device, "baud", cfg.Baud, "error", err)
		return false
	}
	return true
}

func (d *Dispatcher) AttachInputQueue(q chan Command) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state >= Running {
		d.logger.Warn("ignoring input queue attached after start", "state", d.state)
		return
	}
	d.in = q
}

func (d *Dispatcher) AttachOutputQueue(q chan Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state >= Running {
		d.logger.Warn("ignoring output queue attached after start", "state", d.state)
		return
	}
	d.out = q
}

// Start launches the worker. The transport must be open and both queues attached.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case Idle:
		return ErrNotOpen
	case Running:
		return ErrAlreadyStarted
	case Draining, Closed:
		return ErrStopped
	}
	if d.in == nil || d.out == nil {
		return ErrQueuesNotAttached
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	d.state = Running
	go d.run(d.in, d.out, d.stop, d.done)
	d.logger.Debug("dispatcher started")
	return nil
}

// Stop signals the worker, waits for the command in flight to complete, discards
// everything still queued and closes the transport. Calling it again is a no-op.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Draining || d.state == Closed {
		return
	}
	wasRunning := d.state == Running
	d.state = Draining
	if wasRunning {
		close(d.stop)
		<-d.done
	}
	discarded := d.purge()

	d.exchangeMu.Lock()
	if d.transport != nil {
		if err := d.transport.Close(); err != nil {
			d.logger.Warn("closing serial port failed", "error", err)
		}
		d.transport = nil
	}
	d.exchangeMu.Unlock()

	d.state = Closed
	d.logger.Info("dispatcher closed", "discarded", discarded)
}

func (d *Dispatcher) purge() int {
	if d.in == nil {
		return 0
	}
	n := 0
	for {
		select {
		case cmd := <-d.in:
			d.logger.Debug("discarding queued command", "command", cmd)
			n++
		default:
			return n
		}
	}
}

func (d *Dispatcher) run(in <-chan Command, out chan<- Result, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case cmd := <-in:
			select {
			case <-stop:
				d.logger.Debug("discarding command received during shutdown", "command", cmd)
				return
			default:
			}

			res, ok := d.dispatch(cmd)
			if !ok {
				continue
			}
			select {
			case out <- res:
				continue
			default:
			}
			select {
			case out <- res:
			case <-stop:
				d.logger.Warn("dropping result, dispatcher is stopping", "command", cmd, "seq", res.Seq)
				return
			}
		}
	}
}

// dispatch executes one command. It returns false when the command was rejected and
// nothing must be published for it.
func (d *Dispatcher) dispatch(cmd Command) (Result, bool) {
	if !cmd.action.valid() {
		err := &ProtocolError{Reason: "invalid action", Action: cmd.action.String(), Content: cmd.symbol.String()}
		d.logger.Error("rejecting command", "error", err)
		return Result{}, false
	}

	d.seq++
	res := Result{Command: cmd, Seq: d.seq}
	op, err := resolve(cmd)
	if err != nil {
		d.logger.Error("could not resolve command", "seq", res.Seq, "error", err)
		res.Err = err
		return res, true
	}

	res.Data, res.Written, res.Err = d.exchange(op)
	if res.Err != nil {
		d.logger.Error("command failed", "command", cmd, "seq", res.Seq, "error", res.Err)
	} else {
		d.logger.Debug("command done", "command", cmd, "seq", res.Seq, "written", res.Written, "data", fmt.Sprintf("% x", res.Data))
	}
	return res, true
}

// operation is the fixed exchange a symbol resolves to: write code, settle, read
// responseLength bytes.
type operation struct {
	symbol         Symbol
	code           byte
	responseLength int
}

func resolve(cmd Command) (operation, error) {
	meta, ok := symbols[cmd.symbol]
	if !ok {
		return operation{}, &ProtocolError{Reason: "unresolvable symbol", Action: cmd.action.String(), Content: cmd.symbol.String()}
	}
	if (cmd.action == SetState) != (meta.kind == stateKind) {
		return operation{}, &ProtocolError{Reason: "symbol does not match action", Action: cmd.action.String(), Content: meta.name}
	}
	return operation{symbol: cmd.symbol, code: meta.code, responseLength: meta.responseLength}, nil
}

func asIoError(op string, err error) error {
	var ioErr *IoError
	if errors.As(err, &ioErr) {
		return err
	}
	return &IoError{Op: op, Err: err}
}

func (d *Dispatcher) exchange(op operation) (data []byte, written int, err error) {
	d.exchangeMu.Lock()
	defer d.exchangeMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("exchange %s panicked: %v", op.symbol, r)
		}
	}()

	if d.transport == nil {
		return nil, 0, ErrNotOpen
	}
	written, err = d.transport.Write([]byte{op.code})
	if err != nil {
		return nil, written, asIoError("write", err)
	}
	time.Sleep(d.settle)
	if op.responseLength == 0 {
		return nil, written, nil
	}
	data, err = d.transport.ReadExact(op.responseLength)
	if err != nil {
		return data, written, asIoError("read", err)
	}
	return data, written, nil
}

func (d *Dispatcher) query(s Symbol) ([]byte, error) {
	cmd, err := NewQueryCommand(s)
	if err != nil {
		return nil, err
	}
	op, err := resolve(cmd)
	if err != nil {
		return nil, err
	}
	data, _, err := d.exchange(op)
	return data, err
}

// QueryVersion asks the board for its two version bytes, bypassing the queues.
func (d *Dispatcher) QueryVersion() ([]byte, error) {
	return d.query(Version)
}

// QueryStatus asks the board for its relay status byte, bypassing the queues.
func (d *Dispatcher) QueryStatus() ([]byte, error) {
	return d.query(Status)
}

// SetState writes a state symbol directly and returns the write count. The board
// doesn't acknowledge state changes.
func (d *Dispatcher) SetState(s Symbol) (int, error) {
	cmd, err := NewSetStateCommand(s)
	if err != nil {
		return 0, err
	}
	op, err := resolve(cmd)
	if err != nil {
		return 0, err
	}
	_, written, err := d.exchange(op)
	return written, err
}
