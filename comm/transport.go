package comm

import (
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/tarm/serial"
)

const (
	DefaultBaud     = 115200
	DefaultDataBits = 8
)

// Transport is the open serial connection. Implementations are not safe for concurrent
// use; the dispatcher serializes every exchange.
type Transport interface {
	Write(p []byte) (int, error)
	ReadExact(n int) ([]byte, error)
	Close() error
}

type PortConfig struct {
	Device string
	Baud   int
	// ReadTimeout bounds each read. Zero blocks until the board answers.
	ReadTimeout time.Duration
}

// DefaultDevice is the usual path of the board's ACM device on this platform.
func DefaultDevice() string {
	switch runtime.GOOS {
	case "windows":
		return "COM3"
	case "darwin":
		return "/dev/tty.usbmodem1"
	default:
		return "/dev/ttyACM0"
	}
}

func (c PortConfig) withDefaults() PortConfig {
	if c.Device == "" {
		c.Device = DefaultDevice()
	}
	if c.Baud <= 0 {
		c.Baud = DefaultBaud
	}
	return c
}

// port is the subset of *serial.Port used here.
type port interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error
}

type SerialTransport struct {
	device    string
	conn      port
	closeOnce sync.Once
	closeErr  error
}

// OpenSerial opens the device with 8 data bits, no parity and one stop bit.
func OpenSerial(cfg PortConfig) (*SerialTransport, error) {
	cfg = cfg.withDefaults()
	conn, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
		Size:        DefaultDataBits,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
	if err != nil {
		return nil, &OpenError{Device: cfg.Device, Err: err}
	}
	return newSerialTransport(cfg.Device, conn), nil
}

func newSerialTransport(device string, conn port) *SerialTransport {
	return &SerialTransport{device: device, conn: conn}
}

func (t *SerialTransport) Device() string {
	return t.device
}

func (t *SerialTransport) Write(p []byte) (int, error) {
	n, err := t.conn.Write(p)
	if err != nil {
		return n, &IoError{Op: "write", Err: err}
	}
	return n, nil
}

// ReadExact blocks until n bytes arrived. A read timeout that hits before that is
// reported as an IoError wrapping io.EOF or io.ErrUnexpectedEOF.
func (t *SerialTransport) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(t.conn, buf)
	if err != nil {
		return buf[:read], &IoError{Op: "read", Err: err}
	}
	return buf, nil
}

func (t *SerialTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
