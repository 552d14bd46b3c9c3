package candev

import (
	"sync"
	"time"

	"github.com/canbus/candev/frame"
	"github.com/canbus/candev/internal/hw"
	"github.com/canbus/candev/internal/logging"
	"github.com/canbus/candev/internal/ring"
	"github.com/canbus/candev/internal/rtr"
	"github.com/canbus/candev/internal/sema"
	"github.com/canbus/candev/internal/work"
)

// rxOverflowBit is the error_latch bit set when the RX ring drops a frame.
const rxOverflowBit uint8 = 1 << 0

// Config configures a Device. Backend is the only required field; every
// other field has a usable zero-equivalent supplied by DefaultConfig.
type Config struct {
	// Backend is the lower-half hardware driver. Required.
	Backend hw.Controller

	// NTX, NRX are ring capacities; both must be >= 2.
	NTX, NRX int
	// NRTR is the pending-RTR table size.
	NRTR int

	// CANFD selects the extended CAN-FD DLC table.
	CANFD bool
	// ExtID enables the 29-bit extended identifier flag.
	ExtID bool
	// Errors enables the error latch and synthesized error frames.
	Errors bool
	// TXReady enables the deferred txready work handoff. WorkExec is
	// required when this is set.
	TXReady bool
	// WorkExec schedules txready's deferred work. Required iff TXReady.
	WorkExec work.Executor

	// DisableSignals shortens close's drain poll interval from a 500 ms
	// sleep to a 1 ms sleep.
	DisableSignals bool

	// Logger receives facade and interrupt-side trace output. Defaults
	// to a Warn-level stderr logger.
	Logger hw.Logger
	// Observer receives metrics events. Defaults to a Metrics-backed
	// observer reachable via Device.Metrics().
	Observer hw.Observer

	// Path is an optional caller-supplied identifier (e.g. "/dev/can0")
	// surfaced on Device.Path. Candev never touches a filesystem itself;
	// this is bookkeeping for a caller that registers the device node
	// out of band.
	Path string
}

// DefaultConfig returns a Config wired to backend with N_TX=N_RX=16,
// N_RTR=4, CAN-FD and extended IDs on, errors on, TXReady off.
func DefaultConfig(backend hw.Controller) Config {
	return Config{
		Backend: backend,
		NTX:     16,
		NRX:     16,
		NRTR:    4,
		CANFD:   true,
		ExtID:   true,
		Errors:  true,
	}
}

// Device is the upper-half character-device driver state: the two
// rings, the RTR table, and the bookkeeping counters spec.md §3
// enumerates. Device.mu is the Go stand-in for "interrupts globally
// masked": every public entry point acquires it, and internal call
// chains that must invoke another masked operation while already
// holding it call the unexported *Locked sibling instead of
// re-acquiring, since sync.Mutex is not reentrant.
type Device struct {
	// Path is the caller-supplied device-node identifier from Config, if
	// any. It is set once at construction and never mutated afterward,
	// so it is safe to read without holding mu.
	Path string

	mu      sync.Mutex
	closeMu *sema.CtxMutex

	hwctl    hw.Controller
	logger   hw.Logger
	observer hw.Observer
	work     work.Executor

	tx       *ring.TX
	rx       *ring.RX
	rtrTable *rtr.Table

	openCount  uint8
	nRXWaiters uint32
	nTXWaiters uint32
	errorLatch uint8

	canFD          bool
	extID          bool
	errorsEnabled  bool
	txReadyEnabled bool
	disableSignals bool

	metrics *Metrics

	// txSendTimes tracks per-slot send timestamps keyed by the ring
	// slot's address, stamped when canXmitLocked hands the slot to the
	// hardware and consumed by TxDone to compute send-to-ack latency. Protected by mu, same as everything else cursor-adjacent.
	txSendTimes map[*frame.Msg]time.Time
}

// NewDevice allocates a Device per cfg. It does not touch hardware; that
// happens on the first Open, per spec.md §3's Lifecycle.
func NewDevice(cfg Config) (*Device, error) {
	if cfg.Backend == nil {
		return nil, NewError("NewDevice", CodeLowerHalf, "Backend is required")
	}
	if cfg.NTX < 2 || cfg.NRX < 2 {
		return nil, NewError("NewDevice", CodeLowerHalf, "NTX and NRX must be >= 2")
	}
	if cfg.NRTR < 1 {
		cfg.NRTR = 1
	}
	if cfg.TXReady && cfg.WorkExec == nil {
		return nil, NewError("NewDevice", CodeLowerHalf, "WorkExec is required when TXReady is enabled")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger(&logging.Config{Level: logging.LevelWarn})
	}

	metrics := NewMetrics()
	observer := cfg.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	d := &Device{
		Path:           cfg.Path,
		closeMu:        sema.NewCtxMutex(),
		hwctl:          cfg.Backend,
		logger:         logger,
		observer:       observer,
		work:           cfg.WorkExec,
		tx:             ring.NewTX(cfg.NTX),
		rx:             ring.NewRX(cfg.NRX),
		rtrTable:       rtr.New(cfg.NRTR),
		canFD:          cfg.CANFD,
		extID:          cfg.ExtID,
		errorsEnabled:  cfg.Errors,
		txReadyEnabled: cfg.TXReady,
		disableSignals: cfg.DisableSignals,
		metrics:        metrics,
		txSendTimes:    make(map[*frame.Msg]time.Time),
	}
	return d, nil
}

// Metrics returns the Device's built-in metrics collector. It is always
// non-nil. TxDone records sent frames and TX latency here directly; the
// other events reach it only if cfg.Observer was left nil.
func (d *Device) Metrics() *Metrics { return d.metrics }

// MetricsSnapshot is a convenience for d.Metrics().Snapshot().
func (d *Device) MetricsSnapshot() MetricsSnapshot { return d.metrics.Snapshot() }

func (d *Device) sleepCloseInterval() {
	if d.disableSignals {
		time.Sleep(time.Millisecond)
		return
	}
	time.Sleep(500 * time.Millisecond)
}
