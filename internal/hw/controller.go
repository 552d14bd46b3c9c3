// Package hw defines the lower-half interface the upper-half driver calls
// into, mirroring the separation go-ublk draws between its public facade
// and internal/interfaces.Backend: the thing above never reaches past this
// interface into a concrete hardware driver.
package hw

import "github.com/canbus/candev/frame"

// Controller is the lower-half hardware driver interface (spec.md §6).
// Every method may fail with a wrapped negative error code; the upper
// half never inspects hardware registers directly.
type Controller interface {
	// Setup brings the controller out of reset and arms it for traffic.
	// Called once per "first open", with interrupts masked.
	Setup() error
	// Shutdown quiesces the controller. Called once per "last close".
	Shutdown() error
	// Reset performs a full hardware reset, out of band from open/close.
	Reset() error

	// RXInt enables or disables the receive-interrupt source.
	RXInt(enable bool) error
	// TXInt enables or disables the transmit-completion-interrupt source.
	TXInt(enable bool) error

	// TXReady reports whether the hardware can currently accept a frame
	// for transmission (e.g. the hardware FIFO is not full).
	TXReady() bool
	// TXEmpty reports whether the hardware has finished transmitting
	// everything handed to it.
	TXEmpty() bool

	// Send hands one frame to the hardware for transmission. May
	// synchronously invoke the registered txdone callback before
	// returning, per spec.md §4.B's advance-before-send ordering.
	Send(msg *frame.Msg) error

	// RemoteRequest asks the bus for a frame with the given identifier,
	// on behalf of a pending RTR registration.
	RemoteRequest(id uint32) error

	// IOCtl forwards any command candev's facade does not recognize.
	IOCtl(cmd uint32, arg uintptr) (int, error)
}

// Logger is the narrow logging surface candev.Config accepts, satisfied
// by *internal/logging.Logger.
type Logger interface {
	Printf(format string, args ...any)
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Observer receives metrics events from the device's facade and
// interrupt-side callbacks. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveFrameSent(latencyNs uint64)
	ObserveFrameReceived()
	ObserveFrameDropped()
	ObserveRTRResolved(latencyNs uint64)
	ObserveTXBlocked()
}

// NoOpObserver discards every event. It is not a default: a Device given
// no Observer reports to a Metrics-backed observer instead.
type NoOpObserver struct{}

func (NoOpObserver) ObserveFrameSent(uint64)     {}
func (NoOpObserver) ObserveFrameReceived()        {}
func (NoOpObserver) ObserveFrameDropped()         {}
func (NoOpObserver) ObserveRTRResolved(uint64)    {}
func (NoOpObserver) ObserveTXBlocked()            {}
