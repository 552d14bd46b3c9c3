package candev

import (
	"time"

	"github.com/canbus/candev/frame"
)

// Receive is the interrupt-side callback the lower half invokes for every
// inbound frame (spec.md §4.G). It tries RTR rendezvous first; only a
// frame matching no pending RTR registration enters the RX ring.
func (d *Device) Receive(msg *frame.Msg) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.receiveLocked(msg)
}

// receiveLocked is Receive's body, for a lower half that delivers a frame
// from inside a call that already holds d.mu (e.g. a loopback Send).
func (d *Device) receiveLocked(msg *frame.Msg) error {
	if latencies := d.rtrTable.Resolve(msg); len(latencies) > 0 {
		for _, lat := range latencies {
			d.logger.Debugf("rtr resolved id=%#x latency=%s", msg.Header.ID, lat)
			if d.observer != nil {
				d.observer.ObserveRTRResolved(uint64(lat.Nanoseconds()))
			}
		}
		return nil
	}

	if d.rx.TryPush(msg) {
		d.logger.Debugf("rx frame id=%#x dlc=%d ext=%t rtr=%t", msg.Header.ID, msg.Header.DLC, msg.Header.ExtID, msg.Header.RTR)
		if d.observer != nil {
			d.observer.ObserveFrameReceived()
		}
		if d.nRXWaiters > 0 {
			d.rx.Wake.Post()
		}
		return nil
	}

	d.errorLatch |= rxOverflowBit
	d.logger.Warnf("rx ring full, dropping frame id=%#x", msg.Header.ID)
	if d.observer != nil {
		d.observer.ObserveFrameDropped()
	}
	return NewError("receive", CodeOverflow, "rx ring full")
}

// TxDone is the interrupt-side callback the lower half invokes when
// hardware finishes transmitting the oldest in-flight frame.
func (d *Device) TxDone() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.txDoneLocked()
}

func (d *Device) txDoneLocked() error {
	if d.tx.Empty() {
		return NewError("txdone", CodeLowerHalf, "tx ring empty, nothing to ack")
	}

	if msg, ok := d.tx.PeekHead(); ok {
		if sentAt, tracked := d.txSendTimes[msg]; tracked {
			latency := time.Since(sentAt)
			d.metrics.RecordSend(msg.Len(d.canFD), uint64(latency))
			d.logger.Debugf("tx acked id=%#x latency=%s", msg.Header.ID, latency)
			delete(d.txSendTimes, msg)
		}
	}

	if err := d.tx.AckOne(); err != nil {
		return WrapError("txdone", err)
	}

	_ = d.canXmitLocked()

	if d.nTXWaiters > 0 {
		d.tx.Wake.Post()
	}
	return nil
}

// TxReady is the interrupt-side callback for hardware-FIFO controllers:
// it schedules the deferred txready work rather than draining the ring
// itself, since it runs at interrupt level (spec.md §4.G/§9).
func (d *Device) TxReady() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.txReadyEnabled {
		return nil
	}
	if d.tx.Empty() {
		return nil
	}
	if !d.work.Schedule(d.txReadyWork) {
		return NewError("txready", CodeBusy, "deferred work already scheduled")
	}
	return nil
}

// txReadyWork runs outside interrupt context, re-invoking can_xmit now
// that the scheduler can mask/unmask interrupts around the call.
func (d *Device) txReadyWork() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tx.Empty() {
		return
	}
	if err := d.canXmitLocked(); err == nil && d.nTXWaiters > 0 {
		d.tx.Wake.Post()
	}
}

// canXmitLocked drains queue..tail into the hardware while it reports
// ready, recording a send timestamp per slot for TxDone's latency
// metric. The caller must already hold d.mu.
func (d *Device) canXmitLocked() error {
	if d.tx.Empty() {
		if !d.txReadyEnabled {
			if err := d.hwctl.TXInt(false); err != nil {
				return WrapError("can_xmit", err)
			}
		}
		return nil
	}

	for d.hwctl.TXReady() {
		msg, ok := d.tx.DrainOneForHW()
		if !ok {
			break
		}
		d.txSendTimes[msg] = time.Now()
		d.logger.Debugf("tx dispatch id=%#x dlc=%d", msg.Header.ID, msg.Header.DLC)
		if err := d.hwctl.Send(msg); err != nil {
			return WrapError("can_xmit", err)
		}
	}

	if err := d.hwctl.TXInt(true); err != nil {
		return WrapError("can_xmit", err)
	}
	return nil
}
