package candev

import (
	"context"

	"github.com/canbus/candev/frame"
)

// Read implements spec.md §4.F's read body. nonBlocking mirrors an
// O_NONBLOCK file handle: on an empty RX ring it returns CodeWouldBlock
// instead of waiting.
func (d *Device) Read(ctx context.Context, buf []byte, nonBlocking bool) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(buf) < frame.MinMsgLen {
		return 0, nil
	}

	if d.errorsEnabled && d.errorLatch != 0 {
		ef := frame.NewErrorFrame(d.errorLatch)
		n := ef.Len(d.canFD)
		if len(buf) < n {
			return 0, nil
		}
		d.errorLatch = 0
		copy(buf, frame.Marshal(ef, d.canFD))
		return n, nil
	}

	for d.rx.Empty() {
		if nonBlocking {
			return 0, NewError("Read", CodeWouldBlock, "rx ring empty")
		}

		d.nRXWaiters++
		d.mu.Unlock()
		err := d.rx.Wake.Wait(ctx)
		d.mu.Lock()
		d.nRXWaiters--

		if err != nil {
			return 0, NewError("Read", CodeInterrupted, err.Error())
		}
	}

	total := 0
	for {
		msg, ok := d.rx.Front()
		if !ok {
			break
		}
		n := msg.Len(d.canFD)
		if total+n > len(buf) {
			break
		}
		copy(buf[total:total+n], frame.Marshal(msg, d.canFD))
		d.rx.PopOne()
		total += n
	}
	return total, nil
}

// Write implements spec.md §4.F's write body: buf holds zero or more
// frames serialized back to back. nonBlocking mirrors an O_NONBLOCK file
// handle.
func (d *Device) Write(ctx context.Context, buf []byte, nonBlocking bool) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	inactive := d.hwctl.TXEmpty()
	nsent := 0

	for len(buf)-nsent >= frame.MinMsgLen {
		if d.tx.Full() {
			if nonBlocking {
				if nsent == 0 {
					return 0, NewError("Write", CodeWouldBlock, "tx ring full")
				}
				return nsent, nil
			}

			if inactive {
				_ = d.canXmitLocked()
			}

			d.nTXWaiters++
			if d.observer != nil {
				d.observer.ObserveTXBlocked()
			}
			d.mu.Unlock()
			err := d.tx.Wake.Wait(ctx)
			d.mu.Lock()
			d.nTXWaiters--

			if err != nil {
				return nsent, NewError("Write", CodeInterrupted, err.Error())
			}
			inactive = d.hwctl.TXEmpty()
			continue
		}

		msg, err := frame.Unmarshal(buf[nsent:], d.canFD)
		if err != nil {
			break
		}
		if err := d.tx.Enqueue(msg); err != nil {
			return nsent, WrapError("Write", err)
		}
		nsent += msg.Len(d.canFD)
	}

	if inactive {
		_ = d.canXmitLocked()
	}
	return nsent, nil
}

// RTRCommand is the only ioctl command candev's facade recognizes
// itself; everything else is forwarded to the lower half verbatim.
const RTRCommand uint32 = 1

// RTRRequest is the payload RTRCommand expects: register a pending
// remote-transmission-request for id, to be satisfied into dest.
type RTRRequest struct {
	ID   uint32
	Dest *frame.Msg
}

// Ioctl implements spec.md §4.F's ioctl dispatch. cmd == RTRCommand
// expects arg to be a *RTRRequest; any other command is forwarded to the
// lower half with arg if arg is a uintptr, and with 0 otherwise.
func (d *Device) Ioctl(ctx context.Context, cmd uint32, arg any) (int, error) {
	if cmd == RTRCommand {
		req, ok := arg.(*RTRRequest)
		if !ok {
			return 0, NewError("Ioctl", CodeLowerHalf, "RTR_COMMAND requires a *RTRRequest argument")
		}
		return d.ioctlRTR(ctx, req)
	}

	var forwarded uintptr
	if u, ok := arg.(uintptr); ok {
		forwarded = u
	}
	return d.hwctl.IOCtl(cmd, forwarded)
}

func (d *Device) ioctlRTR(ctx context.Context, req *RTRRequest) (int, error) {
	d.mu.Lock()
	idx, ok := d.rtrTable.Register(req.ID, req.Dest)
	if !ok {
		d.mu.Unlock()
		return 0, NewError("Ioctl", CodeNoSlot, "rtr table full")
	}

	if err := d.hwctl.RemoteRequest(req.ID); err != nil {
		d.rtrTable.Release(idx)
		d.mu.Unlock()
		return 0, WrapError("Ioctl", err)
	}
	wake := d.rtrTable.Wake(idx)
	d.mu.Unlock()

	if err := wake.Wait(ctx); err != nil {
		d.mu.Lock()
		d.rtrTable.Release(idx)
		d.mu.Unlock()
		return 0, NewError("Ioctl", CodeInterrupted, err.Error())
	}
	return 0, nil
}
