package candev

import "context"

// Open implements spec.md §4.F's open body. The first open performs
// hardware setup and resets both rings; every later open only bumps
// open_count.
func (d *Device) Open(ctx context.Context) error {
	if err := d.closeMu.Lock(ctx); err != nil {
		return NewError("Open", CodeInterrupted, err.Error())
	}
	defer d.closeMu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	tmp := d.openCount + 1
	if tmp == 0 {
		return NewError("Open", CodeTooManyOpens, "open_count would wrap")
	}

	if tmp == 1 {
		if err := d.hwctl.Setup(); err != nil {
			return WrapError("Open", err)
		}
		d.tx.Reset()
		d.rx.Reset()
		if err := d.hwctl.RXInt(true); err != nil {
			return WrapError("Open", err)
		}
		d.openCount = 1
		d.logger.Printf("candev: device opened (first open)")
	} else {
		d.openCount = tmp
	}
	return nil
}

// Close implements spec.md §4.F's close body. Only the last close drains
// the TX ring and hardware FIFO and shuts the controller down; earlier
// closes just decrement open_count.
func (d *Device) Close(ctx context.Context) error {
	if err := d.closeMu.Lock(ctx); err != nil {
		return NewError("Close", CodeInterrupted, err.Error())
	}
	defer d.closeMu.Unlock()

	d.mu.Lock()
	if d.openCount > 1 {
		d.openCount--
		d.mu.Unlock()
		return nil
	}
	d.openCount = 0
	if err := d.hwctl.RXInt(false); err != nil {
		d.mu.Unlock()
		return WrapError("Close", err)
	}
	d.mu.Unlock()

	for {
		d.mu.Lock()
		empty := d.tx.Empty()
		d.mu.Unlock()
		if empty {
			break
		}
		d.sleepCloseInterval()
	}

	for !d.hwctl.TXEmpty() {
		d.sleepCloseInterval()
	}

	d.mu.Lock()
	err := d.hwctl.Shutdown()
	d.mu.Unlock()
	if err != nil {
		return WrapError("Close", err)
	}

	d.logger.Printf("candev: device closed (last close)")
	return nil
}
