package candev

import (
	"sync"

	"github.com/canbus/candev/frame"
	"github.com/canbus/candev/internal/hw"
)

// MockController is a test double for hw.Controller: it tracks every call
// it receives and lets a test script its TXReady/TXEmpty answers and hook
// into Send, the same way go-ublk's MockBackend lets a test script I/O
// outcomes without a real block device.
type MockController struct {
	mu sync.Mutex

	txReady bool
	txEmpty bool

	// SendFunc, if set, is invoked by Send instead of the default no-op
	// success. It may call back into the Device (e.g. TxDone) to model
	// synchronous completion, the way real hardware sometimes does.
	SendFunc func(msg *frame.Msg) error
	// RemoteRequestFunc, if set, is invoked by RemoteRequest instead of
	// the default no-op success.
	RemoteRequestFunc func(id uint32) error

	setupCalls    int
	shutdownCalls int
	resetCalls    int
	rxIntCalls    int
	txIntCalls    int
	sendCalls     int
	rtrCalls      int
	ioctlCalls    int

	rxIntEnabled bool
	txIntEnabled bool

	sentMsgs []frame.Msg
}

// NewMockController returns a MockController that reports TX-ready and
// TX-empty by default, matching idle hardware at power-on.
func NewMockController() *MockController {
	return &MockController{txReady: true, txEmpty: true}
}

func (m *MockController) Setup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setupCalls++
	return nil
}

func (m *MockController) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownCalls++
	return nil
}

func (m *MockController) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCalls++
	return nil
}

func (m *MockController) RXInt(enable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rxIntCalls++
	m.rxIntEnabled = enable
	return nil
}

func (m *MockController) TXInt(enable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txIntCalls++
	m.txIntEnabled = enable
	return nil
}

func (m *MockController) TXReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txReady
}

func (m *MockController) TXEmpty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txEmpty
}

func (m *MockController) Send(msg *frame.Msg) error {
	m.mu.Lock()
	m.sendCalls++
	m.sentMsgs = append(m.sentMsgs, *msg)
	fn := m.SendFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(msg)
	}
	return nil
}

func (m *MockController) RemoteRequest(id uint32) error {
	m.mu.Lock()
	m.rtrCalls++
	fn := m.RemoteRequestFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(id)
	}
	return nil
}

func (m *MockController) IOCtl(cmd uint32, arg uintptr) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ioctlCalls++
	return 0, nil
}

// SetTXReady scripts the value TXReady will return.
func (m *MockController) SetTXReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txReady = ready
}

// SetTXEmpty scripts the value TXEmpty will return.
func (m *MockController) SetTXEmpty(empty bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txEmpty = empty
}

// RXIntEnabled reports the last value passed to RXInt.
func (m *MockController) RXIntEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rxIntEnabled
}

// TXIntEnabled reports the last value passed to TXInt.
func (m *MockController) TXIntEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txIntEnabled
}

// SentMessages returns a copy of every frame passed to Send, in order.
func (m *MockController) SentMessages() []frame.Msg {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]frame.Msg, len(m.sentMsgs))
	copy(out, m.sentMsgs)
	return out
}

// CallCounts returns how many times each Controller method has been
// invoked, keyed by method name.
func (m *MockController) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"setup":    m.setupCalls,
		"shutdown": m.shutdownCalls,
		"reset":    m.resetCalls,
		"rxint":    m.rxIntCalls,
		"txint":    m.txIntCalls,
		"send":     m.sendCalls,
		"rtr":      m.rtrCalls,
		"ioctl":    m.ioctlCalls,
	}
}

var _ hw.Controller = (*MockController)(nil)
