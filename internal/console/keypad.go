package console

import (
	"errors"
	"strings"
	"sync"
)

// PIN lengths per entry point. Login accepts a manual submit from four digits;
// rotation screens need all six.
const (
	MaxPINDigits    = 6
	LoginMinDigits  = 4
	RotateMinDigits = 6
)

// Mask glyphs.
const (
	MaskGlyph        = "●"
	PlaceholderGlyph = "○"
)

// KeypadState is the keypad's position in the entry lifecycle.
type KeypadState int

const (
	KeypadEmpty KeypadState = iota
	KeypadEntering
	KeypadSubmitting
	KeypadAccepted
	KeypadRejected
	KeypadLocked
)

func (s KeypadState) String() string {
	switch s {
	case KeypadEmpty:
		return "Empty"
	case KeypadEntering:
		return "Entering"
	case KeypadSubmitting:
		return "Submitting"
	case KeypadAccepted:
		return "Accepted"
	case KeypadRejected:
		return "Rejected"
	case KeypadLocked:
		return "Locked"
	}
	return "Unknown"
}

// Submission is one in-flight verification. Seq ties the eventual response to it.
type Submission struct {
	Seq uint64
	PIN string
}

// KeypadView is a render-ready snapshot. It never contains the digits.
type KeypadView struct {
	State             KeypadState
	Length            int
	Mask              string
	Reason            string
	AttemptsRemaining *int
	CanSubmit         bool
}

// Keypad is the PIN entry state machine. Safe for concurrent use; responses may
// arrive on a different goroutine than key presses.
type Keypad struct {
	mu        sync.Mutex
	minSubmit int
	buffer    []byte
	state     KeypadState
	resolved  bool
	seq       uint64
	reason    string
	remaining *int
}

// NewKeypad returns an empty keypad with the given manual-submit floor.
func NewKeypad(minSubmit int) *Keypad {
	if minSubmit <= 0 || minSubmit > MaxPINDigits {
		minSubmit = MaxPINDigits
	}
	return &Keypad{minSubmit: minSubmit, buffer: make([]byte, 0, MaxPINDigits)}
}

// SetResolved marks whether link resolution has settled. Digits are ignored
// until it has.
func (k *Keypad) SetResolved(resolved bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.resolved = resolved
}

func (k *Keypad) acceptsInput() bool {
	switch k.state {
	case KeypadSubmitting, KeypadLocked, KeypadAccepted:
		return false
	}
	return k.resolved
}

// Digit appends d. When the sixth digit lands the keypad submits on its own and
// the submission is returned with ok set.
func (k *Keypad) Digit(d byte) (sub Submission, ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if d < '0' || d > '9' || !k.acceptsInput() || len(k.buffer) >= MaxPINDigits {
		return Submission{}, false
	}
	k.buffer = append(k.buffer, d)
	k.state = KeypadEntering
	if len(k.buffer) == MaxPINDigits {
		return k.submitLocked(), true
	}
	return Submission{}, false
}

// Backspace removes the last digit.
func (k *Keypad) Backspace() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.acceptsInput() || len(k.buffer) == 0 {
		return
	}
	k.buffer = k.buffer[:len(k.buffer)-1]
	if len(k.buffer) == 0 {
		k.state = KeypadEmpty
	}
}

// Clear empties the buffer and drops any displayed error.
func (k *Keypad) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state == KeypadSubmitting || k.state == KeypadLocked {
		return
	}
	k.buffer = k.buffer[:0]
	k.state = KeypadEmpty
	k.reason = ""
	k.remaining = nil
}

// Submit triggers a manual submission once the entry point's floor is reached.
func (k *Keypad) Submit() (Submission, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.canSubmitLocked() {
		return Submission{}, false
	}
	return k.submitLocked(), true
}

func (k *Keypad) canSubmitLocked() bool {
	return k.state == KeypadEntering && k.resolved && len(k.buffer) >= k.minSubmit
}

func (k *Keypad) submitLocked() Submission {
	k.seq++
	k.state = KeypadSubmitting
	return Submission{Seq: k.seq, PIN: string(k.buffer)}
}

// Complete applies the verification outcome for seq. A nil error accepts; a
// locked rejection disables input; anything else rejects and re-arms. Results
// for a submission that is no longer current are dropped and false is returned.
func (k *Keypad) Complete(seq uint64, err error) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state != KeypadSubmitting || seq != k.seq {
		return false
	}

	k.buffer = k.buffer[:0]
	k.remaining = nil
	switch {
	case err == nil:
		k.state = KeypadAccepted
		k.reason = ""
	case errors.Is(err, ErrLocked):
		k.state = KeypadLocked
		k.reason = Reason(err)
	default:
		k.state = KeypadRejected
		k.reason = Reason(err)
		var pinErr *PINError
		if errors.As(err, &pinErr) && pinErr.AttemptsRemaining != nil {
			n := *pinErr.AttemptsRemaining
			k.remaining = &n
		}
	}
	return true
}

// Pending reports whether seq is still the in-flight submission.
func (k *Keypad) Pending(seq uint64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state == KeypadSubmitting && seq == k.seq
}

// Abandon forgets the in-flight submission, for example when the user navigates
// away. A late response for it will be dropped.
func (k *Keypad) Abandon() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.seq++
	if k.state == KeypadSubmitting {
		k.state = KeypadEmpty
	}
	k.buffer = k.buffer[:0]
}

// Reset returns the keypad to Empty from any state, including Locked.
func (k *Keypad) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.seq++
	k.buffer = k.buffer[:0]
	k.state = KeypadEmpty
	k.reason = ""
	k.remaining = nil
}

// State returns the current state.
func (k *Keypad) State() KeypadState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

// View returns a snapshot for rendering.
func (k *Keypad) View() KeypadView {
	k.mu.Lock()
	defer k.mu.Unlock()
	view := KeypadView{
		State:     k.state,
		Length:    len(k.buffer),
		Mask:      Mask(len(k.buffer)),
		Reason:    k.reason,
		CanSubmit: k.canSubmitLocked(),
	}
	if k.remaining != nil {
		n := *k.remaining
		view.AttemptsRemaining = &n
	}
	return view
}

// Mask renders n entered digits padded to the full PIN length.
func Mask(n int) string {
	if n < 0 {
		n = 0
	}
	if n > MaxPINDigits {
		n = MaxPINDigits
	}
	return strings.Repeat(MaskGlyph, n) + strings.Repeat(PlaceholderGlyph, MaxPINDigits-n)
}
