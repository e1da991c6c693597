package scan

import (
	"context"
	"strings"
	"time"

	"gateattend/internal/model"
)

// minIdleToken is the buffer length an idle flush needs; shorter bursts are
// treated as stray typing and dropped.
const minIdleToken = 5

type KeyKind int

const (
	KeyRune KeyKind = iota
	KeyEnter
	KeyPaste
)

// Key is one input event from a keyboard-wedge scanner.
type Key struct {
	Kind KeyKind
	Rune rune
	// Text holds the pasted text for KeyPaste.
	Text string
}

// KeystrokeDecoder assembles scanner keystrokes into tokens. A token ends on
// Enter, on a paste, or when the input goes idle with more than five runes
// buffered.
type KeystrokeDecoder struct {
	buf strings.Builder
}

// Feed consumes one key and returns a token when one completes.
func (d *KeystrokeDecoder) Feed(k Key) (string, bool) {
	switch k.Kind {
	case KeyEnter:
		return d.take(0)
	case KeyPaste:
		d.buf.Reset()
		text := strings.TrimSpace(k.Text)
		return text, text != ""
	default:
		d.buf.WriteRune(k.Rune)
		return "", false
	}
}

// Idle is called once the debounce period passes without input.
func (d *KeystrokeDecoder) Idle() (string, bool) {
	return d.take(minIdleToken + 1)
}

// Pending reports whether runes are buffered.
func (d *KeystrokeDecoder) Pending() bool {
	return d.buf.Len() > 0
}

func (d *KeystrokeDecoder) take(minLen int) (string, bool) {
	s := strings.TrimSpace(d.buf.String())
	d.buf.Reset()
	if s == "" || len([]rune(s)) < minLen {
		return "", false
	}
	return s, true
}

// Keystrokes drives a KeystrokeDecoder from a key channel.
type Keystrokes struct {
	debounce time.Duration
	now      func() time.Time
}

func NewKeystrokes(debounce time.Duration) *Keystrokes {
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Keystrokes{debounce: debounce, now: time.Now}
}

// Run reads keys until the channel closes or ctx is done and emits a
// physical-scanner event per completed token.
func (k *Keystrokes) Run(ctx context.Context, keys <-chan Key, out chan<- model.ScanEvent) {
	var dec KeystrokeDecoder
	idle := time.NewTimer(k.debounce)
	idle.Stop()
	defer idle.Stop()

	emit := func(tok string) bool {
		evt := model.ScanEvent{RawToken: tok, Source: model.SourcePhysicalScanner, CapturedAt: k.now()}
		select {
		case out <- evt:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
			if tok, ok := dec.Idle(); ok && !emit(tok) {
				return
			}
		case key, ok := <-keys:
			if !ok {
				if tok, ok := dec.Idle(); ok {
					emit(tok)
				}
				return
			}
			idle.Stop()
			if tok, done := dec.Feed(key); done {
				if !emit(tok) {
					return
				}
				continue
			}
			if dec.Pending() {
				idle.Reset(k.debounce)
			}
		}
	}
}
