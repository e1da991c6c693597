package scan

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

const (
	pasteStart = "\x1b[200~"
	pasteEnd   = "\x1b[201~"
)

// ReadKeys translates a terminal byte stream into Keys. CR and LF are Enter;
// text between bracketed-paste markers arrives as a single KeyPaste; other
// escape sequences (arrow and function keys) are dropped whole. keys is
// closed when r ends.
func ReadKeys(ctx context.Context, r io.Reader, keys chan<- Key) error {
	defer close(keys)
	br := bufio.NewReader(r)

	send := func(k Key) bool {
		select {
		case keys <- k:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		ch, _, err := br.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch ch {
		case '\r', '\n':
			if !send(Key{Kind: KeyEnter}) {
				return ctx.Err()
			}
		case '\x1b':
			seq, err := readEscape(br)
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					return nil
				}
				return err
			}
			if seq != pasteStart[1:] {
				continue
			}
			text, err := readPaste(br)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			if !send(Key{Kind: KeyPaste, Text: text}) {
				return ctx.Err()
			}
			if err != nil {
				return nil
			}
		default:
			if ch < ' ' {
				continue
			}
			if !send(Key{Kind: KeyRune, Rune: ch}) {
				return ctx.Err()
			}
		}
	}
}

// maxEscape bounds a CSI sequence so a stray ESC cannot swallow input.
const maxEscape = 16

// readEscape consumes the CSI ("ESC [ ... final") or SS3 ("ESC O x") sequence
// after an ESC and returns it without the ESC. Anything else is left unread.
func readEscape(br *bufio.Reader) (string, error) {
	next, err := br.Peek(1)
	if err != nil {
		return "", nil
	}
	switch next[0] {
	case 'O':
		b := make([]byte, 2)
		n, err := io.ReadFull(br, b)
		return string(b[:n]), err
	case '[':
	default:
		return "", nil
	}

	var sb strings.Builder
	for sb.Len() < maxEscape {
		c, err := br.ReadByte()
		if err != nil {
			return sb.String(), err
		}
		sb.WriteByte(c)
		if sb.Len() > 1 && c >= 0x40 && c <= 0x7e {
			break
		}
	}
	return sb.String(), nil
}

// readPaste collects runes up to the paste end marker.
func readPaste(br *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		ch, _, err := br.ReadRune()
		if err != nil {
			return sb.String(), err
		}
		sb.WriteRune(ch)
		if ch == '~' && strings.HasSuffix(sb.String(), pasteEnd) {
			return strings.TrimSuffix(sb.String(), pasteEnd), nil
		}
	}
}
