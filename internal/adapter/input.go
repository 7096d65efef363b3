package adapter

import (
	"bufio"
	"io"

	"github.com/marmos91/dbgpfront/internal/logger"
)

// Input adapts an io.Reader (stdin in production) into a stream of Key
// input events. It decodes raw bytes read one at a time; the terminal
// is expected to already be in raw/cbreak mode (not this adapter's
// concern — spec §1 treats terminal-mode setup as an external
// collaborator).
type Input struct {
	r      *bufio.Reader
	events chan InputEvent
}

// NewInput wraps r and starts decoding in the background.
func NewInput(r io.Reader) *Input {
	in := &Input{r: bufio.NewReader(r), events: make(chan InputEvent, 8)}
	go in.run()
	return in
}

// Events returns the channel decoded keys are published to.
func (in *Input) Events() <-chan InputEvent { return in.events }

func (in *Input) run() {
	for {
		r, _, err := in.r.ReadRune()
		if err != nil {
			logger.Debug("input reader stopped", logger.Err(err))
			return
		}
		in.events <- Key{Code: r, Modifiers: modifiersFor(r)}
	}
}

// modifiersFor reports the control-key bit for runes in the C0 control
// range; anything else carries no modifier.
func modifiersFor(r rune) int {
	if r < 0x20 {
		return ModControl
	}
	return 0
}

// ModControl marks a Key as having been produced by a control-key
// combination (e.g. Ctrl-C arrives as rune 0x03).
const ModControl = 1 << 0
