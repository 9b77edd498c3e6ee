package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/eiannone/keyboard"
)

// Producers that feed the publisher.

type publisher interface {
	Publish(topic string, payload []byte)
}

type tickPayload struct {
	Seq  uint64    `json:"seq"`
	Time time.Time `json:"time"`
}

// runTicker publishes a sequence-numbered JSON tick every interval.
func runTicker(ctx context.Context, pub publisher, topic string, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			seq++
			b, err := json.Marshal(tickPayload{Seq: seq, Time: now.UTC()})
			if err != nil {
				return fmt.Errorf("encoding tick: %w", err)
			}
			pub.Publish(topic, b)
		}
	}
}

// runLines publishes each line of r until EOF or cancellation. It returns on
// cancellation without waiting for r: the reading goroutine stays blocked in
// Read until r yields data or an error, which for os.Stdin can be the life of
// the process.
func runLines(ctx context.Context, pub publisher, topic string, r io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 16<<20)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return nil
				}
			}
			pub.Publish(topic, []byte(line))
		}
	}
}

var errQuit = errors.New("interactive session ended")

// runInteractive reads raw keystrokes and publishes the typed line on Enter.
// Esc or Ctrl-C ends the session.
func runInteractive(ctx context.Context, pub publisher, topic string) error {
	keys, err := keyboard.GetKeys(16)
	if err != nil {
		return fmt.Errorf("opening keyboard: %w", err)
	}
	defer keyboard.Close()

	fmt.Printf("publishing on %q; Enter sends, Esc quits\r\n", topic)
	var line []rune
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-keys:
			if ev.Err != nil {
				return fmt.Errorf("reading keyboard: %w", ev.Err)
			}
			line, err = applyKey(pub, topic, line, ev.Key, ev.Rune)
			if errors.Is(err, errQuit) {
				return nil
			}
		}
	}
}

// applyKey edits the pending line for one keystroke, publishing on Enter.
func applyKey(pub publisher, topic string, line []rune, key keyboard.Key, r rune) ([]rune, error) {
	switch key {
	case keyboard.KeyEsc, keyboard.KeyCtrlC:
		return line, errQuit
	case keyboard.KeyEnter:
		if len(line) > 0 {
			pub.Publish(topic, []byte(string(line)))
		}
		fmt.Print("\r\n")
		return line[:0], nil
	case keyboard.KeyBackspace, keyboard.KeyBackspace2:
		if len(line) > 0 {
			line = line[:len(line)-1]
			fmt.Print("\b \b")
		}
		return line, nil
	case keyboard.KeySpace:
		r = ' '
	}
	if r != 0 {
		line = append(line, r)
		fmt.Print(string(r))
	}
	return line, nil
}
