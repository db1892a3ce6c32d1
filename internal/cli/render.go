package cli

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/dbclone/dbclone/internal/clone"
	"github.com/dbclone/dbclone/internal/events"
)

// subscribeRun opens the progress and log subscriptions for one run. Must be
// called before the run starts so no early event is missed.
func subscribeRun(ctx context.Context, progressTopic, logTopic string) (progCh, logCh <-chan *message.Message, err error) {
	progCh, err = a.bus.Subscribe(ctx, progressTopic)
	if err != nil {
		return nil, nil, err
	}
	logCh, err = a.bus.Subscribe(ctx, logTopic)
	if err != nil {
		return nil, nil, err
	}
	return progCh, logCh, nil
}

// renderRun displays progress and log events for one run until the terminal
// event arrives. Returns the terminal progress event.
func renderRun(ctx context.Context, name string, progCh, logCh <-chan *message.Message, plain bool) (clone.Progress, error) {
	var bar *mpb.Bar
	var p *mpb.Progress
	var msgMu sync.Mutex
	status := "starting..."

	if !plain {
		p = mpb.New(mpb.WithWidth(40), mpb.WithRefreshRate(100*time.Millisecond))
		prefix := name + " "
		bar = p.New(100, mpb.BarStyle().Lbound("|").Rbound("|"),
			mpb.PrependDecorators(decor.Name(prefix, decor.WC{W: len(prefix), C: decor.DSyncWidth}), decor.Percentage()),
			mpb.AppendDecorators(decor.Any(func(decor.Statistics) string {
				msgMu.Lock()
				defer msgMu.Unlock()
				return status
			})))
	}

	for {
		select {
		case <-ctx.Done():
			if bar != nil {
				bar.Abort(true)
				p.Wait()
			}
			return clone.Progress{}, ctx.Err()

		case msg, ok := <-logCh:
			if !ok {
				continue
			}
			line := string(msg.Payload)
			msg.Ack()
			if plain {
				fmt.Fprintln(os.Stdout, line)
			}

		case msg, ok := <-progCh:
			if !ok {
				return clone.Progress{}, fmt.Errorf("progress stream closed")
			}
			ev, err := events.Decode[clone.Progress](msg)
			if err != nil {
				continue
			}
			if plain {
				fmt.Fprintf(os.Stdout, "[%3d%%] %s: %s\n", ev.Progress, ev.Stage, ev.Message)
			} else {
				msgMu.Lock()
				status = ev.Message
				msgMu.Unlock()
				bar.SetCurrent(int64(ev.Progress))
			}
			if ev.IsComplete {
				if bar != nil {
					if ev.IsError {
						bar.Abort(false)
					} else {
						bar.SetCurrent(100)
					}
					p.Wait()
				}
				return ev, nil
			}
		}
	}
}
