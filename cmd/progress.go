package cmd

import (
	"strings"
	"sync"
	"time"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// progressTail is how many finished lines stay visible under the status line.
const progressTail = 5

// progress renders a spinner status line above the most recent result lines
// in a pterm area. It is safe for use from one goroutine besides its own ticker.
type progress struct {
	area *pterm.AreaPrinter
	stop chan struct{}
	wg   sync.WaitGroup

	mu     sync.Mutex
	status string
	lines  []string
	frame  int
}

// startProgress hides the cursor and starts animating. Without a usable
// terminal area it degrades to a no-op.
func startProgress(status string) *progress {
	p := &progress{status: status, stop: make(chan struct{})}
	area, err := pterm.DefaultArea.WithRemoveWhenDone(true).Start()
	if err != nil {
		return p
	}
	cursor.Hide()
	p.area = area
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		t := time.NewTicker(120 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				p.mu.Lock()
				p.frame++
				p.area.Update(p.render())
				p.mu.Unlock()
			case <-p.stop:
				return
			}
		}
	}()
	return p
}

func (p *progress) SetStatus(s string) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// AddLine records a finished item; only the last few stay on screen.
func (p *progress) AddLine(l string) {
	p.mu.Lock()
	p.lines = append(p.lines, l)
	if len(p.lines) > progressTail {
		p.lines = p.lines[len(p.lines)-progressTail:]
	}
	p.mu.Unlock()
}

// render must be called with mu held.
func (p *progress) render() string {
	var b strings.Builder
	b.WriteString(spinnerFrames[p.frame%len(spinnerFrames)])
	b.WriteString(" ")
	b.WriteString(p.status)
	for _, l := range p.lines {
		b.WriteString("\n  ")
		b.WriteString(l)
	}
	return b.String()
}

// Stop ends the animation, removes the area and shows the cursor again.
func (p *progress) Stop() {
	if p.area == nil {
		return
	}
	close(p.stop)
	p.wg.Wait()
	_ = p.area.Stop()
	p.area = nil
	cursor.Show()
}
