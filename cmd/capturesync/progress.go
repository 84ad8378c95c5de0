package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"capturesync/internal/pipeline"
)

// progressObserver prints canonical record lines and, on a terminal, keeps a
// processed-of-discovered bar below them.
type progressObserver struct {
	mu    sync.Mutex
	out   io.Writer
	bar   *progressbar.ProgressBar
	stats func() pipeline.Stats
}

func newProgressObserver(out io.Writer, barOut *os.File, enabled bool) *progressObserver {
	p := &progressObserver{out: out}
	if enabled && barOut != nil && isatty.IsTerminal(barOut.Fd()) {
		p.bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("capturesync"),
			progressbar.OptionSetWriter(barOut),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	return p
}

func (p *progressObserver) bind(stats func() pipeline.Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = stats
}

func (p *progressObserver) OnEvent(r pipeline.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Clear()
	}
	if line := r.Line(); line != "" {
		fmt.Fprintln(p.out, line)
	}
	if p.bar == nil || p.stats == nil {
		return
	}
	stats := p.stats()
	done := stats.Processed + stats.Skipped + stats.Failed
	if stats.Discovered > 0 {
		p.bar.ChangeMax(stats.Discovered)
	}
	if stats.LastOutput != "" {
		p.bar.Describe(filepath.Base(stats.LastOutput))
	}
	_ = p.bar.Set(done)
}

func (p *progressObserver) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
