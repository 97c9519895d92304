package main

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ivlev/scene2video/internal/event"
	"github.com/ivlev/scene2video/internal/preview"
)

// cliSink routes the events of a CLI session: command results to a channel,
// progress to the terminal.
type cliSink struct {
	results  chan event.Event
	progress io.Writer
	mu       sync.Mutex
	last     int
}

func newCLISink(progress io.Writer) *cliSink {
	return &cliSink{results: make(chan event.Event, 16), progress: progress}
}

func (s *cliSink) Emit(e event.Event) {
	switch ev := e.(type) {
	case event.Progress:
		s.printProgress(ev)
	case event.Preview:
		if ev.Origin == preview.OriginRender {
			return
		}
		s.results <- e
	case event.Ready, event.Done, event.Cancelled, event.Error:
		s.results <- e
	}
}

// printProgress пишет прогресс не чаще раза в процент.
func (s *cliSink) printProgress(p event.Progress) {
	if s.progress == nil || p.Total <= 0 {
		return
	}
	pct := p.Done * 100 / p.Total
	s.mu.Lock()
	defer s.mu.Unlock()
	if pct == s.last && p.Done != p.Total {
		return
	}
	s.last = pct
	fmt.Fprintf(s.progress, "\r[*] Кадры: %d/%d (%d%%)", p.Done, p.Total, pct)
	if p.Done == p.Total {
		fmt.Fprintln(s.progress)
	}
}

// lineSink writes every event as one JSON line.
type lineSink struct {
	mu     sync.Mutex
	w      io.Writer
	logger *slog.Logger
}

func (s *lineSink) Emit(e event.Event) {
	data, err := event.Marshal(e)
	if err != nil {
		s.logger.Error("event encode failed", "type", e.Type(), "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		s.logger.Error("event write failed", "type", e.Type(), "error", err)
	}
}
