package main

import (
	"fmt"
	"io"
	"sync"
)

// printer serializes output from handler goroutines and the input loop.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}
