// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
)

// InitLogger sets up Apex with a custom handler and a log level from the
// SANGRE_LOG env variable. Messages go to stderr and, when file is set,
// are appended to that file too. The returned func closes the file.
func InitLogger(file string) (func() error, error) {
	level := strings.ToUpper(os.Getenv("SANGRE_LOG"))
	if level == "" {
		level = "ERROR"
	}

	var (
		w       io.Writer = os.Stderr
		closeFn           = func() error { return nil }
	)
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:mnd
		if err != nil {
			log.SetHandler(NewHandler(w))
			return closeFn, fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeFn = f.Close
	}

	log.SetHandler(NewHandler(w))
	if lvl, err := log.ParseLevel(level); err != nil {
		log.SetLevel(log.ErrorLevel)
	} else {
		log.SetLevel(lvl)
	}
	return closeFn, nil
}

// CustomHandler formats log messages as
// "timestamp L message key=value ..." and writes them to Writer.
type CustomHandler struct {
	mu     sync.Mutex
	Writer io.Writer
	Now    func() time.Time
}

func NewHandler(w io.Writer) *CustomHandler {
	return &CustomHandler{Writer: w, Now: time.Now}
}

// HandleLog implements the log.Handler interface
func (h *CustomHandler) HandleLog(e *log.Entry) error {
	var b strings.Builder
	b.WriteString(h.Now().Format("2006-01-02 15:04:05"))
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(e.Level.String())[:1])
	b.WriteByte(' ')
	b.WriteString(e.Message)
	for _, name := range e.Fields.Names() {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields.Get(name))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.Writer, b.String())
	return err
}
