package sse

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// Event is one Server-Sent Event. Name is empty for unnamed ("message")
// events.
type Event struct {
	Name  string
	Data  string
	ID    string
	Retry time.Duration
}

// Scanner reads events from a text/event-stream body. Events end at a
// blank line; comment lines and unknown fields are skipped.
type Scanner struct {
	r       *bufio.Reader
	current Event
	err     error
	lastID  string
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next event that carries data. It returns false at
// end of stream or on a read error; see Err.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}

	var (
		ev      Event
		data    []string
		hasData bool
	)
	emit := func() {
		ev.Data = strings.Join(data, "\n")
		ev.ID = s.lastID
		s.current = ev
	}

	for {
		line, err := s.r.ReadString('\n')
		if err != nil && line == "" {
			s.err = err
			if err == io.EOF && hasData {
				emit()
				return true
			}
			return false
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if hasData {
				emit()
				return true
			}
			ev = Event{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			ev.Name = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				s.lastID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				ev.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
}

func (s *Scanner) Event() Event {
	return s.current
}

// LastEventID is the most recent id field seen on the stream.
func (s *Scanner) LastEventID() string {
	return s.lastID
}

// Err returns the read error that stopped the scanner, or nil on a clean EOF.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
