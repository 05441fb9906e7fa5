package push

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/vogiaan1904/clinicqueue-sync/internal/errors"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/sse"
)

// Pair addresses one push subscription. Both ids are required.
type Pair struct {
	DepartmentID string `json:"departmentId"`
	DoctorID     string `json:"doctorId"`
}

func (p Pair) Complete() bool {
	return p.DepartmentID != "" && p.DoctorID != ""
}

func (p Pair) String() string {
	return p.DepartmentID + "/" + p.DoctorID
}

// Message is one named event as received from the wire.
type Message struct {
	Name string
	Data []byte
}

// Stream is an open subscription. Next blocks until a message arrives or
// the transport fails.
type Stream interface {
	Next() (Message, error)
	Close() error
}

type Transport interface {
	Connect(ctx context.Context, pair Pair) (Stream, error)
}

type sseTransport struct {
	streamURL     string
	hc            *http.Client
	sessionCookie string
}

// NewSSETransport subscribes to a text/event-stream endpoint addressed by
// departmentId/doctorId query parameters. hc should not set a Timeout: the
// stream is long-lived.
func NewSSETransport(streamURL string, hc *http.Client, sessionCookie string) Transport {
	if hc == nil {
		hc = &http.Client{}
	}
	return &sseTransport{
		streamURL:     streamURL,
		hc:            hc,
		sessionCookie: sessionCookie,
	}
}

func (t *sseTransport) Connect(ctx context.Context, pair Pair) (Stream, error) {
	u, err := url.Parse(t.streamURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrTransport, err)
	}
	q := u.Query()
	q.Set("departmentId", pair.DepartmentID)
	q.Set("doctorId", pair.DoctorID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrTransport, err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if t.sessionCookie != "" {
		req.Header.Set("Cookie", t.sessionCookie)
	}

	resp, err := t.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: handshake returned %d", errors.ErrTransport, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: unexpected content type %q", errors.ErrTransport, ct)
	}

	return &sseStream{body: resp.Body, sc: sse.NewScanner(resp.Body)}, nil
}

type sseStream struct {
	body io.ReadCloser
	sc   *sse.Scanner
	once sync.Once
}

func (s *sseStream) Next() (Message, error) {
	if s.sc.Next() {
		ev := s.sc.Event()
		name := ev.Name
		if name == "" {
			name = "message"
		}
		return Message{Name: name, Data: []byte(ev.Data)}, nil
	}

	err := s.sc.Err()
	if err == nil {
		err = io.EOF
	}
	return Message{}, fmt.Errorf("%w: stream closed: %v", errors.ErrTransport, err)
}

func (s *sseStream) Close() error {
	var err error
	s.once.Do(func() { err = s.body.Close() })
	return err
}
