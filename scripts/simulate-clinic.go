// Command simulate-clinic runs a fake clinic backend: the queue REST API
// and the per-doctor event stream the dashboard agent consumes. Patients
// check in at random and every change is pushed to subscribers.
package main

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

type token struct {
	TokenID      string  `json:"tokenId"`
	TokenValue   string  `json:"tokenValue"`
	Priority     string  `json:"priority"`
	Status       string  `json:"status"`
	PatientName  string  `json:"patientName"`
	DoctorID     string  `json:"doctorId"`
	DepartmentID string  `json:"departmentId"`
	Score        float64 `json:"score"`
	Rank         int     `json:"rank"`
}

type doctorQueue struct {
	DoctorID      string  `json:"doctorId"`
	DepartmentID  string  `json:"departmentId"`
	DoctorName    string  `json:"doctorName"`
	Waiting       []token `json:"waiting"`
	CurrentToken  *token  `json:"currentToken"`
	PreviousToken *token  `json:"previousToken"`
	TotalPatients int     `json:"totalPatients"`
	Timestamp     int64   `json:"timestamp"`
}

var priorityWeight = map[string]float64{"NORMAL": 0, "HIGH": 1000, "EMERGENCY": 2000}

type clinic struct {
	mu      sync.Mutex
	queues  map[string]*doctorQueue
	order   []string
	seq     int
	subs    map[string]map[chan []byte]struct{}
	failPct float64
}

func newClinic(doctors int, failPct float64) *clinic {
	c := &clinic{queues: map[string]*doctorQueue{}, subs: map[string]map[chan []byte]struct{}{}, failPct: failPct}
	for i := 1; i <= doctors; i++ {
		id := fmt.Sprintf("doc-%d", i)
		dep := fmt.Sprintf("dep-%d", (i+1)/2)
		c.queues[id] = &doctorQueue{DoctorID: id, DepartmentID: dep, DoctorName: fmt.Sprintf("Dr. %d", i), Waiting: []token{}}
		c.order = append(c.order, id)
	}
	return c
}

// rerank orders waiting by priority then arrival, the way the real
// backend scores tokens. Caller holds c.mu.
func (c *clinic) rerank(q *doctorQueue) {
	for i := range q.Waiting {
		for j := i + 1; j < len(q.Waiting); j++ {
			if q.Waiting[j].Score > q.Waiting[i].Score {
				q.Waiting[i], q.Waiting[j] = q.Waiting[j], q.Waiting[i]
			}
		}
	}
	for i := range q.Waiting {
		q.Waiting[i].Rank = i + 1
	}
	q.TotalPatients = len(q.Waiting)
	if q.CurrentToken != nil {
		q.TotalPatients++
	}
	q.Timestamp = time.Now().UnixMilli()
}

func (c *clinic) checkIn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.queues[c.order[rand.IntN(len(c.order))]]
	c.seq++
	prio := []string{"NORMAL", "NORMAL", "NORMAL", "HIGH", "EMERGENCY"}[rand.IntN(5)]
	q.Waiting = append(q.Waiting, token{
		TokenID:      uuid.NewString(),
		TokenValue:   fmt.Sprintf("A-%03d", c.seq),
		Priority:     prio,
		Status:       "CHECKED_IN",
		PatientName:  fmt.Sprintf("Patient %d", c.seq),
		DoctorID:     q.DoctorID,
		DepartmentID: q.DepartmentID,
		Score:        priorityWeight[prio] - float64(c.seq),
	})
	c.rerank(q)
	c.broadcast(q.DoctorID, "queue_update", q)
}

// broadcast sends one SSE frame to every subscriber of doctorID. Caller
// holds c.mu.
func (c *clinic) broadcast(doctorID, event string, payload any) {
	data, _ := json.Marshal(payload)
	frame := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, data))
	for ch := range c.subs[doctorID] {
		select {
		case ch <- frame:
		default:
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"message": message, "data": data})
}

func (c *clinic) getQueue(w http.ResponseWriter, r *http.Request) {
	dep, doc := r.URL.Query().Get("departmentId"), r.URL.Query().Get("doctorId")

	c.mu.Lock()
	defer c.mu.Unlock()

	out := []doctorQueue{}
	for _, id := range c.order {
		q := c.queues[id]
		if (doc == "" || q.DoctorID == doc) && (dep == "" || q.DepartmentID == dep) {
			out = append(out, *q)
		}
	}
	writeJSON(w, http.StatusOK, "ok", out)
}

func (c *clinic) listDepartments(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := map[string]bool{}
	out := []map[string]string{}
	for _, id := range c.order {
		dep := c.queues[id].DepartmentID
		if !seen[dep] {
			seen[dep] = true
			out = append(out, map[string]string{"departmentId": dep, "name": "Department " + dep})
		}
	}
	writeJSON(w, http.StatusOK, "ok", out)
}

func (c *clinic) listDoctors(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := []map[string]string{}
	for _, id := range c.order {
		q := c.queues[id]
		out = append(out, map[string]string{"doctorId": q.DoctorID, "name": q.DoctorName, "departmentId": q.DepartmentID})
	}
	writeJSON(w, http.StatusOK, "ok", out)
}

func (c *clinic) updateToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		TokenID  string `json:"tokenId"`
		Status   string `json:"status"`
		DoctorID string `json:"doctorId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if rand.Float64() < c.failPct {
		writeJSON(w, http.StatusServiceUnavailable, "simulated outage", nil)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[in.DoctorID]
	if !ok {
		writeJSON(w, http.StatusNotFound, "doctor not found", nil)
		return
	}

	switch in.Status {
	case "IN_PROGRESS":
		for i, t := range q.Waiting {
			if t.TokenID != in.TokenID {
				continue
			}
			t.Status = "IN_PROGRESS"
			q.Waiting = append(q.Waiting[:i], q.Waiting[i+1:]...)
			if q.CurrentToken != nil {
				q.CurrentToken.Status = "COMPLETED"
				q.PreviousToken = q.CurrentToken
			}
			q.CurrentToken = &t
			c.rerank(q)
			c.broadcast(q.DoctorID, "token_called", map[string]any{"tokenId": t.TokenID, "doctorId": q.DoctorID, "token": t, "timestamp": q.Timestamp})
			writeJSON(w, http.StatusOK, "called", t)
			return
		}
	case "COMPLETED":
		if q.CurrentToken != nil && q.CurrentToken.TokenID == in.TokenID {
			done := *q.CurrentToken
			done.Status = "COMPLETED"
			q.PreviousToken, q.CurrentToken = &done, nil
			c.rerank(q)
			c.broadcast(q.DoctorID, "token_completed", map[string]any{"tokenId": done.TokenID, "doctorId": q.DoctorID, "timestamp": q.Timestamp})
			writeJSON(w, http.StatusOK, "completed", done)
			return
		}
	}
	writeJSON(w, http.StatusConflict, "token already transitioned", nil)
}

func (c *clinic) updatePriority(w http.ResponseWriter, r *http.Request) {
	var in struct {
		TokenID string `json:"tokenId"`
		Action  string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	ladder := []string{"NORMAL", "HIGH", "EMERGENCY"}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range c.order {
		q := c.queues[id]
		for i := range q.Waiting {
			t := &q.Waiting[i]
			if t.TokenID != in.TokenID {
				continue
			}
			lvl := 0
			for j, p := range ladder {
				if p == t.Priority {
					lvl = j
				}
			}
			if in.Action == "increase" && lvl < len(ladder)-1 {
				lvl++
			} else if in.Action == "decrease" && lvl > 0 {
				lvl--
			}
			t.Score += priorityWeight[ladder[lvl]] - priorityWeight[t.Priority]
			t.Priority = ladder[lvl]
			updated := *t
			c.rerank(q)
			c.broadcast(q.DoctorID, "queue_update", q)
			writeJSON(w, http.StatusOK, "updated", updated)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, "token not found", nil)
}

func (c *clinic) stream(w http.ResponseWriter, r *http.Request) {
	doc := r.URL.Query().Get("doctorId")
	flusher, ok := w.(http.Flusher)
	if !ok || doc == "" {
		http.Error(w, "doctorId required", http.StatusBadRequest)
		return
	}

	ch := make(chan []byte, 16)
	c.mu.Lock()
	if c.subs[doc] == nil {
		c.subs[doc] = map[chan []byte]struct{}{}
	}
	c.subs[doc][ch] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.subs[doc], ch)
		c.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-ch:
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func main() {
	flagSet := pflag.NewFlagSet("simulate-clinic", pflag.ExitOnError)
	addr := flagSet.String("addr", ":8080", "listen address")
	doctors := flagSet.Int("doctors", 4, "number of doctors (two per department)")
	interval := flagSet.Duration("check-in-interval", 3*time.Second, "time between patient check-ins")
	failPct := flagSet.Float64("fail-rate", 0.05, "probability a status update fails with 503")
	_ = flagSet.Parse(os.Args[1:])

	c := newClinic(*doctors, *failPct)
	go func() {
		for range time.Tick(*interval) {
			c.checkIn()
		}
	}()

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/queue", c.getQueue)
		r.Get("/queue/stream", c.stream)
		r.Get("/departments", c.listDepartments)
		r.Get("/doctors", c.listDoctors)
		r.Put("/tokens", c.updateToken)
		r.Put("/tokens/priority", c.updatePriority)
	})

	fmt.Printf("Simulated clinic listening on %s (%d doctors)\n", *addr, *doctors)
	if err := http.ListenAndServe(*addr, r); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
