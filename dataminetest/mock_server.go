// Package dataminetest provides a mock DataMine server for integration
// testing against the datamine client without a live deployment.
package dataminetest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// --- Data Models ---

// MockQueryTemplate defines the canned result set and failure behavior for a
// specific SQL string. It acts as an immutable blueprint from which live
// query instances are created on each submission.
//
// Failure Injection:
//
//  1. SubmitRejections makes the first N submissions answer with
//     SubmitStatus (503 unless set) before one is accepted with 201.
//
//  2. ProcessingPolls makes the first N result polls answer 202 before the
//     payload is served, simulating a job still materializing.
//
//  3. ResultStatus, when non-zero, makes every post-processing poll answer
//     with that status instead of serving results, simulating a job that
//     never completes.
type MockQueryTemplate struct {
	SQL              string        // The SQL query string used for template matching.
	Header           []string      // Column names for the first payload line.
	Rows             [][]string    // Result rows, escaped and joined per the wire format.
	RawLines         []string      // Verbatim payload lines; overrides Header and Rows when set.
	SubmitRejections int           // Submissions to reject before accepting one.
	SubmitStatus     int           // Status code for rejected submissions, default 503.
	ProcessingPolls  int           // Result polls to answer 202 before serving the payload.
	ResultStatus     int           // Terminal non-OK status for result polls, 0 serves results.
	Latency          time.Duration // Latency applied to result polls.
}

// mockActiveQuery tracks one accepted submission of a template.
type mockActiveQuery struct {
	id       string
	template *MockQueryTemplate
	polls    int
}

// --- Mock Server Implementation ---

// MockDataMineServer simulates the DataMine dashboard API for integration
// testing. It answers liveness probes, accepts query submissions, and serves
// delimited result payloads.
type MockDataMineServer struct {
	server *httptest.Server

	// templates maps SQL strings to their registered blueprints.
	templates map[string]*MockQueryTemplate

	// activeQueries maps issued job ids to their per-submission state.
	activeQueries map[string]*mockActiveQuery

	// submitAttempts counts submissions seen per SQL string.
	submitAttempts map[string]int

	probeFailures int // Remaining probes to fail.
	probeStatus   int // Status code for failed probes.

	mu sync.Mutex

	// defaultLatency is the fallback result-poll latency if the template
	// defines none.
	defaultLatency time.Duration

	queryIDCounter atomic.Int64
	today          string // Cached date string for job id generation.
}

// NewMockDataMineServer initializes a new mock server using the standard library.
func NewMockDataMineServer() *MockDataMineServer {
	mock := &MockDataMineServer{
		templates:      make(map[string]*MockQueryTemplate),
		activeQueries:  make(map[string]*mockActiveQuery),
		submitAttempts: make(map[string]int),
		today:          time.Now().Format("20060102"),
	}

	mux := http.NewServeMux()

	// GET /: Liveness probe answered during Connect.
	mux.HandleFunc("GET /{$}", mock.handleProbe)

	// POST /query/: Accepts a query submission and mints a job id.
	mux.HandleFunc("POST /query/{$}", mock.handleSubmit)

	// GET /query/{queryId}/results: Polls a job and streams its payload.
	mux.HandleFunc("GET /query/{queryId}/results", mock.handleResults)

	mock.server = httptest.NewServer(mux)

	return mock
}

// AddQuery registers a SQL template and fills in status-code defaults.
func (m *MockDataMineServer) AddQuery(tmpl *MockQueryTemplate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tmpl.SubmitStatus == 0 {
		tmpl.SubmitStatus = http.StatusServiceUnavailable
	}

	m.templates[tmpl.SQL] = tmpl
}

// SetProbeFailures makes the next n liveness probes answer with the given
// status code before the server reports healthy again.
func (m *MockDataMineServer) SetProbeFailures(n, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeFailures = n
	m.probeStatus = statusCode
}

// SetDefaultLatency configures the fallback result-poll latency.
func (m *MockDataMineServer) SetDefaultLatency(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultLatency = latency
}

// SubmitAttempts reports how many submissions the server has seen for the
// given SQL string.
func (m *MockDataMineServer) SubmitAttempts(sql string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitAttempts[sql]
}

// --- Request Handlers ---

func (m *MockDataMineServer) handleProbe(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	failing := m.probeFailures > 0
	status := m.probeStatus
	if failing {
		m.probeFailures--
	}
	m.mu.Unlock()

	if failing {
		w.WriteHeader(status)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, "DataMine dashboard")
}

// handleSubmit matches the posted SQL against registered templates and either
// rejects the submission or mints a job id for it. Unknown SQL is accepted
// with a single-row default payload.
func (m *MockDataMineServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	sql := r.PostForm.Get("query")

	m.mu.Lock()
	defer m.mu.Unlock()

	m.submitAttempts[sql]++
	template, exists := m.templates[sql]
	if !exists {
		template = &MockQueryTemplate{
			SQL:          sql,
			Header:       []string{"RESULT"},
			Rows:         [][]string{{"query template not found; default success"}},
			SubmitStatus: http.StatusServiceUnavailable,
		}
		m.templates[sql] = template
	}

	if m.submitAttempts[sql] <= template.SubmitRejections {
		w.WriteHeader(template.SubmitStatus)
		return
	}

	id := fmt.Sprintf("%s_%d", m.today, m.queryIDCounter.Add(1))
	m.activeQueries[id] = &mockActiveQuery{id: id, template: template}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = fmt.Fprintf(w, "{\"id\": %q}\n", id)
}

// handleResults walks an accepted job through its processing polls and then
// streams the payload, one line per row, with delimiter escaping applied.
func (m *MockDataMineServer) handleResults(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("queryId")

	m.mu.Lock()
	query, exists := m.activeQueries[id]
	if !exists {
		m.mu.Unlock()
		w.WriteHeader(http.StatusNotFound)
		return
	}

	query.polls++
	processing := query.polls <= query.template.ProcessingPolls
	template := query.template

	latency := m.defaultLatency
	if template.Latency > 0 {
		latency = template.Latency
	}
	m.mu.Unlock()

	if latency > 0 {
		time.Sleep(latency)
	}

	if processing {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if template.ResultStatus != 0 {
		w.WriteHeader(template.ResultStatus)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	if template.RawLines != nil {
		for _, line := range template.RawLines {
			_, _ = fmt.Fprintln(w, line)
		}
		return
	}

	_, _ = fmt.Fprintln(w, strings.Join(template.Header, ","))
	for _, row := range template.Rows {
		_, _ = fmt.Fprintln(w, formatRow(row))
	}
}

// formatRow serializes one result row in the wire format: literal colons and
// commas are backslash-escaped, an empty field becomes \N, and fields are
// joined with commas.
func formatRow(row []string) string {
	fields := make([]string, len(row))
	for i, field := range row {
		if field == "" {
			fields[i] = `\N`
			continue
		}
		field = strings.ReplaceAll(field, ":", `\:`)
		field = strings.ReplaceAll(field, ",", `\,`)
		fields[i] = field
	}
	return strings.Join(fields, ",")
}

// URL returns the base URL of the mock server.
func (m *MockDataMineServer) URL() string { return m.server.URL }

// Close shuts down the mock server.
func (m *MockDataMineServer) Close() { m.server.Close() }
