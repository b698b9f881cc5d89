package datamine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/levikanwischer/datamine/utils"
)

// QueryState identifies where the executor is in the submit/poll life cycle.
type QueryState int8

const (
	// StateIdle means no query has been executed on the session.
	StateIdle QueryState = iota
	// StateSubmitting means the query text is being posted to the server.
	StateSubmitting
	// StateSubmitted means the server accepted the query and assigned a job id.
	StateSubmitted
	// StatePolling means the client is waiting for the job's results.
	StatePolling
	// StateReady means the result stream is open and readable.
	StateReady
	// StateFailed means the last Execute ended in a fatal error.
	StateFailed
)

var queryStateNames = utils.NewBiMap(map[QueryState]string{
	StateIdle:       "IDLE",
	StateSubmitting: "SUBMITTING",
	StateSubmitted:  "SUBMITTED",
	StatePolling:    "POLLING",
	StateReady:      "READY",
	StateFailed:     "FAILED",
})

// String returns the string representation of the QueryState.
func (st QueryState) String() string {
	if name, ok := queryStateNames.Lookup(st); ok {
		return name
	}
	return strconv.Itoa(int(st))
}

// ParseQueryState parses a string into a QueryState.
func ParseQueryState(str string) (QueryState, error) {
	if st, ok := queryStateNames.RLookup(str); ok {
		return st, nil
	}
	return StateIdle, fmt.Errorf("unknown query state %q", str)
}

// MarshalText implements the encoding.TextMarshaler interface.
func (st QueryState) MarshalText() ([]byte, error) {
	return []byte(st.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (st *QueryState) UnmarshalText(text []byte) error {
	var err error
	*st, err = ParseQueryState(string(text))
	return err
}

// Session is a live, health-checked connection to the DataMine endpoint.
// It holds at most one query job at a time: Execute resets all state from the
// previous query before submitting the next. Sessions are safe for concurrent
// use, but fetches are serialized; the result stream is forward-only.
type Session struct {
	client *Client

	state   QueryState
	queryId string
	reasons *utils.Set[string]

	stream  io.ReadCloser
	scanner *bufio.Scanner
	columns []string
	record  Record

	closed bool

	// mu serializes executor and cursor access: one active job per session.
	mu sync.Mutex
}

// ExecStats is a diagnostic snapshot of the executor.
type ExecStats struct {
	// State is the executor's current state.
	State QueryState `json:"state"`

	// QueryId is the server-assigned id of the current job, if any.
	QueryId string `json:"queryId,omitempty"`

	// Reasons is the deduplicated set of non-fatal statuses observed by the
	// last Execute.
	Reasons []string `json:"reasons,omitempty"`
}

// State reports the executor's current state.
func (s *Session) State() QueryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats reports a diagnostic snapshot of the executor.
func (s *Session) Stats() ExecStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := ExecStats{State: s.state, QueryId: s.queryId}
	if s.reasons != nil {
		stats.Reasons = s.reasons.Values()
	}
	return stats
}

// Close releases the session: any open result stream is closed and idle
// connections are released. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.closeStream()
	s.client.httpClient.CloseIdleConnections()
	return err
}

// closeStream closes and forgets the result stream. Caller holds mu.
func (s *Session) closeStream() error {
	if s.stream == nil {
		return nil
	}
	err := s.stream.Close()
	s.stream, s.scanner = nil, nil
	if err != nil {
		log.Debug().Err(err).Msg("failed to close result stream")
	}
	return err
}

// reset clears all state from the previous query. Caller holds mu.
func (s *Session) reset() {
	_ = s.closeStream()
	s.state = StateIdle
	s.queryId = ""
	s.reasons = nil
	s.columns = nil
	s.record = nil
}

// Execute submits a query and polls until its results are ready, returning
// the deduplicated set of non-fatal statuses observed along the way (empty on
// a clean run). The attempt budget (MaxAttempts, default 3) is shared between
// the submission and polling phases; PROCESSING polls never spend an attempt.
//
// On success the session holds an open result stream with the header row
// already parsed; read it with FetchOne, FetchMany, FetchAll, or Download.
// The context must stay valid while the results are being read.
//
// Exhausting the budget during submission fails with *SubmissionError, during
// polling with *ProcessingError; transport failures are fatal immediately.
func (s *Session) Execute(ctx context.Context, query string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("datamine: session is closed")
	}

	s.reset()
	s.reasons = utils.NewSet[string]()
	attempts := s.client.maxAttempts

	s.state = StateSubmitting
	submitted := false
	for !submitted && attempts > 0 {
		reason, id, err := s.submit(ctx, query)
		if err != nil {
			s.state = StateFailed
			return nil, err
		}
		if reason == ReasonCreated && id != "" {
			s.queryId = id
			submitted = true
			break
		}

		log.Debug().Str("reason", reason).Int("remaining", attempts-1).Msg("query submission rejected")
		s.reasons.Add(reason)
		attempts--
		if attempts > 0 {
			if err := sleepContext(ctx, s.client.pollInterval/4); err != nil {
				s.state = StateFailed
				return nil, err
			}
		}
	}
	if !submitted {
		s.state = StateFailed
		return nil, &SubmissionError{Query: query, Reasons: s.reasons.Values()}
	}

	s.state = StateSubmitted
	log.Debug().Str("query_id", s.queryId).Msg("query accepted")

	s.state = StatePolling
	completed := false
	for !completed && attempts > 0 {
		reason, body, err := s.poll(ctx)
		if err != nil {
			s.state = StateFailed
			return nil, err
		}

		switch reason {
		case ReasonOK:
			s.stream = body
			s.scanner = newLineScanner(body)
			s.state = StateReady
			s.columnsLocked() // header is parsed eagerly
			completed = true
		case ReasonProcessing:
			// Still running; polls in this state never spend an attempt.
			log.Debug().Str("query_id", s.queryId).Msg("job still processing")
		default:
			log.Debug().Str("query_id", s.queryId).Str("reason", reason).Int("remaining", attempts-1).Msg("result poll rejected")
			s.reasons.Add(reason)
			attempts--
		}

		if !completed && attempts > 0 {
			if err := sleepContext(ctx, s.client.pollInterval); err != nil {
				s.state = StateFailed
				return nil, err
			}
		}
	}
	if !completed {
		s.state = StateFailed
		return nil, &ProcessingError{QueryId: s.queryId, Query: query, Reasons: s.reasons.Values()}
	}

	return s.reasons.Values(), nil
}

// submit posts the query text and reports the status reason along with the
// job id from the response body, when present. Rejection bodies are not
// guaranteed to be JSON; a missing id is handled by the caller as a failed
// attempt.
func (s *Session) submit(ctx context.Context, query string) (string, string, error) {
	form := url.Values{"query": {query}}
	req, err := s.client.NewRequest(http.MethodPost, s.client.endpoint("query/"), form)
	if err != nil {
		return "", "", err
	}

	resp, err := s.client.do(ctx, req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var payload struct {
		Id string `json:"id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	return statusReason(resp), payload.Id, nil
}

// poll checks the job's results endpoint. On OK the response body is handed
// back open for streaming; on anything else it is drained and closed.
func (s *Session) poll(ctx context.Context) (string, io.ReadCloser, error) {
	req, err := s.client.NewRequest(http.MethodGet, s.client.endpoint("query/"+s.queryId+"/results"), nil)
	if err != nil {
		return "", nil, err
	}

	resp, err := s.client.do(ctx, req)
	if err != nil {
		return "", nil, err
	}

	reason := statusReason(resp)
	if reason == ReasonOK {
		return reason, resp.Body, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		log.Debug().Err(closeErr).Msg("failed to close poll response body")
	}
	return reason, nil, nil
}
