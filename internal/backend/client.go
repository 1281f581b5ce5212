package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/milestones/internal/domain"
)

// Client is the reporting backend as seen by the sync engine.
type Client interface {
	// ListSchedules returns the schedule history of username, in backend order.
	ListSchedules(ctx context.Context, username string) ([]domain.Schedule, error)

	// ListEntries returns the day records for one user and period.
	ListEntries(ctx context.Context, q EntryQuery) ([]DayRecord, error)

	// SubmitDayEntries persists the entries of one calendar day.
	SubmitDayEntries(ctx context.Context, req DayEntriesRequest) (*DayEntriesResponse, error)

	// ChangeEntryStatus sets the status of a persisted entry.
	ChangeEntryStatus(ctx context.Context, entryID int64, status domain.EntryStatus) error

	// ListEmployees returns directory records, optionally filtered by department.
	ListEmployees(ctx context.Context, department string) ([]domain.Identity, error)
}

type httpClient struct {
	cfg      Config
	http     *http.Client
	observer Observer
}

// NewHTTPClient creates a Client that talks JSON over HTTP.
func NewHTTPClient(cfg Config, observer Observer) Client {
	if observer == nil {
		observer = NoopObserver{}
	}
	return &httpClient{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
		observer: observer,
	}
}

func (c *httpClient) ListSchedules(ctx context.Context, username string) ([]domain.Schedule, error) {
	params := url.Values{}
	params.Set("username", username)

	body, err := c.call(ctx, "list_schedules", http.MethodGet, "/schedules", params, nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeList(body)
	if err != nil {
		return nil, err
	}
	schedules := make([]domain.Schedule, 0, len(raw))
	for _, m := range raw {
		s, err := NormalizeSchedule(m)
		if err != nil {
			continue
		}
		if s.Username == "" {
			s.Username = username
		}
		schedules = append(schedules, s)
	}
	return schedules, nil
}

func (c *httpClient) ListEntries(ctx context.Context, q EntryQuery) ([]DayRecord, error) {
	params := url.Values{}
	params.Set("quater", q.Quarter)
	params.Set("month", strconv.Itoa(q.Month))
	params.Set("department", q.Department)
	params.Set("username", q.Username)
	if q.ScheduleID > 0 {
		params.Set("month_quater_id", strconv.FormatInt(q.ScheduleID, 10))
	}

	body, err := c.call(ctx, "list_entries", http.MethodGet, "/entries", params, nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeList(body)
	if err != nil {
		return nil, err
	}
	records := make([]DayRecord, 0, len(raw))
	for _, m := range raw {
		records = append(records, NormalizeDayRecord(m))
	}
	return records, nil
}

func (c *httpClient) SubmitDayEntries(ctx context.Context, req DayEntriesRequest) (*DayEntriesResponse, error) {
	wire := dayEntriesWire{
		Date:       req.Date.BackendString(),
		ScheduleID: req.ScheduleID,
		Entries:    make([]dayEntryWire, 0, len(req.Entries)),
	}
	for _, e := range req.Entries {
		wire.Entries = append(wire.Entries, dayEntryWire{
			Note:   e.Note,
			Status: StatusFor(EndpointDayEntries, e.Status),
		})
	}

	body, err := c.call(ctx, "submit_day_entries", http.MethodPost, "/day-entries", nil, wire)
	if err != nil {
		return nil, err
	}

	var resp dayEntriesResponseWire
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding day-entries response: %v", ErrInvalidResponse, err)
	}
	out := &DayEntriesResponse{Message: resp.Message}
	for i, v := range resp.CreatedEntryIDs {
		id, err := toInt64(v)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: created_entry_ids[%d] = %v", ErrInvalidResponse, i, v)
		}
		out.CreatedEntryIDs = append(out.CreatedEntryIDs, id)
	}
	return out, nil
}

func (c *httpClient) ChangeEntryStatus(ctx context.Context, entryID int64, status domain.EntryStatus) error {
	if entryID <= 0 {
		return fmt.Errorf("%w: invalid entry id %d", ErrRejected, entryID)
	}
	path := "/entries/" + strconv.FormatInt(entryID, 10) + "/status"
	_, err := c.call(ctx, "change_entry_status", http.MethodPost, path, nil,
		changeStatusWire{Status: StatusFor(EndpointChangeStatus, status)})
	return err
}

func (c *httpClient) ListEmployees(ctx context.Context, department string) ([]domain.Identity, error) {
	params := url.Values{}
	if department != "" {
		params.Set("department", department)
	}
	body, err := c.call(ctx, "list_employees", http.MethodGet, "/employees", params, nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeList(body)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Identity, 0, len(raw))
	for _, m := range raw {
		out = append(out, NormalizeEmployee(m))
	}
	return out, nil
}

// call performs one operation. Reads are retried on transport errors and
// 5xx responses; writes are sent once, since a request that timed out may
// still have been applied. 4xx responses are never retried.
func (c *httpClient) call(ctx context.Context, op, method, path string, params url.Values, payload any) ([]byte, error) {
	start := time.Now()

	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s request: %w", op, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
	defer cancel()

	var (
		body       []byte
		lastErr    error
		statusCode int
		attempts   int
	)
	maxAttempts := 1
	if method == http.MethodGet {
		maxAttempts += c.cfg.MaxRetries
	}
	for attempts < maxAttempts {
		if attempts > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.backoff(attempts - 1)):
			}
		}
		attempts++
		body, statusCode, lastErr = c.doRequest(ctx, method, path, params, data)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil || errors.Is(lastErr, ErrRejected) {
			break
		}
	}

	event := CallEvent{
		Operation:  op,
		Method:     method,
		Path:       path,
		StatusCode: statusCode,
		Attempts:   attempts,
		LatencyMs:  time.Since(start).Milliseconds(),
		Success:    lastErr == nil,
	}

	if lastErr == nil {
		c.observer.OnCallComplete(event)
		return body, nil
	}

	var err error
	switch {
	case ctx.Err() != nil:
		err = fmt.Errorf("%s: %w", op, ErrTimeout)
	case isConnectionError(lastErr):
		err = fmt.Errorf("%s: %w", op, ErrUnavailable)
	case errors.Is(lastErr, ErrRejected):
		err = fmt.Errorf("%s: %w", op, lastErr)
	case attempts > 1:
		err = fmt.Errorf("%s: %w: %v", op, ErrRetryExhausted, lastErr)
	default:
		err = fmt.Errorf("%s: %w", op, lastErr)
	}
	event.ErrorCode = errorCode(err)
	c.observer.OnCallComplete(event)
	return nil, err
}

func (c *httpClient) doRequest(ctx context.Context, method, path string, params url.Values, data []byte) ([]byte, int, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if data != nil {
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, resp.StatusCode, nil
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr *net.OpError
	return errors.As(err, &netErr)
}
