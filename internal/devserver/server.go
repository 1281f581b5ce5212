// Package devserver is an in-memory implementation of the reporting
// backend's HTTP contract for local development and client tests.
package devserver

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/alexanderramin/milestones/internal/domain"
)

// Record is one stored day record.
type Record struct {
	ID         int64
	ScheduleID int64
	Username   string
	Date       domain.Date
	Note       string
	Status     string
}

// Server holds backend state behind a mutex.
type Server struct {
	mu        sync.Mutex
	nextID    int64
	schedules []map[string]any
	owners    map[int64]string
	records   []Record
	employees []map[string]any
	failures  map[string][]int
	calls     map[string]int
	logger    logrus.FieldLogger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger routes request logs to logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates an empty server.
func New(opts ...Option) *Server {
	s := &Server{
		nextID:   100,
		owners:   make(map[int64]string),
		failures: make(map[string][]int),
		calls:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.ErrorLevel)
		s.logger = l
	}
	return s
}

// SeedSchedule stores a raw schedule record for username. The record is
// served verbatim, so tests can exercise field aliases.
func (s *Server) SeedSchedule(username string, rec map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]any, len(rec)+1)
	for k, v := range rec {
		copied[k] = v
	}
	copied["username"] = username
	s.schedules = append(s.schedules, copied)
	for _, key := range []string{"month_quater_id", "id"} {
		if v, ok := rec[key]; ok {
			if id, err := strconv.ParseInt(fmt.Sprint(v), 10, 64); err == nil {
				s.owners[id] = username
				break
			}
		}
	}
}

// SeedEmployee stores a raw directory record.
func (s *Server) SeedEmployee(rec map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees = append(s.employees, rec)
}

// SeedRecord stores a day record as if it had been submitted earlier.
func (s *Server) SeedRecord(rec Record) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == 0 {
		s.nextID++
		rec.ID = s.nextID
	}
	if rec.Username == "" {
		rec.Username = s.owners[rec.ScheduleID]
	}
	s.records = append(s.records, rec)
	return rec.ID
}

// FailNext makes the next calls of op answer with the given HTTP statuses,
// one status per call. Ops: schedules, entries, day_entries, status,
// employees.
func (s *Server) FailNext(op string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], statuses...)
}

// Calls returns how many requests op has received.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Records returns the stored records for username, ordered by id.
func (s *Server) Records(username string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.records {
		if username == "" || r.Username == username {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Handler builds the gin engine serving the API under /api.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), cors.Default(), s.requestLogger())

	api := r.Group("/api")
	api.GET("/schedules", s.guard("schedules", s.listSchedules))
	api.GET("/entries", s.guard("entries", s.listEntries))
	api.POST("/day-entries", s.guard("day_entries", s.submitDayEntries))
	api.POST("/entries/:id/status", s.guard("status", s.changeStatus))
	api.GET("/employees", s.guard("employees", s.listEmployees))
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		}).Info("devserver_request")
	}
}

// guard counts calls and applies injected failures before the handler runs.
func (s *Server) guard(op string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		s.calls[op]++
		var fail int
		if q := s.failures[op]; len(q) > 0 {
			fail, s.failures[op] = q[0], q[1:]
		}
		s.mu.Unlock()

		if fail != 0 {
			c.JSON(fail, gin.H{"message": "injected failure"})
			return
		}
		h(c)
	}
}

func (s *Server) listSchedules(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "username is required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0)
	for _, rec := range s.schedules {
		if rec["username"] == username {
			out = append(out, rec)
		}
	}
	c.JSON(http.StatusOK, out)
}

type entryJSON struct {
	ID       int64  `json:"id"`
	Note     string `json:"note"`
	Status   string `json:"status"`
	Date     string `json:"date"`
	Username string `json:"username"`
}

func (s *Server) listEntries(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "username is required"})
		return
	}
	var scheduleID int64
	if v := c.Query("month_quater_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid month_quater_id"})
			return
		}
		scheduleID = id
	}
	month, _ := strconv.Atoi(c.Query("month"))

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entryJSON, 0)
	for _, r := range s.records {
		if r.Username != username {
			continue
		}
		if scheduleID > 0 && r.ScheduleID != scheduleID {
			continue
		}
		if scheduleID == 0 && month > 0 && int(r.Date.Month) != month {
			continue
		}
		out = append(out, entryJSON{
			ID:       r.ID,
			Note:     r.Note,
			Status:   r.Status,
			Date:     r.Date.BackendString(),
			Username: r.Username,
		})
	}
	c.JSON(http.StatusOK, out)
}

type dayEntriesBody struct {
	Entries []struct {
		Note   string `json:"note" binding:"required"`
		Status string `json:"status" binding:"required,oneof=PENDING INPROCESS COMPLETED"`
	} `json:"entries" binding:"required,min=1,dive"`
	Date       string `json:"date" binding:"required"`
	ScheduleID int64  `json:"month_quater_id" binding:"required,gt=0"`
}

// submitDayEntries replaces the (schedule, date) day set and returns one
// fresh identifier per submitted entry, in submission order.
func (s *Server) submitDayEntries(c *gin.Context) {
	var body dayEntriesBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	date, err := domain.ParseDate(body.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid date"})
		return
	}
	if strings.HasPrefix(body.Date, "0") || strings.Contains(body.Date, "-0") {
		c.JSON(http.StatusBadRequest, gin.H{"message": "date must not be zero padded"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.owners[body.ScheduleID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "unknown month_quater_id"})
		return
	}

	kept := s.records[:0]
	for _, r := range s.records {
		if r.ScheduleID == body.ScheduleID && r.Date == date {
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept

	ids := make([]int64, 0, len(body.Entries))
	for _, e := range body.Entries {
		s.nextID++
		s.records = append(s.records, Record{
			ID:         s.nextID,
			ScheduleID: body.ScheduleID,
			Username:   owner,
			Date:       date,
			Note:       e.Note,
			Status:     e.Status,
		})
		ids = append(ids, s.nextID)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Entries saved", "created_entry_ids": ids})
}

type statusBody struct {
	Status string `json:"status" binding:"required,oneof=PENDING INPROCESS Completed"`
}

func (s *Server) changeStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid entry id"})
		return
	}
	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Status = body.Status
			c.JSON(http.StatusOK, gin.H{"message": "Status updated"})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "entry not found"})
}

func (s *Server) listEmployees(c *gin.Context) {
	dept := strings.ToLower(c.Query("department"))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.employees))
	for _, e := range s.employees {
		if dept != "" && strings.ToLower(fmt.Sprint(e["department"])) != dept {
			continue
		}
		out = append(out, e)
	}
	c.JSON(http.StatusOK, out)
}
