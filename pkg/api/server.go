// Package api implements the read-only HTTP report server `kurobako serve`
// exposes over a finished benchmark.Report: no control surface, no
// rendering — raw JSON only, since plotting/visualization is explicitly out
// of scope.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kurobako-go/kurobako/pkg/benchmark"
	"github.com/kurobako-go/kurobako/pkg/record"
)

// Server exposes a benchmark.Report: the aggregate ranking at /report and
// individual study records by content-hash id at /studies/:id.
type Server struct {
	report  benchmark.Report
	studies map[string]record.StudyRecord
	logger  *slog.Logger
}

// NewServer indexes report's studies by content-hash id so /studies/:id can
// look one up directly.
func NewServer(report benchmark.Report) (*Server, error) {
	studies := make(map[string]record.StudyRecord)
	for _, bySolver := range report.Studies {
		for _, recs := range bySolver {
			for _, rec := range recs {
				id, err := rec.Id()
				if err != nil {
					return nil, err
				}
				studies[id] = rec
			}
		}
	}
	return &Server{report: report, studies: studies, logger: slog.Default()}, nil
}

// Router builds the gin engine with every endpoint mounted.
func (s *Server) Router() *gin.Engine {
	router := gin.Default()
	router.GET("/health", s.health)
	router.GET("/report", s.getReport)
	router.GET("/studies/:id", s.getStudy)
	return router
}

// Listen starts the HTTP server on addr, blocking until it returns an
// error — the same router.Run(":"+port) shape cmd/tarsy/main.go uses.
func (s *Server) Listen(addr string) error {
	s.logger.Info("report server listening", "addr", addr)
	return s.Router().Run(addr)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ReportResponse is /report's JSON body: the run's correlation id plus the
// aggregate Borda/Firsts scores and which problems were excluded from them
// because not every solver participated (§4.5).
type ReportResponse struct {
	RunId            string         `json:"run_id"`
	Borda            map[string]int `json:"borda"`
	Firsts           map[string]int `json:"firsts"`
	ExcludedProblems []string       `json:"excluded_problems,omitempty"`
}

func (s *Server) getReport(c *gin.Context) {
	resp := ReportResponse{
		RunId:  s.report.RunId,
		Borda:  make(map[string]int, len(s.report.Ranking.Borda)),
		Firsts: make(map[string]int, len(s.report.Ranking.Firsts)),
	}
	for solver, score := range s.report.Ranking.Borda {
		resp.Borda[string(solver)] = score
	}
	for solver, score := range s.report.Ranking.Firsts {
		resp.Firsts[string(solver)] = score
	}
	for _, p := range s.report.Ranking.ExcludedProblems {
		resp.ExcludedProblems = append(resp.ExcludedProblems, string(p))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getStudy(c *gin.Context) {
	rec, ok := s.studies[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "study not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
