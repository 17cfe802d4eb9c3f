package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/osint-helper/pkg/database"
	"github.com/mikeboe/osint-helper/pkg/llm"
	"github.com/mikeboe/osint-helper/pkg/research"
	"github.com/mikeboe/osint-helper/pkg/research/tools"
)

// Investigation kinds accepted by CreateInvestigation.
const (
	KindLookup   = "lookup"
	KindResearch = "research"
	KindPERA     = "pera"
)

var ErrInvalidRequest = errors.New("invalid request")

const storeTimeout = 5 * time.Second

// Store persists investigations and their logs.
type Store interface {
	LogWriter
	CreateInvestigation(ctx context.Context, kind, subject, question string, params any) (*database.Investigation, error)
	GetInvestigation(ctx context.Context, id uuid.UUID) (*database.Investigation, error)
	ListInvestigations(ctx context.Context, limit int) ([]database.Investigation, error)
	SetInvestigationStatus(ctx context.Context, id uuid.UUID, status string) error
	SaveInvestigationState(ctx context.Context, id uuid.UUID, state any) error
	CompleteInvestigation(ctx context.Context, id uuid.UUID, result any, report string) error
	GetLogs(ctx context.Context, id uuid.UUID) ([]database.LogEntry, error)
}

// Runner runs investigations; *research.ResearchEngine implements it.
type Runner interface {
	Research(ctx context.Context, query, question string, rounds int, opts research.RunOptions) research.LookupResult
	Lookup(ctx context.Context, name, question string, opts research.RunOptions) research.LookupResult
	Investigate(ctx context.Context, objective string, subject research.Subject, opts research.RunOptions) research.Report
}

type UsernameSearcher interface {
	Check(ctx context.Context, username string, sites []string) []tools.UsernameHit
}

type Service struct {
	Store         Store
	Engine        Runner
	Usernames     UsernameSearcher
	DefaultRounds int
	Logger        *slog.Logger

	ctx context.Context
	wg  sync.WaitGroup
}

// NewService returns a service whose background jobs run under ctx.
func NewService(ctx context.Context, store Store, engine Runner, usernames UsernameSearcher, defaultRounds int) *Service {
	return &Service{
		Store:         store,
		Engine:        engine,
		Usernames:     usernames,
		DefaultRounds: defaultRounds,
		Logger:        slog.Default(),
		ctx:           ctx,
	}
}

// Wait blocks until every background job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

type CreateInvestigationRequest struct {
	Kind     string `json:"kind"`
	Subject  string `json:"subject" binding:"required"`
	Question string `json:"question"`
	Rounds   *int   `json:"rounds,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Location string `json:"location,omitempty"`
}

func (r *CreateInvestigationRequest) normalize(defaultRounds int) error {
	r.Kind = strings.ToLower(strings.TrimSpace(r.Kind))
	if r.Kind == "" {
		r.Kind = KindLookup
	}
	switch r.Kind {
	case KindLookup, KindResearch, KindPERA:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, r.Kind)
	}
	r.Subject = strings.TrimSpace(r.Subject)
	if r.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidRequest)
	}
	if r.Rounds == nil {
		r.Rounds = &defaultRounds
	} else if *r.Rounds < 0 {
		return fmt.Errorf("%w: rounds must not be negative", ErrInvalidRequest)
	}
	return nil
}

// CreateInvestigation records a pending investigation and starts it in the background.
func (s *Service) CreateInvestigation(ctx context.Context, req CreateInvestigationRequest) (*database.Investigation, error) {
	if err := req.normalize(s.DefaultRounds); err != nil {
		return nil, err
	}
	inv, err := s.Store.CreateInvestigation(ctx, req.Kind, req.Subject, req.Question, req)
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJob(inv.ID, req)
	}()
	return inv, nil
}

func (s *Service) GetInvestigation(ctx context.Context, id uuid.UUID) (*database.Investigation, error) {
	return s.Store.GetInvestigation(ctx, id)
}

func (s *Service) ListInvestigations(ctx context.Context) ([]database.Investigation, error) {
	return s.Store.ListInvestigations(ctx, 50)
}

func (s *Service) GetLogs(ctx context.Context, id uuid.UUID) ([]database.LogEntry, error) {
	return s.Store.GetLogs(ctx, id)
}

func (s *Service) runJob(id uuid.UUID, req CreateInvestigationRequest) {
	ctx := s.ctx
	logger := slog.New(NewDBLogHandler(s.Store, id, s.Logger.Handler()))

	if err := s.write(func(wctx context.Context) error {
		return s.Store.SetInvestigationStatus(wctx, id, database.StatusRunning)
	}); err != nil {
		s.Logger.Error("Failed to mark investigation running", "id", id, "error", err)
	}

	opts := research.RunOptions{
		Logger: logger,
		OnStateUpdate: func(state research.State) {
			if err := s.write(func(wctx context.Context) error {
				return s.Store.SaveInvestigationState(wctx, id, state)
			}); err != nil {
				s.Logger.Error("Failed to save investigation state", "id", id, "error", err)
			}
		},
	}

	var (
		result any
		report string
	)
	switch req.Kind {
	case KindLookup:
		res := s.Engine.Lookup(ctx, req.Subject, req.Question, opts)
		result, report = res, res.Answer
	case KindResearch:
		question := req.Question
		if question == "" {
			question = req.Subject
		}
		res := s.Engine.Research(ctx, req.Subject, question, *req.Rounds, opts)
		result, report = res, res.Answer
	case KindPERA:
		objective := req.Question
		if objective == "" {
			objective = "Verify identity of " + req.Subject
		}
		r := s.Engine.Investigate(ctx, objective, research.Subject{
			Name:     req.Subject,
			Username: req.Username,
			Email:    req.Email,
			Location: req.Location,
		}, opts)
		result, report = r, research.ReportMarkdown(r)
	}

	if llm.IsSentinel(report) {
		s.failJob(id, logger, report)
		return
	}
	if err := s.write(func(wctx context.Context) error {
		return s.Store.CompleteInvestigation(wctx, id, result, report)
	}); err != nil {
		s.failJob(id, logger, "failed to save result: "+err.Error())
		return
	}
	logger.Info("Investigation completed", "kind", req.Kind)
}

func (s *Service) failJob(id uuid.UUID, logger *slog.Logger, reason string) {
	logger.Error("Investigation failed", "reason", reason)
	if err := s.write(func(wctx context.Context) error {
		return s.Store.SetInvestigationStatus(wctx, id, database.StatusFailed)
	}); err != nil {
		s.Logger.Error("Failed to mark investigation failed", "id", id, "error", err)
	}
}

// write runs a store update detached from the job context, so results and
// status changes are still recorded while the service shuts down.
func (s *Service) write(f func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), storeTimeout)
	defer cancel()
	return f(ctx)
}
