package research

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mikeboe/osint-helper/pkg/llm"
)

// Tool identifies the OSINT capability a sub-query is routed to.
type Tool string

const (
	ToolWebSearch     Tool = "web_search"
	ToolSocialLookup  Tool = "social_lookup"
	ToolImageSearch   Tool = "image_search"
	ToolBreachCheck   Tool = "breach_check"
	ToolPhoneLookup   Tool = "phone_lookup"
	ToolAddressLookup Tool = "address_lookup"
)

// webSearchConfidence is the fixed confidence of a successful web search.
const webSearchConfidence = 0.7

// Stop reasons reported by the loop.
const (
	StopObjectiveMet = "objective_met"
	StopMaxCycles    = "max_cycles_reached"
	StopEmptyPlan    = "empty_plan"
	StopCancelled    = "cancelled"
)

// Subject is the context an investigation starts from. Location is carried
// into reports but not planned on.
type Subject struct {
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Location string `json:"location,omitempty"`
}

type SubQuery struct {
	Query string `json:"query"`
	Tool  Tool   `json:"tool"`
}

type Plan struct {
	Objective string     `json:"objective"`
	Queries   []SubQuery `json:"queries"`
}

type Finding struct {
	Tool       Tool    `json:"tool"`
	Query      string  `json:"query"`
	Success    bool    `json:"success"`
	Data       string  `json:"data,omitempty"`
	Error      string  `json:"error,omitempty"`
	Confidence float64 `json:"confidence"`
}

type Assessment struct {
	ObjectiveMet    bool     `json:"objective_met"`
	Confidence      float64  `json:"confidence_score"`
	Gaps            []string `json:"gaps_identified"`
	Recommendations []string `json:"recommendations"`
}

type Adjustment struct {
	Continue   bool     `json:"continue_investigation"`
	NewQueries []string `json:"new_queries,omitempty"`
	StopReason string   `json:"stop_reason,omitempty"`
}

// Cycle records one Plan, Execute, Review, Adjust pass. Recorded cycles are
// never modified.
type Cycle struct {
	Number     int        `json:"cycle"`
	Plan       Plan       `json:"plan"`
	Results    []Finding  `json:"results"`
	Assessment Assessment `json:"assessment"`
	Adjustment Adjustment `json:"adjustment"`
}

type Report struct {
	Objective          string    `json:"objective"`
	Subject            Subject   `json:"subject"`
	TotalCycles        int       `json:"total_cycles"`
	TotalFindings      int       `json:"total_findings"`
	SuccessfulFindings int       `json:"successful_findings"`
	FinalConfidence    float64   `json:"final_confidence"`
	StopReason         string    `json:"stop_reason"`
	History            []Cycle   `json:"execution_history"`
	Findings           []Finding `json:"findings"`
}

// Investigator runs bounded Plan, Execute, Review, Adjust cycles.
type Investigator struct {
	Lookup    Lookuper
	MaxCycles int
	Logger    *slog.Logger

	// OnCycle, when set, receives each cycle once it is recorded.
	OnCycle func(Cycle)
}

// Investigate runs cycles until the objective is met, the plan is empty or
// MaxCycles is reached.
func (inv *Investigator) Investigate(ctx context.Context, objective string, subject Subject) Report {
	logger := inv.logger().With("objective", objective)
	maxCycles := inv.MaxCycles
	if maxCycles <= 0 {
		maxCycles = DefaultConfig().MaxCycles
	}

	var (
		findings []Finding
		history  []Cycle
		extra    []string
		reason   string
	)
	for cycle := 1; cycle <= maxCycles; cycle++ {
		if ctx.Err() != nil {
			reason = StopCancelled
			break
		}
		logger.Info("PERA cycle", "cycle", cycle, "max", maxCycles)

		plan := planQueries(objective, subject, extra)
		if len(plan.Queries) == 0 {
			reason = StopEmptyPlan
			break
		}

		results := inv.execute(ctx, plan)
		findings = append(findings, results...)
		assessment := review(findings)
		adjustment := adjust(assessment, cycle, maxCycles)

		rec := Cycle{
			Number:     cycle,
			Plan:       plan,
			Results:    results,
			Assessment: assessment,
			Adjustment: adjustment,
		}
		history = append(history, rec)
		if inv.OnCycle != nil {
			inv.OnCycle(rec)
		}
		logger.Info("PERA review",
			"cycle", cycle,
			"objective_met", assessment.ObjectiveMet,
			"confidence", assessment.Confidence)

		if !adjustment.Continue {
			reason = adjustment.StopReason
			break
		}
		extra = adjustment.NewQueries
	}

	return buildReport(objective, subject, findings, history, reason)
}

// planQueries derives one sub-query per populated subject field, falling back
// to the objective. Follow-up queries from the previous cycle run as web searches.
func planQueries(objective string, s Subject, followUps []string) Plan {
	var qs []SubQuery
	if s.Name != "" {
		qs = append(qs, SubQuery{Query: "Verify identity of " + s.Name, Tool: ToolWebSearch})
	}
	if s.Username != "" {
		qs = append(qs, SubQuery{Query: "Search username: " + s.Username, Tool: ToolSocialLookup})
	}
	if s.Email != "" {
		qs = append(qs, SubQuery{Query: "Check breach data for: " + s.Email, Tool: ToolBreachCheck})
	}
	if len(qs) == 0 && objective != "" {
		qs = append(qs, SubQuery{Query: objective, Tool: ToolWebSearch})
	}
	for _, q := range followUps {
		if q != "" {
			qs = append(qs, SubQuery{Query: q, Tool: ToolWebSearch})
		}
	}
	return Plan{Objective: objective, Queries: qs}
}

func (inv *Investigator) execute(ctx context.Context, plan Plan) []Finding {
	results := make([]Finding, 0, len(plan.Queries))
	for _, q := range plan.Queries {
		inv.logger().Info("Executing tool", "tool", q.Tool, "query", q.Query)
		results = append(results, inv.runTool(ctx, q))
	}
	return results
}

func (inv *Investigator) runTool(ctx context.Context, q SubQuery) Finding {
	f := Finding{Tool: q.Tool, Query: q.Query}
	if q.Tool != ToolWebSearch {
		f.Error = fmt.Sprintf("Tool %s not yet implemented", q.Tool)
		return f
	}
	if inv.Lookup == nil {
		f.Error = "web search is not configured"
		return f
	}

	res := inv.Lookup.Lookup(ctx, q.Query, "Investigate: "+q.Query)
	if res.Answer == "" || llm.IsSentinel(res.Answer) {
		f.Error = res.Answer
		if f.Error == "" {
			f.Error = "empty answer"
		}
		return f
	}
	f.Success = true
	f.Data = res.Answer
	f.Confidence = webSearchConfidence
	return f
}

func review(findings []Finding) Assessment {
	var (
		successes int
		total     float64
	)
	for _, f := range findings {
		if f.Success {
			successes++
			total += f.Confidence
		}
	}
	var mean float64
	if successes > 0 {
		mean = total / float64(successes)
	}

	a := Assessment{
		ObjectiveMet: successes >= 2 || mean > 0.8,
		Confidence:   mean,
	}
	switch {
	case successes == 0:
		a.Gaps = []string{"No successful investigations completed"}
	case successes < len(findings):
		a.Gaps = []string{fmt.Sprintf("%d investigations failed", len(findings)-successes)}
	}
	if a.ObjectiveMet {
		a.Recommendations = []string{"Investigation complete"}
	} else {
		a.Recommendations = []string{"Continue investigation"}
	}
	return a
}

func adjust(a Assessment, cycle, maxCycles int) Adjustment {
	if a.ObjectiveMet || a.Confidence > 0.8 {
		return Adjustment{StopReason: StopObjectiveMet}
	}
	if cycle >= maxCycles {
		return Adjustment{StopReason: StopMaxCycles}
	}
	gaps := a.Gaps
	if len(gaps) > 3 {
		gaps = gaps[:3]
	}
	queries := make([]string, 0, len(gaps))
	for _, g := range gaps {
		queries = append(queries, "Investigate: "+g)
	}
	return Adjustment{Continue: true, NewQueries: queries}
}

const maxFindingData = 500

func buildReport(objective string, s Subject, findings []Finding, history []Cycle, reason string) Report {
	r := Report{
		Objective:     objective,
		Subject:       s,
		TotalCycles:   len(history),
		TotalFindings: len(findings),
		StopReason:    reason,
		History:       history,
		Findings:      make([]Finding, 0, len(findings)),
	}
	if len(history) > 0 {
		r.FinalConfidence = history[len(history)-1].Assessment.Confidence
	}
	for _, f := range findings {
		if f.Success {
			r.SuccessfulFindings++
		}
		if runes := []rune(f.Data); len(runes) > maxFindingData {
			f.Data = string(runes[:maxFindingData])
		}
		r.Findings = append(r.Findings, f)
	}
	return r
}

func (inv *Investigator) logger() *slog.Logger {
	if inv.Logger == nil {
		return slog.Default()
	}
	return inv.Logger
}
