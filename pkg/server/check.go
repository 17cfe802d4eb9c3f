package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikeboe/osint-helper/pkg/llm"
	"github.com/mikeboe/osint-helper/pkg/research"
	"github.com/mikeboe/osint-helper/pkg/research/tools"
)

// Risk levels reported by a profile check.
const (
	RiskUnknown = "UNKNOWN"
	RiskLow     = "LOW"
	RiskMedium  = "MEDIUM"
	RiskHigh    = "HIGH"
)

// checkPlatforms are the dating and social sites a username is looked up on.
var checkPlatforms = []string{
	"https://instagram.com/{username}",
	"https://twitter.com/{username}",
	"https://facebook.com/{username}",
	"https://tinder.com/@{username}",
	"https://linkedin.com/in/{username}",
}

const safetyQuestion = `Verify this person's identity and provide a dating safety assessment.

Check for:
1. Profile authenticity indicators
2. Potential catfish red flags
3. Inconsistent information
4. Social media presence verification
5. Any safety concerns for dating

Provide a clear risk assessment (LOW/MEDIUM/HIGH) and specific findings.`

var (
	highRiskTerms   = []string{"high risk", "dangerous", "fraud", "scam", "fake"}
	mediumRiskTerms = []string{"medium risk", "suspicious", "inconsistent", "verify"}
)

type CheckRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Username string `json:"username"`
}

type CheckResult struct {
	Email                string              `json:"email,omitempty"`
	Name                 string              `json:"name,omitempty"`
	Location             string              `json:"location,omitempty"`
	Username             string              `json:"username,omitempty"`
	RiskLevel            string              `json:"risk_level"`
	RiskScore            int                 `json:"risk_score"`
	PersonVerification   string              `json:"person_verification,omitempty"`
	UsernameVerification []tools.UsernameHit `json:"username_verification,omitempty"`
	RedFlags             []string            `json:"red_flags"`
	Recommendations      []string            `json:"recommendations"`
}

// Check runs a synchronous profile safety check.
func (s *Service) Check(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	req.Location = strings.TrimSpace(req.Location)
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" && req.Name == "" && req.Username == "" {
		return nil, fmt.Errorf("%w: provide at least one of: email, name, or username", ErrInvalidRequest)
	}
	s.Logger.Info("Profile check requested", "name", req.Name, "username", req.Username, "location", req.Location)

	res := &CheckResult{
		Email:           req.Email,
		Name:            req.Name,
		Location:        req.Location,
		Username:        req.Username,
		RiskLevel:       RiskUnknown,
		RedFlags:        []string{},
		Recommendations: []string{},
	}

	if req.Name != "" {
		question := safetyQuestion
		if req.Location != "" {
			question += "\n\nThe person says they are based in " + req.Location + "."
		}
		lookup := s.Engine.Lookup(ctx, req.Name, question, research.RunOptions{})
		res.PersonVerification = lookup.Answer
		if !llm.IsSentinel(lookup.Answer) {
			res.RiskLevel, res.RiskScore = assessRisk(lookup.Answer)
		}
	}

	if req.Username != "" && s.Usernames != nil {
		hits := s.Usernames.Check(ctx, req.Username, checkPlatforms)
		res.UsernameVerification = hits
		found := 0
		for _, h := range hits {
			if h.Status == "found" {
				found++
			}
		}
		switch {
		case found == 0:
			res.RedFlags = append(res.RedFlags, fmt.Sprintf("Username '%s' not found on any major platforms", req.Username))
		case found >= 3:
			res.Recommendations = append(res.Recommendations, "Profile appears on multiple platforms (good sign)")
		}
	}

	res.Recommendations = append(res.Recommendations, recommendationsFor(res.RiskLevel)...)
	s.Logger.Info("Profile check completed", "risk_level", res.RiskLevel)
	return res, nil
}

// assessRisk classifies a verification report by keyword.
func assessRisk(report string) (string, int) {
	lower := strings.ToLower(report)
	switch {
	case containsAny(lower, highRiskTerms):
		return RiskHigh, 85
	case containsAny(lower, mediumRiskTerms):
		return RiskMedium, 55
	}
	return RiskLow, 25
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func recommendationsFor(level string) []string {
	switch level {
	case RiskHigh:
		return []string{
			"Do NOT meet this person alone",
			"Consider video chat verification before meeting",
			"Trust your instincts - if something feels off, it probably is",
		}
	case RiskMedium:
		return []string{
			"Request additional verification (video chat, ID)",
			"Meet in a public place",
			"Tell a friend where you're going",
		}
	}
	return []string{
		"Still meet in a public place for first date",
		"Share your location with a trusted friend",
		"Trust your instincts",
	}
}
