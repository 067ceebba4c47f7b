package onboarding

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/trycompai/comp-sub012/internal/llm"
	"github.com/trycompai/comp-sub012/internal/redact"
	"github.com/trycompai/comp-sub012/models"
)

const (
	maxContextChars = 24000
	maxExtracted    = 25
)

const vendorSystemPrompt = `You are a compliance analyst. From the company's answers, list the third party vendors and subprocessors the company uses.
Respond with JSON: {"vendors":[{"name":"","description":"","category":"","website":""}]}.
category is one of cloud, infrastructure, software_as_a_service, finance, marketing, sales, hr, other.
Only include vendors that are named or clearly implied. Use an empty array when there are none.`

const riskSystemPrompt = `You are a compliance analyst. From the company's answers, list the most significant information security risks the company faces.
Respond with JSON: {"risks":[{"title":"","description":"","category":"","department":"","likelihood":3,"impact":3}]}.
likelihood and impact are integers from 1 to 5. category is one of technology, people, operations, compliance, governance, reputational.
Return at most 10 risks.`

const vendorMitigationPrompt = `You are a compliance analyst assessing a vendor for a SOC 2 program.
Respond with JSON: {"mitigation":"","residual_probability":2,"residual_impact":2,"task":{"title":"","description":""}}.
mitigation is a short markdown paragraph describing how the company reduces the risk of using this vendor.
Residual scores are integers from 1 to 5. task is one recurring evidence task that demonstrates the mitigation.`

const riskTreatmentPrompt = `You are a compliance analyst writing a treatment plan for a risk in a SOC 2 program.
Respond with JSON: {"treatment":"","task":{"title":"","description":""}}.
treatment is a short markdown paragraph describing how the company mitigates the risk.
task is one recurring evidence task that demonstrates the treatment.`

const policySystemPrompt = `You are a compliance writer. Tailor the policy template to the company described by its answers.
Keep the structure and headings of the template. Replace placeholders and generic statements with the company's specifics.
Return only the policy as markdown, without commentary or code fences.`

type extractedVendor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Website     string `json:"website"`
}

type extractedRisk struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Department  string `json:"department"`
	Likelihood  int    `json:"likelihood"`
	Impact      int    `json:"impact"`
}

type generatedTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type vendorMitigation struct {
	Mitigation          string        `json:"mitigation"`
	ResidualProbability int           `json:"residual_probability"`
	ResidualImpact      int           `json:"residual_impact"`
	Task                generatedTask `json:"task"`
}

type riskTreatment struct {
	Treatment string        `json:"treatment"`
	Task      generatedTask `json:"task"`
}

// companyContext renders the organization's context entries with personal
// data replaced by placeholders and injection attempts cut out
func companyContext(org *models.Organization, entries []*models.ContextEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", org.Name)
	if org.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", org.Website)
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "\nQ: %s\nA: %s\n", strings.TrimSpace(e.Question), strings.TrimSpace(e.Answer))
		if b.Len() > maxContextChars {
			break
		}
	}
	return redact.Redact(redact.Neutralize(truncate(b.String(), maxContextChars)))
}

func (s *Service) completeJSON(ctx context.Context, system, user string, out interface{}) error {
	resp, err := s.Chat.ChatCompletion(ctx, &llm.ChatRequest{
		Model:       s.model,
		Messages:    []llm.Message{llm.System(system), llm.User(user)},
		Temperature: 0.2,
		JSONMode:    true,
	})
	if err != nil {
		return err
	}
	return llm.DecodeJSON(resp.Content, out)
}

func (s *Service) completeText(ctx context.Context, system, user string) (string, error) {
	resp, err := s.Chat.ChatCompletion(ctx, &llm.ChatRequest{
		Model:       s.model,
		Messages:    []llm.Message{llm.System(system), llm.User(user)},
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	return stripFences(resp.Content), nil
}

func (s *Service) extractVendors(ctx context.Context, companyCtx string) ([]extractedVendor, error) {
	var out struct {
		Vendors []extractedVendor `json:"vendors"`
	}
	if err := s.completeJSON(ctx, vendorSystemPrompt, companyCtx, &out); err != nil {
		return nil, fmt.Errorf("extract vendors: %w", err)
	}
	return dedupeVendors(out.Vendors), nil
}

func (s *Service) extractRisks(ctx context.Context, companyCtx string) ([]extractedRisk, error) {
	var out struct {
		Risks []extractedRisk `json:"risks"`
	}
	if err := s.completeJSON(ctx, riskSystemPrompt, companyCtx, &out); err != nil {
		return nil, fmt.Errorf("extract risks: %w", err)
	}
	risks := make([]extractedRisk, 0, len(out.Risks))
	seen := map[string]bool{}
	for _, r := range out.Risks {
		key := strings.ToLower(strings.TrimSpace(r.Title))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		r.Title = strings.TrimSpace(r.Title)
		risks = append(risks, r)
		if len(risks) == maxExtracted {
			break
		}
	}
	return risks, nil
}

func dedupeVendors(in []extractedVendor) []extractedVendor {
	out := make([]extractedVendor, 0, len(in))
	seen := map[string]bool{}
	for _, v := range in {
		key := strings.ToLower(strings.TrimSpace(v.Name))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		v.Name = strings.TrimSpace(v.Name)
		if !strings.HasPrefix(v.Website, "http://") && !strings.HasPrefix(v.Website, "https://") {
			v.Website = ""
		}
		out = append(out, v)
		if len(out) == maxExtracted {
			break
		}
	}
	return out
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func optionalScore(v int) *int {
	if v < 1 || v > 5 {
		return nil
	}
	return &v
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
