// Package insights runs a small chain of AI agents over a dataset report.
// Each agent sees the summary, the data quality counts and the output of
// the agents that ran before it.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/KaramelBytes/medflow-cli/internal/ai"
	"github.com/KaramelBytes/medflow-cli/internal/analysis"
	"github.com/KaramelBytes/medflow-cli/internal/utils"
)

// maxContextTokens caps the dataset section of each prompt.
const maxContextTokens = 12000

// Agent is one step of the pipeline.
type Agent struct {
	Name string `json:"name"`
	Role string `json:"role"`
	Task string `json:"task"`
}

// DefaultAgents returns the demand, risk and planning agents in run order.
func DefaultAgents() []Agent {
	return []Agent{
		{
			Name: "demand",
			Role: "You are a demand analyst for a medical supply network. Be concise and quantitative.",
			Task: "Describe demand patterns: which customers and categories drive volume, and how volume moves month to month.",
		},
		{
			Name: "risk",
			Role: "You are a supply risk reviewer. Point out concentration and data problems plainly.",
			Task: "Identify supplier concentration, single points of failure and data quality issues that weaken the analysis.",
		},
		{
			Name: "plan",
			Role: "You are an operations planner. Turn findings into an ordered list of actions.",
			Task: "Using the prior analyses, propose up to five concrete actions with the expected effect of each.",
		},
	}
}

// SelectAgents returns the default agents named in names, keeping run order.
// An empty list selects all of them.
func SelectAgents(names []string) ([]Agent, error) {
	all := DefaultAgents()
	if len(names) == 0 {
		return all, nil
	}
	want := map[string]bool{}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		found := false
		for _, a := range all {
			if a.Name == n {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown agent %q", n)
		}
		want[n] = true
	}
	var out []Agent
	for _, a := range all {
		if want[a.Name] {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no agents selected")
	}
	return out, nil
}

// Config controls a pipeline run.
type Config struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// RequestsPerMinute paces runtime calls; <= 0 disables pacing.
	RequestsPerMinute int
	// Agents defaults to DefaultAgents when empty.
	Agents []Agent
	// OnDelta receives streamed chunks when the runtime can stream.
	OnDelta func(agent, delta string)
}

// Prompt is the message pair sent for one agent.
type Prompt struct {
	Agent    string       `json:"agent"`
	Messages []ai.Message `json:"messages"`
	Tokens   int          `json:"tokens"`
}

// Step is the outcome of one agent call.
type Step struct {
	Agent            string `json:"agent"`
	Output           string `json:"output"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	RequestID        string `json:"request_id,omitempty"`
	ElapsedMS        int64  `json:"elapsed_ms"`
}

// Result is a completed run.
type Result struct {
	RunID      string    `json:"run_id"`
	Model      string    `json:"model"`
	Dataset    string    `json:"dataset,omitempty"`
	Steps      []Step    `json:"steps"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Tokens returns the summed prompt and completion tokens of all steps.
func (r *Result) Tokens() (prompt, completion int) {
	for _, s := range r.Steps {
		prompt += s.PromptTokens
		completion += s.CompletionTokens
	}
	return prompt, completion
}

// Markdown renders the run as a document with one section per agent.
func (r *Result) Markdown() string {
	var b strings.Builder
	b.WriteString("# MedFlow insights\n\n")
	if r.Dataset != "" {
		fmt.Fprintf(&b, "Dataset: %s\n", r.Dataset)
	}
	fmt.Fprintf(&b, "Run: %s\nModel: %s\nGenerated: %s\n", r.RunID, r.Model, r.FinishedAt.UTC().Format(time.RFC3339))
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", s.Agent, strings.TrimSpace(s.Output))
	}
	return b.String()
}

// Pipeline runs agents sequentially against a single runtime.
type Pipeline struct {
	rt      ai.Runtime
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New builds a pipeline. A nil logger uses slog.Default.
func New(rt ai.Runtime, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Agents) == 0 {
		cfg.Agents = DefaultAgents()
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	return &Pipeline{
		rt:      rt,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With(slog.String("component", "insights")),
	}
}

// Prompts returns the prompts a run would send without calling the runtime.
// Outputs of earlier agents are shown as placeholders.
func (p *Pipeline) Prompts(rep *analysis.Report) ([]Prompt, error) {
	ctxText, err := datasetContext(rep)
	if err != nil {
		return nil, err
	}
	var prior []Step
	out := make([]Prompt, 0, len(p.cfg.Agents))
	for _, a := range p.cfg.Agents {
		msgs := buildMessages(a, ctxText, prior)
		out = append(out, Prompt{Agent: a.Name, Messages: msgs, Tokens: countTokens(msgs)})
		prior = append(prior, Step{Agent: a.Name, Output: fmt.Sprintf("(output of %s)", a.Name)})
	}
	return out, nil
}

// Run executes every agent in order. The first failing agent aborts the run.
func (p *Pipeline) Run(ctx context.Context, rep *analysis.Report) (*Result, error) {
	if p.rt == nil {
		return nil, errors.New("no AI runtime configured")
	}
	if strings.TrimSpace(p.cfg.Model) == "" {
		return nil, errors.New("model is required")
	}
	ctxText, err := datasetContext(rep)
	if err != nil {
		return nil, err
	}
	res := &Result{
		RunID:     uuid.NewString(),
		Model:     p.cfg.Model,
		Dataset:   rep.Name,
		Steps:     make([]Step, 0, len(p.cfg.Agents)),
		StartedAt: time.Now().UTC(),
	}
	log := p.logger.With(slog.String("run_id", res.RunID), slog.String("model", p.cfg.Model))
	log.InfoContext(ctx, "insights run started", slog.Int("agents", len(p.cfg.Agents)))

	for _, a := range p.cfg.Agents {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("agent %s: %w", a.Name, err)
		}
		step, err := p.runAgent(ctx, a, buildMessages(a, ctxText, res.Steps))
		if err != nil {
			log.ErrorContext(ctx, "agent failed", slog.String("agent", a.Name), slog.String("error", err.Error()))
			return nil, fmt.Errorf("agent %s: %w", a.Name, err)
		}
		log.InfoContext(ctx, "agent finished",
			slog.String("agent", a.Name),
			slog.Int("prompt_tokens", step.PromptTokens),
			slog.Int("completion_tokens", step.CompletionTokens),
			slog.Int64("elapsed_ms", step.ElapsedMS),
		)
		res.Steps = append(res.Steps, step)
	}
	res.FinishedAt = time.Now().UTC()
	return res, nil
}

func (p *Pipeline) runAgent(ctx context.Context, a Agent, msgs []ai.Message) (Step, error) {
	req := ai.GenerateRequest{
		Model:       p.cfg.Model,
		Messages:    msgs,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}
	step := Step{Agent: a.Name, PromptTokens: countTokens(msgs)}
	start := time.Now()

	if sr, ok := p.rt.(ai.StreamRuntime); ok && p.cfg.OnDelta != nil {
		var b strings.Builder
		err := sr.GenerateStream(ctx, req, func(d string) {
			b.WriteString(d)
			p.cfg.OnDelta(a.Name, d)
		})
		if err != nil {
			return Step{}, err
		}
		step.Output = b.String()
		step.CompletionTokens = utils.CountTokens(step.Output)
	} else {
		resp, err := p.rt.Generate(ctx, req)
		if err != nil {
			return Step{}, err
		}
		if len(resp.Choices) == 0 {
			return Step{}, errors.New("no content returned from model")
		}
		step.Output = resp.Text()
		step.RequestID = resp.RequestID
		step.CompletionTokens = utils.CountTokens(step.Output)
		if resp.Usage.PromptTokens > 0 {
			step.PromptTokens = resp.Usage.PromptTokens
		}
		if resp.Usage.CompletionTokens > 0 {
			step.CompletionTokens = resp.Usage.CompletionTokens
		}
	}
	step.ElapsedMS = time.Since(start).Milliseconds()
	return step, nil
}

func datasetContext(rep *analysis.Report) (string, error) {
	if rep == nil {
		return "", errors.New("report is required")
	}
	summary, err := rep.SummaryJSON()
	if err != nil {
		return "", err
	}
	quality, err := json.MarshalIndent(rep.Quality, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal quality: %w", err)
	}
	var b strings.Builder
	if rep.Name != "" {
		fmt.Fprintf(&b, "Dataset: %s\n", rep.Name)
	}
	if rep.Filtered {
		fmt.Fprintf(&b, "Filter: %s (%d of %d rows)\n", rep.Filter, rep.Summary.Rows, rep.Parsed)
	}
	b.WriteString("\n[SUMMARY]\n")
	b.WriteString(summary)
	b.WriteString("\n\n[DATA QUALITY]\n")
	b.Write(quality)
	b.WriteString("\n")
	return utils.TruncateToTokenLimit(b.String(), maxContextTokens), nil
}

func buildMessages(a Agent, ctxText string, prior []Step) []ai.Message {
	var b strings.Builder
	b.WriteString(a.Task)
	b.WriteString("\n\n")
	b.WriteString(ctxText)
	for _, s := range prior {
		fmt.Fprintf(&b, "\n[PRIOR ANALYSIS: %s]\n%s\n", s.Agent, strings.TrimSpace(s.Output))
	}
	return []ai.Message{
		{Role: "system", Content: a.Role},
		{Role: "user", Content: b.String()},
	}
}

func countTokens(msgs []ai.Message) int {
	n := 0
	for _, m := range msgs {
		n += utils.CountTokens(m.Content)
	}
	return n
}
