package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/medflow-cli/internal/ai"
	"github.com/KaramelBytes/medflow-cli/internal/export"
	"github.com/KaramelBytes/medflow-cli/internal/insights"
	"github.com/KaramelBytes/medflow-cli/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	insFlags       reportFlags
	insModel       string
	insProvider    string
	insMaxTokens   int
	insTemp        float64
	insDryRun      bool
	insStream      bool
	insJSON        bool
	insOutputPath  string
	insAgents      []string
	insBudgetLimit float64
	insOllamaHost  string
	insTimeoutSec  int
)

var insightsCmd = &cobra.Command{
	Use:   "insights <file>",
	Short: "Ask an AI model for demand, risk and action insights on a delivery dataset",
	Example: `  medflow insights deliveries.csv --dry-run
  medflow insights deliveries.csv --model openai/gpt-4o-mini --max-tokens 800
  medflow insights deliveries.csv --provider ollama --model llama3.1:8b --stream
  medflow insights deliveries.csv --agents demand,risk -o insights.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Flags persist between invocations in one process; reset the ones not set in this parse
		provided := map[string]bool{}
		cmd.Flags().Visit(func(fl *pflag.Flag) { provided[fl.Name] = true })
		if !provided["model"] {
			insModel = ""
		}
		if !provided["provider"] {
			insProvider = ""
		}
		if !provided["max-tokens"] {
			insMaxTokens = 0
		}
		if !provided["dry-run"] {
			insDryRun = false
		}
		if !provided["budget-limit"] {
			insBudgetLimit = 0
		}
		if !provided["agents"] {
			insAgents = nil
		}

		opt, err := insFlags.options(cmd.Flags())
		if err != nil {
			return err
		}
		rep, err := insFlags.load(args[0], opt)
		if err != nil {
			return err
		}
		agents, err := insights.SelectAgents(insAgents)
		if err != nil {
			return err
		}

		model := selectModel(cfg, insModel)
		maxTokens := insMaxTokens
		if maxTokens <= 0 && cfg != nil {
			maxTokens = cfg.MaxTokens
		}
		temp := insTemp
		if !provided["temperature"] && cfg != nil {
			temp = cfg.Temperature
		}
		rpm := 0
		if cfg != nil {
			rpm = cfg.RequestsPerMinute
		}
		pcfg := insights.Config{
			Model:             model,
			MaxTokens:         maxTokens,
			Temperature:       temp,
			RequestsPerMinute: rpm,
			Agents:            agents,
		}

		// Estimate cost up front from the prompts of every agent
		prompts, err := insights.New(nil, pcfg, logger).Prompts(rep)
		if err != nil {
			return err
		}
		sections := make(map[string]string, len(prompts))
		for _, p := range prompts {
			var b strings.Builder
			for _, m := range p.Messages {
				b.WriteString(m.Content)
			}
			sections[p.Agent] = b.String()
		}
		breakdown := utils.TokenBreakdown(sections)
		promptTokens := 0
		for _, n := range breakdown {
			promptTokens += n
		}
		estCost, known := ai.EstimateCostUSD(model, promptTokens, maxTokens*len(prompts))

		if err := enforceBudget(estCost, insBudgetLimit); err != nil {
			return err
		}
		if insDryRun {
			return printDryRun(os.Stdout, prompts, breakdown, model, estCost, known)
		}

		rt, providerName, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: insProvider, OllamaHost: insOllamaHost})
		if err != nil {
			return err
		}
		if insStream {
			if _, ok := rt.(ai.StreamRuntime); ok {
				current := ""
				pcfg.OnDelta = func(agent, delta string) {
					if agent != current {
						current = agent
						fmt.Printf("\n=== %s ===\n", agent)
					}
					fmt.Print(delta)
				}
			} else {
				fmt.Fprintln(os.Stderr, "⚠ Streaming not supported for this provider; falling back to non-streaming.")
			}
		}

		timeout := time.Duration(insTimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		if !insJSON {
			fmt.Printf("⚙ Running %d agent(s) with model=%s (prompt tokens≈%d) ...\n", len(agents), model, promptTokens)
		}
		res, err := insights.New(rt, pcfg, logger).Run(ctx, rep)
		if err != nil {
			return explainRuntimeError(err, providerName, model)
		}
		pt, ct := res.Tokens()

		switch {
		case insJSON:
			b, err := utils.PrettyJSON(res)
			if err != nil {
				return err
			}
			fmt.Println(string(b))
		case pcfg.OnDelta != nil:
			fmt.Println()
		default:
			fmt.Println(res.Markdown())
		}
		if !insJSON {
			if cost, ok := ai.EstimateCostUSD(model, pt, ct); ok {
				fmt.Printf("✓ Run %s finished: %d prompt + %d completion tokens (≈$%.4f)\n", res.RunID, pt, ct, cost)
			} else {
				fmt.Printf("✓ Run %s finished: %d prompt + %d completion tokens\n", res.RunID, pt, ct)
			}
		}

		if insOutputPath == "" {
			return nil
		}
		if export.FormatFromPath(insOutputPath) == export.FormatJSON {
			err = export.WriteJSON(insOutputPath, res)
		} else {
			err = utils.SafeWriteFile(insOutputPath, []byte(res.Markdown()))
		}
		if err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		if !insJSON {
			fmt.Printf("💾 Saved insights to %s\n", insOutputPath)
		}
		return nil
	},
}

func printDryRun(w io.Writer, prompts []insights.Prompt, breakdown map[string]int, model string, estCost float64, known bool) error {
	fmt.Fprintf(w, "Dry run: %d agent(s), model=%s\n", len(prompts), model)
	total := 0
	for _, p := range prompts {
		total += breakdown[p.Agent]
		fmt.Fprintf(w, "\n=== %s (≈%d tokens) ===\n", p.Agent, breakdown[p.Agent])
		for _, m := range p.Messages {
			fmt.Fprintf(w, "[%s]\n%s\n", m.Role, m.Content)
		}
	}
	fmt.Fprintf(w, "\nTotal prompt tokens≈%d\n", total)
	if known {
		fmt.Fprintf(w, "Estimated max cost≈$%.4f\n", estCost)
	} else {
		fmt.Fprintln(w, "Estimated cost: unknown model pricing")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(insightsCmd)
	insFlags.register(insightsCmd.Flags())
	insightsCmd.Flags().StringVar(&insModel, "model", "", "model name (default from config)")
	insightsCmd.Flags().StringVar(&insProvider, "provider", "", "AI provider: openrouter|ollama (default from config)")
	insightsCmd.Flags().IntVar(&insMaxTokens, "max-tokens", 0, "max completion tokens per agent (default from config)")
	insightsCmd.Flags().Float64Var(&insTemp, "temperature", 0.3, "sampling temperature (default from config)")
	insightsCmd.Flags().BoolVar(&insDryRun, "dry-run", false, "print the prompts and cost estimate without calling the model")
	insightsCmd.Flags().BoolVar(&insStream, "stream", false, "stream model output as it arrives")
	insightsCmd.Flags().BoolVar(&insJSON, "json", false, "print the run result as JSON")
	insightsCmd.Flags().StringVarP(&insOutputPath, "output", "o", "", "write insights to a file (.json writes the full result)")
	insightsCmd.Flags().StringSliceVar(&insAgents, "agents", nil, "subset of agents to run: demand,risk,plan")
	insightsCmd.Flags().Float64Var(&insBudgetLimit, "budget-limit", 0, "abort when the estimated cost exceeds this many USD")
	insightsCmd.Flags().StringVar(&insOllamaHost, "ollama-host", "", "Ollama host (default from config)")
	insightsCmd.Flags().IntVar(&insTimeoutSec, "timeout-sec", 300, "overall timeout for the run")
}
