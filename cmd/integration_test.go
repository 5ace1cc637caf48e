package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const deliveries = "SupplierID,CustomerID,Category,Number,Deliverdate\n" +
	"S1,C1,Med,10,20240105\n" +
	"S1,C1,Med,5,20240120\n" +
	"S2,C1,Lab,30,20240203\n" +
	"S1,C2,Med,1,bad\n" +
	"S3,,,0,20240210\n"

// resetFlags clears values and Changed state left over from earlier invocations.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execCmd(args ...string) error {
	resetFlags(rootCmd)
	cfg = nil
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) {
	t.Helper()
	if err := execCmd(args...); err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
}

// isolate points HOME at a temp dir and writes the sample dataset there.
func isolate(t *testing.T) (home, csvPath string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("MEDFLOW_REQUESTS_PER_MINUTE", "0")
	csvPath = filepath.Join(home, "deliveries.csv")
	if err := os.WriteFile(csvPath, []byte(deliveries), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return home, csvPath
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return string(b)
}

func TestCLI_AnalyzeMarkdown(t *testing.T) {
	home, csvPath := isolate(t)
	out := filepath.Join(home, "report.md")
	runCmd(t, "analyze", csvPath, "-o", out)

	body := readFile(t, out)
	for _, want := range []string{"File: deliveries.csv", "Rows: 5", "Total units: 46", "[TOP FLOWS]", "- S2 -> C1: 30 units in 1 shipments"} {
		if !strings.Contains(body, want) {
			t.Fatalf("report missing %q:\n%s", want, body)
		}
	}
}

func TestCLI_AnalyzeFilteredJSON(t *testing.T) {
	home, csvPath := isolate(t)
	out := filepath.Join(home, "report.json")
	runCmd(t, "analyze", csvPath, "--supplier", "S1", "--from", "2024-01-01", "--to", "20240131", "-o", out)

	var rep struct {
		Filtered bool `json:"filtered"`
		Summary  struct {
			Rows       int `json:"rows"`
			TotalUnits int `json:"total_units"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(readFile(t, out)), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !rep.Filtered || rep.Summary.Rows != 2 || rep.Summary.TotalUnits != 15 {
		t.Fatalf("unexpected filtered summary: %+v", rep)
	}
}

func TestCLI_AnalyzeXLSXOutput(t *testing.T) {
	home, csvPath := isolate(t)
	out := filepath.Join(home, "report.xlsx")
	runCmd(t, "analyze", csvPath, "-o", out)
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		t.Fatalf("expected workbook at %s: %v", out, err)
	}

	// The workbook is itself a valid input
	again := filepath.Join(home, "flows.md")
	runCmd(t, "analyze", out, "--sheet-name", "Flows", "-o", again)
	if !strings.Contains(readFile(t, again), "File: report.xlsx") {
		t.Fatalf("expected xlsx re-analysis")
	}
}

func TestCLI_AnalyzeRejectsBadInput(t *testing.T) {
	home, csvPath := isolate(t)
	if err := execCmd("analyze", csvPath, "--from", "01/02/2024"); err == nil {
		t.Fatalf("expected error for bad --from")
	}
	if err := execCmd("analyze", csvPath, "--from", "2024-02-01", "--to", "2024-01-01"); err == nil {
		t.Fatalf("expected error for inverted range")
	}
	if err := execCmd("analyze", csvPath, "--format", "pdf"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if err := execCmd("analyze", filepath.Join(home, "missing.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestCLI_InsightsDryRunAndBudget(t *testing.T) {
	_, csvPath := isolate(t)
	runCmd(t, "insights", csvPath, "--dry-run", "--agents", "demand")

	err := execCmd("insights", csvPath, "--dry-run", "--model", "openai/gpt-4o", "--max-tokens", "4000", "--budget-limit", "0.0001")
	if err == nil || !strings.Contains(err.Error(), "exceeds budget limit") {
		t.Fatalf("expected budget error, got %v", err)
	}
	if err := execCmd("insights", csvPath, "--dry-run", "--agents", "nobody"); err == nil {
		t.Fatalf("expected unknown agent error")
	}
}

func TestCLI_InsightsWithOllama(t *testing.T) {
	home, csvPath := isolate(t)
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]any{"role": "assistant", "content": "volume is concentrated on C1"},
			"prompt_eval_count": 50,
			"eval_count":        8,
		})
	}))
	defer srv.Close()

	out := filepath.Join(home, "insights.md")
	runCmd(t, "insights", csvPath, "--provider", "ollama", "--ollama-host", srv.URL, "--model", "llama3.1:8b", "-o", out)
	if calls != 3 {
		t.Fatalf("expected 3 agent calls, got %d", calls)
	}
	body := readFile(t, out)
	if !strings.Contains(body, "## risk\n\nvolume is concentrated on C1") || !strings.Contains(body, "Model: llama3.1:8b") {
		t.Fatalf("unexpected insights:\n%s", body)
	}
}

func TestCLI_InsightsRequiresAPIKey(t *testing.T) {
	_, csvPath := isolate(t)
	err := execCmd("insights", csvPath, "--provider", "openrouter")
	if err == nil || !strings.Contains(err.Error(), "missing API key") {
		t.Fatalf("expected missing API key error, got %v", err)
	}
}

func TestCLI_ConfigSet(t *testing.T) {
	home, _ := isolate(t)
	runCmd(t, "config", "set", "flow_limit", "3")
	body := readFile(t, filepath.Join(home, ".medflow", "config.yaml"))
	if !strings.Contains(body, "flow_limit: 3") {
		t.Fatalf("config not saved:\n%s", body)
	}
	if err := execCmd("config", "set", "temperature", "9"); err == nil {
		t.Fatalf("expected validation error")
	}
	if err := execCmd("config", "set", "projects_dir", "/tmp"); err == nil {
		t.Fatalf("expected unknown key error")
	}
	runCmd(t, "config", "show")
}

func TestCLI_Models(t *testing.T) {
	isolate(t)
	runCmd(t, "models")
}
