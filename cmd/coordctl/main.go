// coordctl is a small inspection tool for CoordMesh: it runs scripted
// multi-agent workflows in process and prints the recorded memory graph,
// coordination statistics and recognized patterns.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/coordmesh/coordmesh"
	"github.com/coordmesh/coordmesh/core"
	"github.com/coordmesh/coordmesh/engine"
	"github.com/coordmesh/coordmesh/logging"
)

var (
	flagWorkflows int
	flagKeywords  []string
	flagOutput    string
	flagVerbose   bool
)

func main() {
	root := &cobra.Command{
		Use:   "coordctl",
		Short: "Run and inspect CoordMesh demo workflows",
		Long: `coordctl drives an in-process CoordMesh coordinator through scripted
multi-agent workflows and reports what the memory graph recorded:
step history, sequence links, coordination statistics and patterns.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Run scripted planner/builder/reviewer workflows and print the outcomes",
		RunE:  runDemo,
	}
	demoCmd.Flags().IntVarP(&flagWorkflows, "workflows", "n", 3, "number of workflows to run")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Run the demo workflows and print coordination statistics",
		RunE:  runStats,
	}
	statsCmd.Flags().IntVarP(&flagWorkflows, "workflows", "n", 3, "number of workflows to run")

	patternsCmd := &cobra.Command{
		Use:   "patterns",
		Short: "Run the demo workflows and print pattern recognition results",
		RunE:  runPatterns,
	}
	patternsCmd.Flags().IntVarP(&flagWorkflows, "workflows", "n", 3, "number of workflows to run")
	patternsCmd.Flags().StringSliceVarP(&flagKeywords, "keywords", "k", []string{"react", "typescript"}, "keywords to match against recorded workflows")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Run the demo workflows and write the memory graph snapshot as JSON",
		RunE:  runExport,
	}
	exportCmd.Flags().IntVarP(&flagWorkflows, "workflows", "n", 3, "number of workflows to run")
	exportCmd.Flags().StringVarP(&flagOutput, "output", "o", "-", "output file, - for stdout")

	root.AddCommand(demoCmd, statsCmd, patternsCmd, exportCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newDemoCoordinator() *coordmesh.Coordinator {
	level := logging.LogLevelWarn
	if flagVerbose {
		level = logging.LogLevelDebug
	}

	c := coordmesh.New(func(o *coordmesh.Options) {
		o.Logger = logging.NewSlogLogger(level, "text", false)
		o.CallTimeout = 30 * time.Second
	})

	c.RegisterAgent(newScriptedAgent("planner", "development", []string{"plan", "execute"},
		"Plan a React component in TypeScript"))
	c.RegisterAgent(newScriptedAgent("builder", "development", []string{"build", "execute"},
		"React component built with TypeScript and tests"))
	c.RegisterAgent(newScriptedAgent("reviewer", "development", []string{"review", "execute"},
		"Review passed: component follows React conventions"))

	return c
}

func runWorkflows(c *coordmesh.Coordinator, count int) error {
	steps := []engine.SequentialStep{
		{Agent: "planner"},
		{Agent: "builder", Dependency: "planner"},
		{Agent: "reviewer", Dependency: "builder"},
	}

	for i := 1; i <= count; i++ {
		workflowID := fmt.Sprintf("demo-%d", i)
		result := c.ExecuteSequentialWorkflow(context.Background(), steps, core.Request{
			ID:      workflowID,
			Type:    "development",
			Payload: map[string]any{"task": "ship a component"},
		})
		if !result.Success {
			return fmt.Errorf("workflow %s failed: %s", workflowID, result.Error.Message)
		}
	}
	return nil
}

func runDemo(_ *cobra.Command, _ []string) error {
	c := newDemoCoordinator()
	if err := runWorkflows(c, flagWorkflows); err != nil {
		return err
	}

	fmt.Printf("ran %d workflows with agents: %s\n", flagWorkflows, strings.Join(c.GetRegisteredAgents(), ", "))
	for i := 1; i <= flagWorkflows; i++ {
		workflowID := fmt.Sprintf("demo-%d", i)
		fmt.Printf("\n%s:\n", workflowID)
		for _, step := range c.Memory().WorkflowSteps(workflowID) {
			status := "ok"
			if !step.Success {
				status = "failed: " + step.Error
			}
			fmt.Printf("  %-12s %-10s %6dms  %s\n", step.Phase, step.Agent, step.DurationMs, status)
		}
	}

	state := c.Memory().SystemState()
	fmt.Printf("\nmemory: %d nodes, %d edges, integrity %.2f, consistent %t\n",
		state.NodeCount, state.EdgeCount, state.Integrity, state.Consistency)
	return nil
}

func runStats(_ *cobra.Command, _ []string) error {
	c := newDemoCoordinator()
	if err := runWorkflows(c, flagWorkflows); err != nil {
		return err
	}

	stats := c.GetCoordinationStats()
	fmt.Printf("steps:            %d\n", stats.Steps)
	fmt.Printf("succeeded:        %d\n", stats.Succeeded)
	fmt.Printf("success rate:     %.2f\n", stats.SuccessRate)
	fmt.Printf("avg duration ms:  %.2f\n", stats.AverageDurationMs)
	return nil
}

func runPatterns(_ *cobra.Command, _ []string) error {
	c := newDemoCoordinator()
	if err := runWorkflows(c, flagWorkflows); err != nil {
		return err
	}

	matches := c.IdentifyPatterns(flagKeywords)
	if len(matches) == 0 {
		fmt.Printf("no workflows matched keywords %v\n", flagKeywords)
		return nil
	}
	for _, match := range matches {
		fmt.Printf("%-12s score=%.2f frequency=%.2f technologies=%v\n",
			match.Summary.WorkflowID, match.Score, match.Frequency, match.Summary.Technologies)
	}
	return nil
}

func runExport(_ *cobra.Command, _ []string) error {
	c := newDemoCoordinator()
	if err := runWorkflows(c, flagWorkflows); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c.ExportMemory(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if flagOutput == "-" || flagOutput == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(flagOutput, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	fmt.Printf("snapshot written to %s\n", flagOutput)
	return nil
}

// scriptedAgent answers every request with a fixed result so demo runs are
// deterministic.
type scriptedAgent struct {
	id     string
	caps   []core.Capability
	result string
}

func newScriptedAgent(id, domain string, actions []string, result string) *scriptedAgent {
	return &scriptedAgent{
		id:     id,
		caps:   []core.Capability{{Name: id, Domain: domain, Actions: actions}},
		result: result,
	}
}

func (a *scriptedAgent) ID() string                      { return a.id }
func (a *scriptedAgent) Capabilities() []core.Capability { return a.caps }
func (a *scriptedAgent) CanExecute(_ core.Request) bool  { return true }
func (a *scriptedAgent) Execute(_ context.Context, req core.Request) (*core.Response, error) {
	return &core.Response{ID: req.ID, Success: true, Result: a.result, Timestamp: time.Now().UTC()}, nil
}
