package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cogsched/internal/core"
	"cogsched/internal/logging"
	"cogsched/internal/sim"
)

var (
	runTicks         int
	runPeriod        time.Duration
	runMemoryLatency time.Duration
	runSay           []string
	runTrace         bool
	simOpts          = sim.DefaultOptions()
)

// runCmd drives the scheduler against the simulated agent
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler against a simulated agent",
	Long: `Runs the cognitive cycle at the configured rate against seeded simulated
collaborators, printing every utterance as it is produced and a YAML summary
when the run ends. Ctrl+C stops the loop early; the summary is still printed.`,
	Args: cobra.NoArgs,
	RunE: runSimulation,
}

func runSimulation(cmd *cobra.Command, args []string) error {
	if runPeriod > 0 {
		cfg.Cycle.TargetPeriod = runPeriod.String()
		cfg.Bottleneck.CycleTarget = runPeriod.String()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.ErrOrStderr(), "\ninterrupted, finishing current tick")
			cancel()
		case <-ctx.Done():
		}
	}()

	agent := sim.NewAgent(simOpts, cfg, nil, runMemoryLatency)
	defer agent.Close()

	sched, err := core.NewScheduler(core.ConfigFrom(cfg), agent.Collaborators())
	if err != nil {
		return err
	}
	for _, text := range runSay {
		if err := agent.World.Say(text); err != nil {
			return fmt.Errorf("failed to queue %q: %w", text, err)
		}
	}

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	printf := func(format string, args ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	var wg sync.WaitGroup
	reports := sched.Subscribe(64)
	wg.Add(2)
	go func() {
		defer wg.Done()
		for r := range reports {
			if runTrace {
				printf("%s\n", traceLine(&r))
			}
			if r.Interrupted {
				printf("[%04d] ! interrupted the user: %s\n", r.Cycle, r.Interruption)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for {
			o, ok := sched.AwaitOutput(ctx, time.Second)
			if !ok {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			printf("[%04d] %s: %s\n", o.Cycle, o.Type, o.Text)
		}
	}()

	logging.Boot("running %d ticks at %s", runTicks, cfg.Cycle.GetTargetPeriod())
	runErr := sched.RunCycles(ctx, runTicks)

	cancel()
	sched.Close()
	wg.Wait()
	for {
		o, ok := sched.AwaitOutput(context.Background(), 0)
		if !ok {
			break
		}
		printf("[%04d] %s: %s\n", o.Cycle, o.Type, o.Text)
	}

	if err := writeSummary(out, sched.Summary()); err != nil {
		return err
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func traceLine(r *core.CycleReport) string {
	line := fmt.Sprintf("[%04d] %6.2fms admitted=%d actions=%d",
		r.Cycle, float64(r.Duration)/float64(time.Millisecond), r.Attention.Selected, len(r.Actions))
	if r.Decision != nil {
		line += " gate=" + string(r.Decision.Decision)
	}
	if r.Bottleneck != nil && r.Bottleneck.IsBottlenecked {
		line += fmt.Sprintf(" load=%.2f", r.Bottleneck.OverallLoad)
	}
	if len(r.Errors) > 0 {
		line += fmt.Sprintf(" errors=%d", len(r.Errors))
	}
	if r.Cancelled {
		line += " cancelled"
	}
	return line
}

func writeSummary(w io.Writer, sum core.Summary) error {
	data, err := yaml.Marshal(sum)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	_, err = fmt.Fprintf(w, "---\n%s", data)
	return err
}
