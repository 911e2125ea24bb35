// simctl is the thin command-line front end over the simulation engine:
// enough surface to run, step and export a campus without the out-of-scope
// HTTP/WebSocket layer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/schoolsim/campus-engine/internal/agentgen"
	"github.com/schoolsim/campus-engine/internal/catalogue"
	"github.com/schoolsim/campus-engine/internal/clock"
	"github.com/schoolsim/campus-engine/internal/config"
	"github.com/schoolsim/campus-engine/internal/llm"
	"github.com/schoolsim/campus-engine/internal/llmmock"
	"github.com/schoolsim/campus-engine/internal/llmopenai"
	"github.com/schoolsim/campus-engine/internal/memstore"
	"github.com/schoolsim/campus-engine/internal/runner"
	"github.com/schoolsim/campus-engine/internal/telemetry"
	"github.com/schoolsim/campus-engine/internal/world"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "simctl",
		Short:         "Drive the campus simulation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env", "", "path to a .env file (default ./.env)")

	root.AddCommand(newRunCmd(&envFile))
	root.AddCommand(newStepCmd(&envFile))
	root.AddCommand(newExportCmd(&envFile))
	return root
}

// engine bundles everything a subcommand needs after setup.
type engine struct {
	cfg    config.Config
	logs   *telemetry.RunLogs
	runner *runner.Runner
}

func (e *engine) close() {
	if e.logs != nil {
		e.logs.Sync()
		_ = e.logs.Close()
	}
}

func setup(envFile string, agents int) (*engine, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	logs, err := telemetry.NewRunLogs(telemetry.Config{
		BaseDir:        cfg.LogDir,
		AlsoToStderr:   cfg.AlsoToStderr,
		EnableDebugLog: cfg.EnableDebugLog,
	})
	if err != nil {
		return nil, err
	}

	cat := catalogue.Default()
	if cfg.CatalogueFile != "" {
		cat, err = catalogue.LoadFile(cfg.CatalogueFile)
		if err != nil {
			return nil, err
		}
	}

	seed := time.Now().UnixNano()
	w := world.New(cat.Locations, cat.Schedule, seed)
	ck := clock.New(clock.Config{StepHours: cfg.TimeStepHours})

	var provider llm.Provider
	if cfg.UseMockLLM || cfg.TextModelKey == "" {
		provider = llmmock.New()
	} else {
		provider = llmopenai.New(
			llmopenai.WithAPIKey(cfg.TextModelKey),
			llmopenai.WithBaseURL(cfg.TextModelURL),
			llmopenai.WithTextModel(cfg.TextModel),
			llmopenai.WithEmbeddingModel(cfg.EmbeddingModel),
			llmopenai.WithLogger(logs.Log),
		)
	}

	r := runner.New(cfg, w, ck, memstore.New(), provider, logs.Log, seed)

	if agents > cfg.MaxAgents {
		agents = cfg.MaxAgents
	}
	start := startLocation(cat)
	for _, a := range agentgen.New(seed).GenerateDiverse(agents, start) {
		if err := r.AddAgent(a); err != nil {
			return nil, err
		}
	}

	return &engine{cfg: cfg, logs: logs, runner: r}, nil
}

// startLocation picks where freshly generated agents wake up: the first
// dormitory, falling back to the first catalogue location.
func startLocation(cat catalogue.Catalogue) world.LocationId {
	for _, l := range cat.Locations {
		if l.Type == world.LocationDormitory {
			return l.Id
		}
	}
	if len(cat.Locations) > 0 {
		return cat.Locations[0].Id
	}
	return ""
}

func newRunCmd(envFile *string) *cobra.Command {
	var agents int
	var speed string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := setup(*envFile, agents)
			if err != nil {
				return err
			}
			defer eng.close()

			if sp, ok := parseSpeed(speed); ok {
				eng.runner.SetSpeed(sp)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigs
				fmt.Fprintln(os.Stderr, "stopping...")
				eng.runner.Stop()
			}()

			sub := eng.runner.Subscribe()
			go func() {
				for u := range sub {
					if u.Kind != runner.UpdateTick {
						continue
					}
					fmt.Printf("%s  events=%d agents=%d\n", u.Time, len(u.Events), len(u.Snapshot.Agents))
					for _, e := range u.Events {
						if e.Narrative != "" {
							fmt.Printf("  [%s] %s\n", e.Type, e.Narrative)
						}
					}
				}
			}()

			return eng.runner.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&agents, "agents", 5, "number of agents to generate")
	cmd.Flags().StringVar(&speed, "speed", "normal", "paused|normal|fast|veryfast|maximum|unlimited")
	return cmd
}

func newStepCmd(envFile *string) *cobra.Command {
	var agents, ticks int

	cmd := &cobra.Command{
		Use:   "step",
		Short: "Execute a fixed number of ticks and print each result",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := setup(*envFile, agents)
			if err != nil {
				return err
			}
			defer eng.close()

			for i := 0; i < ticks; i++ {
				res, err := eng.runner.Step(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("tick %d  %s  events=%d warnings=%d\n", res.Tick, res.Time, len(res.Events), len(res.Warnings))
				for _, w := range res.Warnings {
					fmt.Printf("  warn: %s\n", w)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&agents, "agents", 5, "number of agents to generate")
	cmd.Flags().IntVar(&ticks, "ticks", 1, "number of ticks to execute")
	return cmd
}

func newExportCmd(envFile *string) *cobra.Command {
	var agents, ticks int
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Step the simulation and write the JSON export",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := setup(*envFile, agents)
			if err != nil {
				return err
			}
			defer eng.close()

			for i := 0; i < ticks; i++ {
				if _, err := eng.runner.Step(cmd.Context()); err != nil {
					return err
				}
			}

			doc, err := eng.runner.Export()
			if err != nil {
				return err
			}
			if out == "" {
				_, err = os.Stdout.Write(doc)
				return err
			}
			return os.WriteFile(out, doc, 0o644)
		},
	}
	cmd.Flags().IntVar(&agents, "agents", 5, "number of agents to generate")
	cmd.Flags().IntVar(&ticks, "ticks", 0, "ticks to execute before exporting")
	cmd.Flags().StringVar(&out, "out", "", "write to file instead of stdout")
	return cmd
}

func parseSpeed(s string) (runner.Speed, bool) {
	switch s {
	case "paused":
		return runner.SpeedPaused, true
	case "normal":
		return runner.SpeedNormal, true
	case "fast":
		return runner.SpeedFast, true
	case "veryfast":
		return runner.SpeedVeryFast, true
	case "maximum":
		return runner.SpeedMaximum, true
	case "unlimited":
		return runner.SpeedUnlimited, true
	default:
		return runner.SpeedNormal, false
	}
}
