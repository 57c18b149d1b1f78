// Command solve runs one solver on a JSON instance file and prints the routes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli"

	"antroute/internal/api"
	"antroute/internal/config"
	"antroute/internal/cvrp"
	"antroute/internal/model"
	"antroute/internal/opt"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "solve"
	app.Usage = "solve a CVRP instance with greedy or ant colony search"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "instance, i", Usage: "path to the instance JSON (same shape as the API's instance object)"},
		cli.StringFlag{Name: "algorithm, a", Usage: "one of " + strings.Join(opt.Algorithms(), ", ")},
		cli.Int64Flag{Name: "seed, s", Usage: "run seed; 0 uses the configured seed"},
		cli.IntFlag{Name: "ants", Usage: "ants per iteration (overrides config)"},
		cli.IntFlag{Name: "iterations", Usage: "iterations (overrides config)"},
		cli.IntFlag{Name: "workers, w", Usage: "concurrent ants; 0 means GOMAXPROCS"},
		cli.BoolFlag{Name: "ants-per-vertex", Usage: "use one ant per vertex"},
		cli.StringFlag{Name: "config, c", Usage: "YAML config file (default $SOLVER_CONFIG or config.yaml)"},
		cli.StringFlag{Name: "progress, p", Usage: "write per-iteration progress as JSON to this file"},
		cli.StringFlag{Name: "out, o", Usage: "write the run summary as JSON to this file"},
		cli.DurationFlag{Name: "timeout", Usage: "stop after this long and keep the best solution so far"},
		cli.BoolFlag{Name: "quiet, q", Usage: "suppress solver log lines"},
	}
	app.Action = run
	return app
}

func run(c *cli.Context) error {
	_ = godotenv.Load()
	path := c.String("instance")
	if path == "" {
		return errors.New("--instance is required")
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var in model.InstanceIn
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	inst, err := api.BuildInstance(in)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	req := model.RunRequest{Algorithm: c.String("algorithm"), Seed: c.Int64("seed"), Workers: c.Int("workers"), Params: &model.ParamsIn{}}
	if c.IsSet("ants") {
		n := c.Int("ants")
		req.Params.AntCount = &n
	}
	if c.IsSet("iterations") {
		n := c.Int("iterations")
		req.Params.MaxIterations = &n
	}
	alg, p, mm, err := api.ResolveParams(cfg.Solver, req)
	if err != nil {
		return err
	}
	seed := req.Seed
	if seed == 0 {
		seed = cfg.Solver.Seed
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if c.Bool("quiet") {
		logger = log.New(io.Discard, "", 0)
	}
	plog := &opt.ProgressLog{}
	solver, err := opt.New(alg, p, mm,
		opt.WithSeed(seed),
		opt.WithWorkers(req.Workers),
		opt.WithObserver(plog),
		opt.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	if eng, ok := solver.(*opt.Engine); ok && (c.Bool("ants-per-vertex") || cfg.Solver.AntsPerVertex) {
		eng.SetAntCount(inst.Graph.VertexCount())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := c.Duration("timeout"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	start := time.Now()
	sol, err := solver.Solve(ctx, inst)
	elapsed := time.Since(start)
	interrupted := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	if err != nil && !(interrupted && sol != nil) {
		return err
	}
	if interrupted {
		logger.Printf("stopped early after %s: %v", elapsed.Round(time.Millisecond), err)
	}

	printSolution(os.Stdout, sol)
	fmt.Fprintf(os.Stdout, "Elapsed %s\n", elapsed.Round(time.Millisecond))
	if in.OptimalCost != nil && *in.OptimalCost > 0 {
		fmt.Fprintf(os.Stdout, "Gap %.2f%%\n", (sol.Cost()-*in.OptimalCost) / *in.OptimalCost * 100)
	}

	if out := c.String("progress"); out != "" {
		if err := writeProgress(out, plog.Records()); err != nil {
			return err
		}
	}
	if out := c.String("out"); out != "" {
		summary := model.Run{
			Name:           inst.Name,
			Status:         model.RunCompleted,
			Algorithm:      alg,
			Instance:       inst.Name,
			VertexCount:    inst.Graph.VertexCount(),
			Seed:           seed,
			Cost:           sol.Cost(),
			RouteCount:     sol.RouteCount(),
			Routes:         sol.RouteIDs(),
			ElapsedMs:      elapsed.Milliseconds(),
			AvgUtilization: sol.AverageUtilization(),
			OptimalCost:    in.OptimalCost,
		}
		if interrupted {
			summary.Status = model.RunCancelled
		}
		if err := writeJSONFile(out, summary); err != nil {
			return err
		}
	}
	return nil
}

// printSolution writes one "Route #k:" line per route listing its customers,
// followed by the total cost.
func printSolution(w io.Writer, sol *cvrp.Solution) {
	for i, r := range sol.Routes() {
		ids := r.IDs()[1:]
		parts := make([]string, len(ids))
		for j, id := range ids {
			parts[j] = fmt.Sprint(id)
		}
		fmt.Fprintf(w, "Route #%d: %s\n", i+1, strings.Join(parts, " "))
	}
	fmt.Fprintf(w, "Cost %.2f\n", sol.Cost())
}

func writeProgress(path string, records []opt.Progress) error {
	pts := make([]model.ProgressPoint, len(records))
	for i, r := range records {
		pts[i] = model.ProgressPoint{Iteration: r.Iteration, ElapsedMs: r.Elapsed.Milliseconds(), BestCost: r.BestCost, BestRoutes: r.BestRoutes}
	}
	return writeJSONFile(path, pts)
}

func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
