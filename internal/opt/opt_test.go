package opt

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"antroute/internal/cvrp"
	"antroute/internal/graph"
)

// fiveVertex: depot at the origin, customers reachable in a single loop
// 0 -> 1 -> 2 -> 3 -> 4 -> 0 of length 3+4+3+4+8 = 22.
func fiveVertex(t *testing.T, capacity int) *cvrp.Instance {
	t.Helper()
	g := graph.New()
	for _, v := range []graph.Vertex{
		{ID: 0, Depot: true},
		{ID: 1, X: 0, Y: 3, Demand: 1},
		{ID: 2, X: 4, Y: 3, Demand: 2},
		{ID: 3, X: 4, Y: 0, Demand: 3},
		{ID: 4, X: 8, Y: 0, Demand: 4},
	} {
		_, err := g.AddVertex(v)
		require.NoError(t, err)
	}
	return &cvrp.Instance{Name: "five", Graph: g, Capacity: capacity}
}

// randomInstance places n customers on distinct grid points.
func randomInstance(t *testing.T, n int, seed int64, capacity int, maxLen float64) *cvrp.Instance {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	g := graph.New()
	_, err := g.AddVertex(graph.Vertex{ID: 0, X: 50, Y: 50, Depot: true})
	require.NoError(t, err)
	used := map[[2]int]bool{{50, 50}: true}
	for id := 1; id <= n; {
		x, y := rng.Intn(100), rng.Intn(100)
		if used[[2]int{x, y}] {
			continue
		}
		used[[2]int{x, y}] = true
		_, err := g.AddVertex(graph.Vertex{ID: id, X: x, Y: y, Demand: 1 + rng.Intn(9)})
		require.NoError(t, err)
		id++
	}
	return &cvrp.Instance{Name: "random", Graph: g, Capacity: capacity, MaxRouteLength: maxLen}
}

func smallParams() Params {
	p := DefaultParams()
	p.AntCount = 8
	p.MaxIterations = 12
	return p
}

func requireCoverage(t *testing.T, in *cvrp.Instance, s *cvrp.Solution) {
	t.Helper()
	require.NoError(t, s.Validate())
	var got []int
	for _, r := range s.Routes() {
		require.True(t, r.Valid())
		got = append(got, r.IDs()[1:]...)
	}
	var want []int
	for _, c := range in.Graph.Customers() {
		want = append(want, c.ID)
	}
	sort.Ints(got)
	sort.Ints(want)
	require.Equal(t, want, got)
}

func TestGreedyHandComputedTour(t *testing.T) {
	in := fiveVertex(t, 100)
	s, err := NewGreedy().Solve(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 1, s.RouteCount())
	require.Equal(t, []int{0, 1, 2, 3, 4}, s.Routes()[0].IDs())
	require.InDelta(t, 22.0, s.Cost(), 1e-9)
}

func TestGreedyCapacityForcesSecondRoute(t *testing.T) {
	in := fiveVertex(t, 6)
	s, err := NewGreedy().Solve(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, [][]int{{0, 1, 2, 3}, {0, 4}}, s.RouteIDs())
	require.InDelta(t, 30.0, s.Cost(), 1e-9)

	single, err := cvrp.RouteFromIDs(in.Graph, []int{0, 1, 2, 3, 4}, in.Capacity, in.RouteLimit())
	require.NoError(t, err)
	require.False(t, cvrp.NewSolution(in.Graph, []*cvrp.Route{single}).Valid())
}

func TestEverySolverCoversAllCustomers(t *testing.T) {
	for _, name := range Algorithms() {
		t.Run(name, func(t *testing.T) {
			in := randomInstance(t, 20, 3, 25, 0)
			s, err := New(name, smallParams(), DefaultMaxMinParams(), WithSeed(11))
			require.NoError(t, err)
			require.Equal(t, name, s.Name())
			sol, err := s.Solve(context.Background(), in)
			require.NoError(t, err)
			requireCoverage(t, in, sol)
			total := 0
			for _, c := range in.Graph.Customers() {
				total += c.Demand
			}
			require.GreaterOrEqual(t, sol.RouteCount()*in.Capacity, total)
		})
	}
}

func TestSolversRespectRouteLength(t *testing.T) {
	in := randomInstance(t, 15, 5, 1000, 160)
	for _, name := range Algorithms() {
		s, err := New(name, smallParams(), DefaultMaxMinParams(), WithSeed(2))
		require.NoError(t, err)
		sol, err := s.Solve(context.Background(), in)
		require.NoError(t, err, name)
		for _, r := range sol.Routes() {
			require.LessOrEqual(t, r.Length(), 160.0, name)
		}
	}
}

func TestSameSeedSameSolution(t *testing.T) {
	for _, name := range []string{AlgorithmACO, AlgorithmACO2Opt, AlgorithmMaxMin} {
		t.Run(name, func(t *testing.T) {
			run := func(workers int) *cvrp.Solution {
				s, err := New(name, smallParams(), DefaultMaxMinParams(), WithSeed(42), WithWorkers(workers))
				require.NoError(t, err)
				sol, err := s.Solve(context.Background(), randomInstance(t, 18, 9, 30, 0))
				require.NoError(t, err)
				return sol
			}
			a, b, c := run(1), run(1), run(6)
			require.Equal(t, a.RouteIDs(), b.RouteIDs())
			require.Equal(t, a.Cost(), b.Cost())
			require.Equal(t, a.RouteIDs(), c.RouteIDs(), "worker count must not change the result")
			require.Equal(t, a.Cost(), c.Cost())
		})
	}
}

func TestUnservableCustomerFailsFast(t *testing.T) {
	in := fiveVertex(t, 3) // customer 4 demands 4
	for _, name := range Algorithms() {
		s, err := New(name, smallParams(), DefaultMaxMinParams())
		require.NoError(t, err)
		_, err = s.Solve(context.Background(), in)
		require.True(t, errors.Is(err, cvrp.ErrUnservableCustomer), name)
	}
}

func TestUnknownAlgorithm(t *testing.T) {
	_, err := New("tabu", DefaultParams(), DefaultMaxMinParams())
	require.True(t, errors.Is(err, ErrUnknownAlgorithm))
}

func TestInvalidParamsRejected(t *testing.T) {
	p := smallParams()
	p.EvaporationRate = 1
	_, err := NewAntColony(p).Solve(context.Background(), fiveVertex(t, 100))
	require.True(t, errors.Is(err, ErrInvalidParams))

	mm := DefaultMaxMinParams()
	mm.PheromoneMin, mm.PheromoneMax = 5, 1
	_, err = NewAntColonyMaxMin(smallParams(), mm).Solve(context.Background(), fiveVertex(t, 100))
	require.True(t, errors.Is(err, ErrInvalidParams))
}

type cancelAfter struct {
	n      int
	cancel context.CancelFunc
	ProgressLog
}

func (c *cancelAfter) RecordIteration(p Progress) {
	c.ProgressLog.RecordIteration(p)
	if p.Iteration+1 == c.n {
		c.cancel()
	}
}

func TestCancelledRunReturnsBestSoFar(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	obs := &cancelAfter{n: 3, cancel: cancel}

	sol, err := NewAntColony(smallParams(), WithObserver(obs), WithSeed(5)).Solve(ctx, randomInstance(t, 12, 1, 30, 0))
	require.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, sol)
	require.NoError(t, sol.Validate())
	require.Len(t, obs.Records(), 3)
}

func TestProgressRecordedEveryIteration(t *testing.T) {
	var plog ProgressLog
	p := smallParams()
	_, err := NewAntColony2Opt(p, WithObserver(&plog)).Solve(context.Background(), randomInstance(t, 10, 4, 20, 0))
	require.NoError(t, err)

	recs := plog.Records()
	require.Len(t, recs, p.MaxIterations)
	for i, r := range recs {
		require.Equal(t, i, r.Iteration)
		require.Greater(t, r.BestCost, 0.0)
		if i > 0 {
			require.LessOrEqual(t, r.BestCost, recs[i-1].BestCost, "best cost never increases")
		}
	}
}

type dropLastRoute struct{}

func (dropLastRoute) Refine(s *cvrp.Solution) *cvrp.Solution {
	rs := s.Routes()
	return cvrp.NewSolution(s.Graph(), rs[:len(rs)-1])
}

func TestIntegrityViolationAbortsRun(t *testing.T) {
	e := newEngine("broken", smallParams(), dropLastRoute{}, AntSystem{})
	_, err := e.Solve(context.Background(), fiveVertex(t, 100))
	require.True(t, errors.Is(err, cvrp.ErrCustomerMissing))
}

func TestSetAntCount(t *testing.T) {
	e := NewAntColony(DefaultParams())
	e.SetAntCount(5)
	require.Equal(t, 5, e.Params().AntCount)
	p := e.Params()
	p.MaxIterations = 3
	e.SetParams(p)
	require.Equal(t, 3, e.Params().MaxIterations)
}

func TestTwoOptNeverLengthens(t *testing.T) {
	in := randomInstance(t, 25, 8, 60, 0)
	require.NoError(t, in.Validate())
	for seed := int64(0); seed < 20; seed++ {
		sol, err := constructSolution(in, DefaultParams(), rand.New(rand.NewSource(seed)))
		require.NoError(t, err)
		refined := TwoOpt{}.Refine(sol)
		require.Equal(t, sol.RouteCount(), refined.RouteCount())
		for i, r := range sol.Routes() {
			nr := refined.Routes()[i]
			require.LessOrEqual(t, nr.Length(), r.Length()+1e-9)
			require.True(t, nr.Valid())
			before, after := r.IDs(), nr.IDs()
			require.Equal(t, before[0], after[0], "depot stays first")
			sort.Ints(before)
			sort.Ints(after)
			require.Equal(t, before, after)
		}
	}
}

func TestTwoOptUncrossesRoute(t *testing.T) {
	in := fiveVertex(t, 100)
	// 0 -> 1 -> 3 -> 2 -> 4 crosses itself
	r, err := cvrp.RouteFromIDs(in.Graph, []int{0, 1, 3, 2, 4}, 100, math.Inf(1))
	require.NoError(t, err)
	out := improveRoute(r)
	// 24 -> 22 -> 20 (0 -> 1 -> 2 -> 4 -> 3), the optimal loop
	require.Less(t, out.Length(), r.Length())
	require.InDelta(t, 20.0, out.Length(), 1e-9)
	require.Equal(t, []int{0, 1, 2, 4, 3}, out.IDs())

	short, err := cvrp.RouteFromIDs(in.Graph, []int{0, 3, 1}, 100, math.Inf(1))
	require.NoError(t, err)
	require.Same(t, short, improveRoute(short))
}

func TestEvaporationMonotonic(t *testing.T) {
	in := fiveVertex(t, 100)
	p := DefaultParams()
	AntSystem{}.Reset(in.Graph, p)
	prev := map[*graph.Edge]float64{}
	for _, e := range in.Graph.Edges() {
		prev[e] = e.Pheromone()
	}
	for i := 0; i < 50; i++ {
		AntSystem{}.Update(in.Graph, p, Iteration{Index: i})
		for _, e := range in.Graph.Edges() {
			require.Less(t, e.Pheromone(), prev[e])
			require.Greater(t, e.Pheromone(), 0.0)
			prev[e] = e.Pheromone()
		}
	}
}

func TestDepositCoversReturnEdge(t *testing.T) {
	in := fiveVertex(t, 100)
	in.Graph.FillPheromone(0)
	s, err := cvrp.SolutionFromRoutes(in.Graph, 100, 0, [][]int{{0, 1, 2, 3, 4}}, nil)
	require.NoError(t, err)
	deposit(in.Graph, s, 22)

	for _, pair := range [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 0}} {
		e, ok := in.Graph.Edge(pair[0], pair[1])
		require.True(t, ok)
		require.InDelta(t, 1.0, e.Pheromone(), 1e-12)
	}
	e, _ := in.Graph.Edge(0, 2)
	require.Equal(t, 0.0, e.Pheromone())
}

func TestMaxMinBoundsHold(t *testing.T) {
	// twelve distinct tours exist, so sixty iterations must stagnate for four
	in := fiveVertex(t, 100)
	mm := DefaultMaxMinParams()
	mm.StagnationLimit = 4
	p := smallParams()
	p.AntCount, p.MaxIterations = 4, 60
	var resets int
	e := NewAntColonyMaxMin(p, mm, WithSeed(3), WithResetHook(func(int) { resets++ }))
	_, err := e.Solve(context.Background(), in)
	require.NoError(t, err)

	lo, hi := e.policy.(*MaxMin).Bounds()
	require.InDelta(t, 100.0, hi, 1e-9)
	require.InDelta(t, 10.0, lo, 1e-9)
	for _, edge := range in.Graph.Edges() {
		require.GreaterOrEqual(t, edge.Pheromone(), lo)
		require.LessOrEqual(t, edge.Pheromone(), hi)
	}
	require.Greater(t, resets, 0)
}

func TestMaxMinStagnationReset(t *testing.T) {
	in := fiveVertex(t, 100)
	p := DefaultParams()
	m := NewMaxMin(MaxMinParams{PheromoneMin: 0.01, PheromoneMax: 5, DepositGlobalBest: true, StagnationLimit: 2})
	m.Reset(in.Graph, p)
	for _, e := range in.Graph.Edges() {
		require.Equal(t, 0.1, e.Pheromone())
	}

	best, err := NewGreedy().Solve(context.Background(), in)
	require.NoError(t, err)

	require.False(t, m.Update(in.Graph, p, Iteration{Index: 0, Best: best, GlobalBest: best, Improved: true}))
	require.False(t, m.Update(in.Graph, p, Iteration{Index: 1, GlobalBest: best}))
	require.Equal(t, 1, m.Stagnation())
	require.True(t, m.Update(in.Graph, p, Iteration{Index: 2, GlobalBest: best}))
	require.Equal(t, 0, m.Stagnation())
	for _, e := range in.Graph.Edges() {
		require.Equal(t, 0.1, e.Pheromone())
	}

	// iteration-best deposit with no feasible ant must not panic
	m.Params.DepositGlobalBest = false
	require.NotPanics(t, func() { m.Update(in.Graph, p, Iteration{Index: 3}) })
}

func TestMaxMinInitialClampedIntoBounds(t *testing.T) {
	in := fiveVertex(t, 100)
	m := NewMaxMin(DefaultMaxMinParams())
	m.Reset(in.Graph, DefaultParams())
	lo, _ := m.Bounds()
	for _, e := range in.Graph.Edges() {
		require.Equal(t, lo, e.Pheromone())
		require.InDelta(t, 10.0, e.Pheromone(), 1e-9)
	}
}

func TestPickWeightedFallsBackToUniform(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, ws := range [][]float64{
		{0, 0, 0},
		{math.Inf(1), 1, 2},
		{math.NaN(), 1},
	} {
		for i := 0; i < 50; i++ {
			k := pickWeighted(ws, rng)
			require.GreaterOrEqual(t, k, 0)
			require.Less(t, k, len(ws))
		}
	}
	require.Equal(t, 1, pickWeighted([]float64{0, 3, 0}, rng))
}

// zeroSource makes rng.Float64 return exactly 0.
type zeroSource struct{}

func (zeroSource) Int63() int64 { return 0 }
func (zeroSource) Seed(int64)   {}

func TestPickWeightedSkipsZeroWeights(t *testing.T) {
	rng := rand.New(zeroSource{})
	require.Equal(t, 0.0, rng.Float64())
	require.Equal(t, 2, pickWeighted([]float64{0, 0, 5, 1}, rng))
	require.Equal(t, 1, pickWeighted([]float64{0, 1e-300, 0}, rng))
}

func TestDeriveSeedSeparatesStreams(t *testing.T) {
	seen := map[int64]bool{}
	for it := 0; it < 20; it++ {
		for ant := 0; ant < 20; ant++ {
			s := deriveSeed(7, it, ant)
			require.False(t, seen[s])
			seen[s] = true
		}
	}
	require.Equal(t, deriveSeed(0, 1, 1), deriveSeed(defaultSeed, 1, 1))
}

func TestProgressLogFlush(t *testing.T) {
	var got []Progress
	var live int
	l := &ProgressLog{
		Sink: func(_ context.Context, runID string, recs []Progress) error {
			require.Equal(t, "run-1", runID)
			got = recs
			return nil
		},
		OnRecord: func(Progress) { live++ },
	}
	l.RecordIteration(Progress{Iteration: 0, BestCost: 10})
	l.RecordIteration(Progress{Iteration: 1, BestCost: 9})
	require.NoError(t, l.Flush(context.Background(), "run-1"))
	require.Len(t, got, 2)
	require.Equal(t, 2, live)

	require.NoError(t, (&ProgressLog{}).Flush(context.Background(), "x"))
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
	require.NoError(t, DefaultMaxMinParams().Validate())
	for _, mut := range []func(*Params){
		func(p *Params) { p.AntCount = 0 },
		func(p *Params) { p.MaxIterations = 0 },
		func(p *Params) { p.Alpha = -1 },
		func(p *Params) { p.Beta = math.Inf(1) },
		func(p *Params) { p.EvaporationRate = 0 },
		func(p *Params) { p.Q = 0 },
		func(p *Params) { p.InitialPheromone = math.NaN() },
	} {
		p := DefaultParams()
		mut(&p)
		require.True(t, errors.Is(p.Validate(), ErrInvalidParams), "%+v", p)
	}
}
