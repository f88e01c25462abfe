// Command nntrain is a minimal example driver for the nn training
// library: it wires up the spec's XOR-style toy network, trains it for
// a configurable number of iterations over a caller-supplied worker
// pool built on golang.org/x/sync/errgroup, and prints the converged
// predictions. It is not part of the core library — the core never
// depends on a CLI or a logger of its own (SPEC_FULL.md §6).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/Witek902/Caissa-sub002/nn"
	"github.com/Witek902/Caissa-sub002/nn/node"
	"github.com/Witek902/Caissa-sub002/nn/trainer"
	"github.com/Witek902/Caissa-sub002/nn/weights"
)

func envThreads(def int) int {
	if v := os.Getenv("NNTRAIN_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// errgroupPool implements trainer.Pool on top of errgroup.Group: one
// goroutine per worker id, each handling a strided share of the batch,
// via the errgroup idiom this module's domain stack adopts
// (SPEC_FULL.md §3).
type errgroupPool struct{}

func (errgroupPool) ParallelForThreads(numWorkers int, fn func(worker int)) {
	var g errgroup.Group
	for w := 0; w < numWorkers; w++ {
		w := w
		g.Go(func() error {
			fn(w)
			return nil
		})
	}
	_ = g.Wait()
}

func (errgroupPool) ParallelForBatch(numWorkers, batchSize int, fn func(worker, index int)) {
	var g errgroup.Group
	for w := 0; w < numWorkers; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < batchSize; i += numWorkers {
				fn(w, i)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (errgroupPool) Task(fn func()) { fn() }

func buildXORNetwork() *nn.Network {
	storage1 := weights.New(2, 64, 1, true)
	storage1.Init(64, 0)
	sbi := node.NewSparseBinaryInput(2, 64, storage1)
	act := node.NewActivation(sbi, node.CReLU)

	storage2 := weights.New(64, 1, 1, false)
	storage2.Init(64, 0)
	fc := node.NewFullyConnected(act, 64, 1, storage2)
	sig := node.NewActivation(fc, node.Sigmoid)

	net := &nn.Network{}
	net.Init([]node.Node{sbi, act, fc, sig})
	return net
}

func sparseInput(indices ...uint16) nn.InputDesc {
	var d nn.InputDesc
	d.Inputs[0] = nn.NodeInput{Mode: node.SparseBinary, SparseBinary: indices}
	return d
}

func main() {
	iterations := flag.Int("iterations", 4000, "number of training batches to run")
	batchSize := flag.Int("batch", 10, "training batch size")
	learningRate := flag.Float64("lr", 0.05, "ADAM learning rate")
	threads := flag.Int("threads", envThreads(4), "worker thread count (env NNTRAIN_THREADS overrides default)")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	net := buildXORNetwork()
	tr := &trainer.Trainer{}
	tr.Init(net, *threads)
	tr.SetLogger(logger)

	base := []nn.TrainingVector{
		{Input: sparseInput(), Output: nn.NodeOutput{Mode: nn.Single, Single: 0}},
		{Input: sparseInput(0), Output: nn.NodeOutput{Mode: nn.Single, Single: 1}},
		{Input: sparseInput(1), Output: nn.NodeOutput{Mode: nn.Single, Single: 0}},
		{Input: sparseInput(0, 1), Output: nn.NodeOutput{Mode: nn.Single, Single: 0}},
	}
	batch := make([]nn.TrainingVector, 0, *batchSize)
	for len(batch) < *batchSize {
		batch = append(batch, base...)
	}
	batch = batch[:*batchSize]

	params := trainer.TrainParams{
		BatchSize:    *batchSize,
		LearningRate: float32(*learningRate),
		Optimizer:    weights.Adam,
		ClampWeights: true,
	}

	pool := errgroupPool{}

	for iter := 0; iter < *iterations; iter++ {
		params.Iteration = uint64(iter)
		if _, err := tr.Train(batch, params, pool); err != nil {
			logger.Fatalf("[trainer] %v", err)
		}
		if iter%500 == 0 {
			logger.Printf("[trainer] iteration %d/%d", iter, *iterations)
		}
	}

	rc := &nn.RunContext{}
	rc.Init(net)
	for _, tv := range base {
		out := net.Run(tv.Input, rc)
		fmt.Printf("target=%.2f predicted=%.4f\n", tv.Output.Single, out[0])
	}
}
