// Package trainer implements the batch training loop: per-worker
// gradient buffers, the clear -> backpropagate -> reduce -> update
// phases, and fork-join dispatch over a caller-supplied thread pool
// (spec.md §5 "Concurrency & resource model", §4 Trainer).
package trainer

import (
	"fmt"
	"log"

	"github.com/Witek902/Caissa-sub002/nn"
	"github.com/Witek902/Caissa-sub002/nn/grad"
	"github.com/Witek902/Caissa-sub002/nn/weights"
)

// singleThreadedBatchLimit is the batch size at or below which Train
// never bothers dispatching to a pool, matching the source's "small
// batch, just run it inline" cutoff (spec.md §5).
const singleThreadedBatchLimit = 32

// Pool is the fork-join thread pool a caller supplies to Train. Each
// method is a fenced phase: it returns only once every dispatched unit
// of work has completed (spec.md §5's parallelFor/task + fence model).
// A nil Pool makes Train run every phase on the calling goroutine.
type Pool interface {
	// ParallelForThreads calls fn once per worker id in [0, numWorkers).
	ParallelForThreads(numWorkers int, fn func(worker int))
	// ParallelForBatch calls fn once per batch-local index in
	// [0, batchSize), handing each call a worker id in [0, numWorkers).
	// Implementations must run at most one goroutine per worker id and
	// serialize that worker's indices within it — fn mutates the
	// worker's private RunContext and Gradients buffers (spec.md §5
	// "workers do not share... no locks needed"), which only holds if
	// a given worker id is never entered concurrently.
	ParallelForBatch(numWorkers, batchSize int, fn func(worker, index int))
	// Task runs fn once, after every previously dispatched phase has
	// completed.
	Task(fn func())
}

// TrainParams carries the per-batch scalars and optimizer choice the
// source's TrainParams struct holds (spec.md §6).
type TrainParams struct {
	Iteration    uint64
	BatchSize    int
	LearningRate float32
	WeightDecay  float32
	Optimizer    weights.Optimizer
	ClampWeights bool
}

// perWorkerState is the scratch one worker (goroutine) owns for the
// lifetime of a Trainer: its own RunContext and one Gradients buffer
// per distinct weight storage in the network, aligned by index with
// Trainer.storages.
type perWorkerState struct {
	runCtx    *nn.RunContext
	gradients []*grad.Gradients
}

// Trainer owns one Gradients buffer per worker per distinct weight
// storage in the network, and drives the batch loop described in
// spec.md §5.
type Trainer struct {
	network    *nn.Network
	storages   []*weights.Storage
	storageIdx map[*weights.Storage]int
	workers    []perWorkerState
	logger     *log.Logger
}

// NumWorkers returns how many worker slots Init allocated.
func (t *Trainer) NumWorkers() int { return len(t.workers) }

// SetLogger installs an optional progress logger; nil (the default)
// keeps Train silent, matching spec.md §1's "logging is an external
// collaborator's concern" (SPEC_FULL.md §2).
func (t *Trainer) SetLogger(l *log.Logger) { t.logger = l }

// Init discovers every distinct trainable weight storage reachable
// from network's nodes and allocates numWorkers private RunContexts
// and Gradients buffers, one set per worker (spec.md §4 Trainer.init,
// §5 "gradient buffers... private to their worker").
func (t *Trainer) Init(network *nn.Network, numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	t.network = network
	t.storageIdx = make(map[*weights.Storage]int)

	for _, n := range network.Nodes() {
		if !n.IsTrainable() {
			continue
		}
		s := n.WeightsStorage()
		if _, ok := t.storageIdx[s]; ok {
			continue
		}
		t.storageIdx[s] = len(t.storages)
		t.storages = append(t.storages, s)
	}

	t.workers = make([]perWorkerState, numWorkers)
	for w := range t.workers {
		rc := &nn.RunContext{}
		rc.Init(network)
		gradients := make([]*grad.Gradients, len(t.storages))
		for i, s := range t.storages {
			gradients[i] = grad.New(s.InputSize, s.OutputSize, s.NumVariants(), s.IsSparse)
		}
		t.workers[w] = perWorkerState{runCtx: rc, gradients: gradients}
	}
}

// lossDerivative writes 2*(output-target) into dst (the MSE gradient,
// spec.md §6 "gradient scale 2.0"). For OutputMode Single, only the
// first element gets a loss term and every other element is set to
// zero; for FullOutput every element of target
// is weighted equally, as decided in SPEC_FULL.md §5 (no Open Question
// guess here: each output element gets its own independent MSE term).
func lossDerivative(dst, output []float32, target nn.NodeOutput) {
	switch target.Mode {
	case nn.Single:
		for i := range dst {
			dst[i] = 0
		}
		dst[0] = 2 * (output[0] - target.Single)
	case nn.FullOutput:
		for i := range dst {
			dst[i] = 2 * (output[i] - target.Full[i])
		}
	}
}

func (t *Trainer) gradientsFor(worker int) func(*weights.Storage) *grad.Gradients {
	ws := t.workers[worker].gradients
	return func(s *weights.Storage) *grad.Gradients {
		idx, ok := t.storageIdx[s]
		if !ok {
			panic("trainer: backpropagate reached a weight storage not seen during Init")
		}
		return ws[idx]
	}
}

func (t *Trainer) backpropagateOne(worker int, tv nn.TrainingVector) {
	ws := &t.workers[worker]
	output := t.network.Run(tv.Input, ws.runCtx)
	lossGrad := ws.runCtx.TempValues()
	lossDerivative(lossGrad, output, tv.Output)
	t.network.Backpropagate(ws.runCtx, lossGrad, t.gradientsFor(worker))
}

// reduceAndUpdate merges every non-zero worker's gradients into
// worker 0's buffers (spec.md §5 phase 3) then applies the optimizer
// update to every storage. It must run with exclusive access to all
// workers' Gradients — the dirty-flag merge half of the reduction is
// not safe to parallelize (spec.md §9 "Gradient dirty-flag race").
func (t *Trainer) reduceAndUpdate(params TrainParams) {
	for i, s := range t.storages {
		dst := t.workers[0].gradients[i]
		for w := 1; w < len(t.workers); w++ {
			src := t.workers[w].gradients[i]
			for v := 0; v < dst.NumVariants(); v++ {
				rows := s.InputSize + 1
				for row := 0; row < rows; row++ {
					dst.Accumulate(src, v, row)
					dst.AccumulateUpdateDirty(src, v, row)
				}
			}
		}

		opts := weights.UpdateOptions{
			Iteration:     params.Iteration,
			LearningRate:  params.LearningRate,
			WeightDecay:   params.WeightDecay,
			GradientScale: 1.0,
			ClampWeights:  params.ClampWeights,
		}
		s.Update(params.Optimizer, dst, opts)
		dst.Clear()
	}
}

// Train runs one batch of trainingSet through the clear -> backprop ->
// reduce -> update loop (spec.md §5) and returns the number of batches
// processed (always 1 per call, matching the source's per-batch API;
// callers loop Train once per batch themselves, as cmd/nntrain does).
// If batchSize <= 32 or pool is nil, every phase runs on the calling
// goroutine (spec.md §5 "small batch" fallback).
func (t *Trainer) Train(trainingSet []nn.TrainingVector, params TrainParams, pool Pool) (int, error) {
	if len(t.workers) == 0 {
		return 0, fmt.Errorf("trainer: Init must be called before Train")
	}
	if params.BatchSize <= 0 || params.BatchSize > len(trainingSet) {
		return 0, fmt.Errorf("trainer: batch size %d exceeds training set size %d", params.BatchSize, len(trainingSet))
	}

	numWorkers := len(t.workers)
	useSingleThreaded := pool == nil || params.BatchSize <= singleThreadedBatchLimit

	if useSingleThreaded {
		for i := range t.storages {
			t.workers[0].gradients[i].Clear()
		}
		for i := 0; i < params.BatchSize; i++ {
			t.backpropagateOne(0, trainingSet[i])
		}
		t.reduceAndUpdateSingle(params)
	} else {
		pool.ParallelForThreads(numWorkers, func(worker int) {
			for i := range t.storages {
				t.workers[worker].gradients[i].Clear()
			}
		})

		pool.ParallelForBatch(numWorkers, params.BatchSize, func(worker, index int) {
			t.backpropagateOne(worker, trainingSet[index])
		})

		pool.Task(func() {
			t.reduceAndUpdate(params)
		})
	}

	if t.logger != nil {
		t.logger.Printf("[trainer] batch size=%d iteration=%d", params.BatchSize, params.Iteration)
	}
	return 1, nil
}

// reduceAndUpdateSingle is reduceAndUpdate specialized for the
// single-worker fallback: there is nothing to reduce, only the update.
func (t *Trainer) reduceAndUpdateSingle(params TrainParams) {
	for i, s := range t.storages {
		opts := weights.UpdateOptions{
			Iteration:     params.Iteration,
			LearningRate:  params.LearningRate,
			WeightDecay:   params.WeightDecay,
			GradientScale: 1.0,
			ClampWeights:  params.ClampWeights,
		}
		g := t.workers[0].gradients[i]
		s.Update(params.Optimizer, g, opts)
		g.Clear()
	}
}
