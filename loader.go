package obbdata

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// randPool is a pool of random sources, one per fetch worker so workers
// never share random state
type randPool struct {
	// sources in the pool
	sources chan *rand.Rand
	// size of pool
	size int
	// closed is set once Close has been called, guarded by mu
	closed bool
	mu     sync.Mutex
}

// newRandPool creates a pool of size random sources.  A non zero seed
// seeds each source deterministically by its position in the pool
func newRandPool(size int, seed uint64) *randPool {
	p := &randPool{
		sources: make(chan *rand.Rand, size),
		size:    size,
	}

	for i := 0; i < size; i++ {
		var src rand.Source

		if seed != 0 {
			src = rand.NewPCG(seed, uint64(i)+1)
		} else {
			src = rand.NewPCG(rand.Uint64(), rand.Uint64())
		}

		p.Return(rand.New(src))
	}

	return p
}

// Get a random source from the pool, blocks until one is available.  Nil is
// returned once the pool is closed
func (p *randPool) Get() *rand.Rand {
	return <-p.sources
}

// Return a random source to the pool, sources returned after Close are
// dropped
func (p *randPool) Return(rng *rand.Rand) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || rng == nil {
		return
	}

	select {
	case p.sources <- rng:
	default:
		// pool is full
	}
}

// Close the pool
func (p *randPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.sources)

	for range p.sources {
	}
}

// isClosed reports if Close has been called
func (p *randPool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// LoaderParams defines the parameters of a Loader
type LoaderParams struct {
	// BatchSize is the number of samples per batch
	BatchSize int
	// Workers is the number of samples fetched concurrently
	Workers int
	// Shuffle randomizes the sample order every run
	Shuffle bool
	// DropLast drops a final batch smaller than BatchSize
	DropLast bool
	// Seed for shuffling and augmentation, 0 seeds randomly.  With a seed
	// every run draws the same order and augmentation as a fresh Loader
	// created with that seed on its same numbered run
	Seed uint64
}

// DefaultLoaderParams returns the default loader parameters
// - BatchSize 2
// - Workers 4
// - Shuffle true
// - DropLast false
// - Seed 0
func DefaultLoaderParams() LoaderParams {
	return LoaderParams{
		BatchSize: 2,
		Workers:   4,
		Shuffle:   true,
		DropLast:  false,
	}
}

// Loader iterates over a Dataset in batches.  Samples of a batch are fetched
// concurrently across a pool of workers, samples that fail to load are
// logged and left out of their batch
type Loader struct {
	dataset  *Dataset
	collator *Collator
	params   LoaderParams
	rng      *rand.Rand
	pool     *randPool
	// epoch counts the runs started, it seeds per sample sources
	epoch uint64
	// skipped are the indices that failed to load during the last run
	skipped []int
	mu      sync.Mutex
}

// epochMix spreads consecutive epoch numbers across the seed space
const epochMix = 0x9e3779b97f4a7c15

// NewLoader returns a Loader over the dataset
func NewLoader(dataset *Dataset, collator *Collator, params LoaderParams) (*Loader, error) {

	if params.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size %d must be positive", params.BatchSize)
	}

	if params.Workers <= 0 {
		return nil, fmt.Errorf("workers %d must be positive", params.Workers)
	}

	var src rand.Source

	if params.Seed != 0 {
		src = rand.NewPCG(params.Seed, 0)
	} else {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}

	return &Loader{
		dataset:  dataset,
		collator: collator,
		params:   params,
		rng:      rand.New(src),
		pool:     newRandPool(params.Workers, params.Seed),
	}, nil
}

// Run collates every sample of the dataset into batches and calls fn with
// each one.  Run stops at the first error returned by fn or when ctx is
// cancelled.  Sample images are released after fn returns so fn must not
// keep references to them.  Runs of one Loader must not overlap
func (l *Loader) Run(ctx context.Context, fn func(*Batch) error) error {

	if l.pool.isClosed() {
		return ErrLoaderClosed
	}

	epoch := l.epoch
	l.epoch++

	order := make([]int, l.dataset.Len())

	for i := range order {
		order[i] = i
	}

	if l.params.Shuffle {
		l.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	l.mu.Lock()
	l.skipped = nil
	l.mu.Unlock()

	for start := 0; start < len(order); start += l.params.BatchSize {

		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+l.params.BatchSize, len(order))

		if l.params.DropLast && end-start < l.params.BatchSize {
			break
		}

		samples := l.fetch(ctx, order[start:end], epoch)

		if err := ctx.Err(); err != nil {
			for _, s := range samples {
				s.Close()
			}
			return err
		}

		if len(samples) == 0 {
			continue
		}

		batch, err := l.collator.Collate(samples)

		if err == nil {
			err = fn(batch)
		} else {
			err = errors.Wrapf(err, "error collating batch at position %d", start)
		}

		for _, s := range samples {
			s.Close()
		}

		if err != nil {
			return err
		}
	}

	return ctx.Err()
}

// Skipped returns the indices that failed to load during the last run
func (l *Loader) Skipped() []int {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]int, len(l.skipped))
	copy(out, l.skipped)
	return out
}

// Close the loader, later calls to Run return ErrLoaderClosed
func (l *Loader) Close() {
	l.pool.Close()
}

// fetch loads the samples of the given indices concurrently, the result
// keeps the order of indices with failed samples left out.  The pool bounds
// the number of concurrent loads, with a seed each sample draws from its own
// source derived from the seed, epoch and index
func (l *Loader) fetch(ctx context.Context, indices []int, epoch uint64) []*Sample {

	results := make([]*Sample, len(indices))

	var wg sync.WaitGroup

	for i, index := range indices {
		wg.Add(1)

		go func(i, index int) {
			defer wg.Done()

			rng := l.pool.Get()

			if rng == nil {
				// pool closed while fetching
				return
			}

			defer l.pool.Return(rng)

			if ctx.Err() != nil {
				return
			}

			if l.params.Seed != 0 {
				rng = rand.New(rand.NewPCG(l.params.Seed^(epoch*epochMix), uint64(index)))
			}

			sample, err := l.dataset.SampleWithRand(index, rng)

			if err != nil {
				klog.Warningf("skipping sample %d: %v", index, err)

				l.mu.Lock()
				l.skipped = append(l.skipped, index)
				l.mu.Unlock()
				return
			}

			results[i] = sample
		}(i, index)
	}

	wg.Wait()

	samples := make([]*Sample, 0, len(results))

	for _, s := range results {
		if s != nil {
			samples = append(samples, s)
		}
	}

	return samples
}
