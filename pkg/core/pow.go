package core

import (
	"context"
	"crypto/sha256"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
)

// Difficulty is the number of leading zero hex digits a proof digest needs
const Difficulty = 4

// cancelCheckInterval is how many candidates are tried between context checks
const cancelCheckInterval = 4096

// ValidProof reports whether SHA-256 of the decimal concatenation of
// lastProof and proof starts with Difficulty zero hex digits.
func ValidProof(lastProof, proof uint64) bool {
	buf := make([]byte, 0, 40)
	buf = strconv.AppendUint(buf, lastProof, 10)
	buf = strconv.AppendUint(buf, proof, 10)
	sum := sha256.Sum256(buf)

	// Four hex zeros are two zero bytes
	return sum[0] == 0 && sum[1] == 0
}

// SolveProof finds the smallest proof valid for lastProof by linear search
// from zero. It returns ctx.Err() if ctx is cancelled first.
func SolveProof(ctx context.Context, lastProof uint64) (uint64, error) {
	for proof := uint64(0); ; proof++ {
		if proof%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		if ValidProof(lastProof, proof) {
			return proof, nil
		}
	}
}

// SolveProofParallel splits the search over workers goroutines, worker w
// trying w, w+workers, w+2*workers and so on. Every worker keeps going until
// it passes the best proof found so far, so the result is the same smallest
// proof SolveProof returns.
func SolveProofParallel(ctx context.Context, lastProof uint64, workers int) (uint64, error) {
	if workers <= 1 {
		return SolveProof(ctx, lastProof)
	}

	var best atomic.Uint64
	best.Store(math.MaxUint64)

	stride := uint64(workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(start uint64) {
			defer wg.Done()

			n := 0
			for proof := start; proof < best.Load(); proof += stride {
				if n%cancelCheckInterval == 0 && ctx.Err() != nil {
					return
				}
				n++
				if ValidProof(lastProof, proof) {
					lowerTo(&best, proof)
					return
				}
			}
		}(uint64(w))
	}
	wg.Wait()

	// A cancelled worker may have skipped a smaller proof
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return best.Load(), nil
}

func lowerTo(best *atomic.Uint64, proof uint64) {
	for {
		cur := best.Load()
		if proof >= cur || best.CompareAndSwap(cur, proof) {
			return
		}
	}
}
