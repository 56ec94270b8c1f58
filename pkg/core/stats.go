package core

import (
	"gonum.org/v1/gonum/stat"

	"github.com/basic-kali-box/Blockchain-Project/pkg/types"
)

// Stats summarizes a chain
type Stats struct {
	Blocks                     int                           `json:"blocks"`
	Transactions               int                           `json:"transactions"`
	ProvenanceTransactions     int                           `json:"provenance_transactions"`
	PendingTransactions        int                           `json:"pending_transactions"`
	Products                   int                           `json:"products"`
	MeanBlockIntervalSeconds   float64                       `json:"mean_block_interval_seconds"`
	BlockIntervalStdDev        float64                       `json:"block_interval_stddev_seconds"`
	MeanTransactionsPerBlock   float64                       `json:"mean_transactions_per_block"`
	TransactionsPerBlockStdDev float64                       `json:"transactions_per_block_stddev"`
	TransactionsByType         map[types.TransactionType]int `json:"transactions_by_type"`
}

// ComputeStats derives Stats from chain. The genesis block is excluded from
// the interval and per-block figures since its timestamp comes from the
// genesis file.
func ComputeStats(chain []Block) Stats {
	s := Stats{
		Blocks:             len(chain),
		TransactionsByType: map[types.TransactionType]int{},
	}

	var intervals, perBlock []float64
	for i, block := range chain {
		for _, tx := range block.Transactions {
			s.Transactions++
			s.TransactionsByType[tx.Type]++
			if tx.Type.IsProvenance() {
				s.ProvenanceTransactions++
			}
		}
		if i == 0 {
			continue
		}
		perBlock = append(perBlock, float64(len(block.Transactions)))
		if i >= 2 {
			intervals = append(intervals, block.Timestamp.Sub(chain[i-1].Timestamp).Seconds())
		}
	}

	s.MeanBlockIntervalSeconds, s.BlockIntervalStdDev = meanStdDev(intervals)
	s.MeanTransactionsPerBlock, s.TransactionsPerBlockStdDev = meanStdDev(perBlock)
	return s
}

// meanStdDev returns zeros where gonum would produce NaN
func meanStdDev(xs []float64) (float64, float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	return stat.Mean(xs, nil), stat.StdDev(xs, nil)
}

// Stats summarizes the ledger including the pending pool and product index
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := ComputeStats(l.chain)
	s.PendingTransactions = len(l.pending)
	s.Products = len(l.products)
	return s
}
