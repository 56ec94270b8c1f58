package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidProofMatchesHexPrefix(t *testing.T) {
	for last := uint64(0); last < 5; last++ {
		for proof := uint64(0); proof < 20000; proof++ {
			sum := sha256.Sum256([]byte(fmt.Sprintf("%d%d", last, proof)))
			want := strings.HasPrefix(hex.EncodeToString(sum[:]), "0000")
			if got := ValidProof(last, proof); got != want {
				t.Fatalf("ValidProof(%d, %d) = %v, want %v", last, proof, got, want)
			}
		}
	}
}

func TestSolveProofIsMinimal(t *testing.T) {
	proof, err := SolveProof(context.Background(), GenesisProof)
	require.NoError(t, err)
	assert.Equal(t, uint64(35293), proof)
	assert.True(t, ValidProof(GenesisProof, proof))

	for p := uint64(0); p < proof; p++ {
		if ValidProof(GenesisProof, p) {
			t.Fatalf("proof %d is valid but smaller than %d", p, proof)
		}
	}
}

func TestSolveProofParallelAgreesWithSequential(t *testing.T) {
	for _, last := range []uint64{0, 1, 100, 35293, 987654321} {
		want, err := SolveProof(context.Background(), last)
		require.NoError(t, err)

		for _, workers := range []int{1, 2, 3, 8} {
			got, err := SolveProofParallel(context.Background(), last, workers)
			require.NoError(t, err)
			assert.Equal(t, want, got, "last=%d workers=%d", last, workers)
		}
	}
}

func TestSolveProofCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SolveProof(ctx, GenesisProof)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = SolveProofParallel(ctx, GenesisProof, 4)
	assert.ErrorIs(t, err, context.Canceled)
}
