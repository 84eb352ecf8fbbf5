// mpcsim - MPC tensor-graph simulator
//
// Usage:
//   mpcsim tournament          Run a tournament-reduction AND/min demo
//   mpcsim gemm                Run a bit-packed GEMM demo
//   mpcsim cuckoo              Run a Cuckoo-hash/switching-map demo
//   mpcsim psi <xRows> <yRows> Run a two-sided private set intersection demo
//   mpcsim benchmark           Run graph-construction/evaluation benchmarks
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/luxfi/mpcgraph/graph"
	"github.com/luxfi/mpcgraph/lowmc"
	"github.com/luxfi/mpcgraph/mpcshare"
	"github.com/luxfi/mpcgraph/psi"
	"github.com/luxfi/mpcgraph/shapes"
	"github.com/luxfi/mpcgraph/tensor"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "tournament":
		cmdTournament()
	case "gemm":
		cmdGemm()
	case "cuckoo":
		cmdCuckoo()
	case "psi":
		cmdPSI()
	case "benchmark":
		cmdBenchmark()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`mpcsim - MPC tensor-graph simulator

Usage:
  mpcsim <command> [arguments]

Commands:
  tournament            Tournament-reduction AND/min demo
  gemm                  Bit-packed GEMM demo
  cuckoo                Cuckoo-hash/switching-map demo
  psi <xRows> <yRows>   Two-sided private set intersection demo
  benchmark             Run graph-construction/evaluation benchmarks
  help                  Show this help

Examples:
  mpcsim tournament
  mpcsim gemm
  mpcsim cuckoo
  mpcsim psi 5 6
  mpcsim benchmark

For production use, see the Go library at github.com/luxfi/mpcgraph`)
}

func evalSingle(b *graph.Builder, out int, seed [32]byte) ([]uint64, error) {
	if err := b.SetOutput(out); err != nil {
		return nil, err
	}
	if err := b.Finalize(); err != nil {
		return nil, err
	}
	g := b.Graph()
	ev := graph.NewEvaluator(seed)
	v, err := ev.Evaluate(g, nil)
	if err != nil {
		return nil, err
	}
	n, err := g.Node(out)
	if err != nil {
		return nil, err
	}
	return v.ToFlattenedArrayU64(n.Type)
}

func cmdTournament() {
	fmt.Println("Tournament-reduction AND/min over 8 bits...")
	bits := []uint64{1, 1, 1, 0, 1, 1, 1, 1}
	fmt.Printf("input: %v\n", bits)

	start := time.Now()
	b := graph.NewBuilder()
	cur, err := b.Constant(tensor.ArrayT([]uint64{8}, tensor.Bit), tensor.FromFlattenedArray(bits, tensor.Bit))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	for size := 8; size > 1; size /= 2 {
		half := int64(size / 2)
		lo, err := b.GetSlice(cur, []shapes.SliceElement{{End: &half}})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		hi, err := b.GetSlice(cur, []shapes.SliceElement{{Start: &half}})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		cur, err = b.Multiply(lo, hi)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}
	got, err := evalSingle(b, cur, [32]byte{})
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("result: %v (built+evaluated in %v)\n", got, elapsed)
}

func cmdGemm() {
	fmt.Println("Bit-packed GEMM demo: a[2x3] @ b[3x3]^T ...")

	start := time.Now()
	b := graph.NewBuilder()
	a, err := b.Constant(tensor.ArrayT([]uint64{2, 3}, tensor.Bit), tensor.FromFlattenedArray([]uint64{1, 0, 1, 0, 1, 1}, tensor.Bit))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	bb, err := b.Constant(tensor.ArrayT([]uint64{3, 3}, tensor.Bit), tensor.FromFlattenedArray([]uint64{1, 1, 1, 0, 1, 0, 1, 1, 0}, tensor.Bit))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	out, err := b.Gemm(a, bb, false, true)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	got, err := evalSingle(b, out, [32]byte{})
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("result: %v (built+evaluated in %v)\n", got, elapsed)
}

func cmdCuckoo() {
	fmt.Println("Cuckoo-hash + CuckooToPermutation demo over 2 strings, table size 4...")

	start := time.Now()
	b := graph.NewBuilder()
	strings, err := b.Constant(tensor.ArrayT([]uint64{2, 3}, tensor.Bit), tensor.FromFlattenedArray([]uint64{1, 0, 1, 0, 0, 1}, tensor.Bit))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	matrices, err := b.Constant(tensor.ArrayT([]uint64{3, 2, 3}, tensor.Bit), tensor.FromFlattenedArray(
		[]uint64{1, 0, 1, 0, 1, 0, 0, 1, 0, 1, 0, 1, 1, 0, 0, 0, 0, 1}, tensor.Bit))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	table, err := b.CuckooHash(strings, matrices, tensor.ArrayT([]uint64{4}, tensor.U64))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	perm, err := b.CuckooToPermutation(table)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	got, err := evalSingle(b, perm, [32]byte{7})
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("result permutation: %v (built+evaluated in %v)\n", got, elapsed)
}

func cmdPSI() {
	xRows, yRows := 5, 6
	if len(os.Args) > 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil {
			xRows = n
		}
		if n, err := strconv.Atoi(os.Args[3]); err == nil {
			yRows = n
		}
	}
	fmt.Printf("Private set intersection demo: X has %d rows, Y has %d rows\n", xRows, yRows)

	start := time.Now()
	b := graph.NewBuilder()
	keys, err := mpcshare.InputKeys(b)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	proto := mpcshare.NewProtocol(b, "mpcsim-psi")

	x, err := demoDataset(b, xRows, 1)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	y, err := demoDataset(b, yRows, 2)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	tableBits := 1
	for 1<<uint(tableBits) < yRows {
		tableBits++
	}
	tableBits++ // one extra bit doubles the Cuckoo table beyond the minimum that fits yRows

	result, err := psi.Intersect(proto, keys, x, y, psi.Options{TableBits: tableBits})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	revealed, err := mpcshare.Reveal(b, result.Null)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	got, err := evalSingle(b, revealed, [32]byte{11, 22, 33})
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("matched-row bitmap (X's row order): %v\n", got)
	fmt.Printf("built+evaluated in %v\n", elapsed)
}

// demoDataset builds a Dataset whose key column is a deterministic
// function of the row index and partyTag, so mpcsim psi 5 6 run twice
// exercises the pipeline identically without needing external input.
func demoDataset(b *graph.Builder, rows int, partyTag uint64) (psi.Dataset, error) {
	keyBits := make([]uint64, rows*lowmc.BlockBits)
	for r := 0; r < rows; r++ {
		for i := 0; i < lowmc.BlockBits; i++ {
			keyBits[r*lowmc.BlockBits+i] = (uint64(r) + partyTag + uint64(i)) % 2
		}
	}
	keyType := tensor.ArrayT([]uint64{uint64(rows), lowmc.BlockBits}, tensor.Bit)
	zero := tensor.ZeroOf(keyType)
	keyVal := tensor.FromFlattenedArray(keyBits, tensor.Bit)
	key, err := mpcshare.ConstantShare(b, keyType, keyVal, zero, zero)
	if err != nil {
		return psi.Dataset{}, err
	}

	nullType := tensor.ArrayT([]uint64{uint64(rows)}, tensor.Bit)
	ones := make([]uint64, rows)
	for i := range ones {
		ones[i] = 1
	}
	nullVal := tensor.FromFlattenedArray(ones, tensor.Bit)
	zeroNull := tensor.ZeroOf(nullType)
	null, err := mpcshare.ConstantShare(b, nullType, nullVal, zeroNull, zeroNull)
	if err != nil {
		return psi.Dataset{}, err
	}

	payloadType := tensor.ArrayT([]uint64{uint64(rows)}, tensor.U32)
	payloadBits := make([]uint64, rows)
	for r := range payloadBits {
		payloadBits[r] = partyTag*1000 + uint64(r)
	}
	payloadVal := tensor.FromFlattenedArray(payloadBits, tensor.U32)
	zeroPayload := tensor.ZeroOf(payloadType)
	payload, err := mpcshare.ConstantShare(b, payloadType, payloadVal, zeroPayload, zeroPayload)
	if err != nil {
		return psi.Dataset{}, err
	}

	return psi.Dataset{Rows: rows, Key: key, Null: null, Payload: []mpcshare.Share{payload}}, nil
}

func cmdBenchmark() {
	fmt.Println("mpcsim benchmarks")
	fmt.Println("==================")
	fmt.Println()

	iterations := 50

	start := time.Now()
	for i := 0; i < iterations; i++ {
		b := graph.NewBuilder()
		x, _ := b.Constant(tensor.ArrayT([]uint64{64}, tensor.Bit), tensor.FromFlattenedArray(make([]uint64, 64), tensor.Bit))
		cur := x
		for size := 64; size > 1; size /= 2 {
			half := int64(size / 2)
			lo, _ := b.GetSlice(cur, []shapes.SliceElement{{End: &half}})
			hi, _ := b.GetSlice(cur, []shapes.SliceElement{{Start: &half}})
			cur, _ = b.Multiply(lo, hi)
		}
		if _, err := evalSingle(b, cur, [32]byte{byte(i)}); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}
	tournamentTime := time.Since(start) / time.Duration(iterations)
	fmt.Printf("Tournament(64):  %v per build+evaluate\n", tournamentTime)

	start = time.Now()
	key := make([]byte, 16)
	plaintext := make([]byte, 10)
	cipher, err := lowmc.New(key)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	for i := 0; i < iterations; i++ {
		if _, err := cipher.Encrypt(plaintext); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}
	lowmcTime := time.Since(start) / time.Duration(iterations)
	fmt.Printf("LowMC Encrypt:   %v per operation\n", lowmcTime)

	fmt.Printf("\nLowMC parameters: block=%d bits, sboxes=%d, rounds=%d, key=%d bits\n",
		lowmc.BlockBits, lowmc.SBoxCount, lowmc.Rounds, lowmc.KeyBits)
}
