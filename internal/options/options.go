// Package options builds the shuffled answer sets shown for a question.
package options

import (
	"crypto/rand"
	"math/big"

	"github.com/bananagame/banago/internal/domain"
	"github.com/bananagame/banago/internal/errors"
)

// Answer values live in 0..9, so even the Hard tier (7 options) always
// terminates: duplicate rejection can only retry within a 10-value space.
const valueSpace = 10

// Generate returns the answer set for one question: the correct value exactly
// once, the remaining slots filled with distinct values drawn uniformly from
// 0..9, in uniformly random order.
func Generate(correct int, level domain.Level) ([]int, error) {
	if !level.Valid() {
		return nil, errors.InvalidArgumentf("options: unknown level %q", level)
	}
	if correct < 0 || correct >= valueSpace {
		return nil, errors.InvalidArgumentf("options: correct value %d out of range 0-%d", correct, valueSpace-1)
	}

	n := level.OptionCount()
	opts := make([]int, 0, n)
	opts = append(opts, correct)

	var seen [valueSpace]bool
	seen[correct] = true
	for len(opts) < n {
		v := randInt(valueSpace)
		if seen[v] {
			continue
		}
		seen[v] = true
		opts = append(opts, v)
	}

	shuffle(opts)
	return opts, nil
}

// shuffle is a Fisher-Yates pass, so the position of the correct answer is
// not predictable across calls.
func shuffle(vs []int) {
	for i := len(vs) - 1; i > 0; i-- {
		j := randInt(i + 1)
		vs[i], vs[j] = vs[j], vs[i]
	}
}

func randInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}
