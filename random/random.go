package random

import (
	"math/rand/v2"
)

var (
	// Deterministic source for tests and fixtures. Not safe for concurrent use
	PseudoRand = rand.New(rand.NewPCG(0x5C_A4_9A_11, 0x0D_DB_A1_1E))
)
