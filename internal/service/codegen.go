package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	CodeLength = 6
	minCode    = 100000
	maxCode    = 999999
)

// CodeGenerator produces candidate pairing codes. Candidates are not
// guaranteed unique; SessionService checks them against live sessions.
type CodeGenerator interface {
	Generate() (string, error)
}

type RandomCodeGenerator struct{}

func NewRandomCodeGenerator() *RandomCodeGenerator {
	return &RandomCodeGenerator{}
}

// Generate draws uniformly from 100000-999999.
func (RandomCodeGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxCode-minCode+1))
	if err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()+minCode), nil
}
