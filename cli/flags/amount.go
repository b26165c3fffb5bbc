package flags

import (
	"errors"
	"flag"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/urfave/cli"
)

// maxAmountBits is the Balance type width.
const maxAmountBits = 128

// Amount is a wrapper for a token amount in base units with flag.Value
// methods.
type Amount struct {
	Value *uint256.Int
}

// AmountFlag is a flag with type Amount.
type AmountFlag struct {
	Name  string
	Usage string
	Value Amount
}

var (
	_ flag.Value = (*Amount)(nil)
	_ cli.Flag   = AmountFlag{}
)

// String implements the fmt.Stringer interface.
func (a Amount) String() string {
	if a.Value == nil {
		return "0"
	}
	return a.Value.ToBig().String()
}

// Set implements the flag.Value interface.
func (a *Amount) Set(s string) error {
	n, err := ParseAmount(s)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	a.Value = n
	return nil
}

// ParseAmount parses a non-negative decimal integer that fits into Balance.
// Underscores can be used as digit separators.
func ParseAmount(s string) (*uint256.Int, error) {
	b, ok := new(big.Int).SetString(strings.ReplaceAll(s, "_", ""), 10)
	if !ok {
		return nil, errors.New("amount is not a decimal integer")
	}
	if b.Sign() < 0 {
		return nil, errors.New("negative amount")
	}
	if b.BitLen() > maxAmountBits {
		return nil, errors.New("amount is too big")
	}
	n, _ := uint256.FromBig(b)
	return n, nil
}

// String returns a readable representation of this value
// (for usage defaults).
func (f AmountFlag) String() string {
	return usage(f.Name, f.Usage)
}

// GetName returns the name of the flag.
func (f AmountFlag) GetName() string {
	return f.Name
}

// Apply populates the flag given the flag set and environment.
// Ignores errors.
func (f AmountFlag) Apply(set *flag.FlagSet) {
	apply(set, f.Name, f.Usage, &f.Value)
}

// AmountFromContext returns a parsed amount provided flag name, it's zero
// if the flag wasn't set.
func AmountFromContext(ctx *cli.Context, name string) *uint256.Int {
	a, ok := ctx.Generic(name).(*Amount)
	if !ok || a.Value == nil {
		return new(uint256.Int)
	}
	return a.Value
}
