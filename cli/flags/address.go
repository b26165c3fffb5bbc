package flags

import (
	"flag"

	"github.com/nspcc-dev/subgo/pkg/crypto/keys"
	"github.com/urfave/cli"
)

// Address is a wrapper for an AccountID with flag.Value methods.
type Address struct {
	IsSet bool
	Value keys.AccountID
}

// AddressFlag is a flag with type AccountID, it accepts SS58 addresses and
// 0x-prefixed hex account ids.
type AddressFlag struct {
	Name  string
	Usage string
	Value Address
}

var (
	_ flag.Value = (*Address)(nil)
	_ cli.Flag   = AddressFlag{}
)

// String implements the fmt.Stringer interface.
func (a Address) String() string {
	if !a.IsSet {
		return ""
	}
	return a.Value.String()
}

// Set implements the flag.Value interface.
func (a *Address) Set(s string) error {
	id, err := keys.ParseAccountID(s)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	a.IsSet = true
	a.Value = id
	return nil
}

// AccountID casts the address to keys.AccountID.
func (a *Address) AccountID() keys.AccountID {
	if !a.IsSet {
		// It is a programmer error to call this method without
		// checking if the value was provided.
		panic("address was not set")
	}
	return a.Value
}

// IsSet checks if flag was set to a non-default value.
func (f AddressFlag) IsSet() bool {
	return f.Value.IsSet
}

// String returns a readable representation of this value
// (for usage defaults).
func (f AddressFlag) String() string {
	return usage(f.Name, f.Usage)
}

// GetName returns the name of the flag.
func (f AddressFlag) GetName() string {
	return f.Name
}

// Apply populates the flag given the flag set and environment.
// Ignores errors.
func (f AddressFlag) Apply(set *flag.FlagSet) {
	apply(set, f.Name, f.Usage, &f.Value)
}

// AddressFromContext returns the address flag value, it's nil if the flag
// wasn't set.
func AddressFromContext(ctx *cli.Context, name string) *keys.AccountID {
	a, ok := ctx.Generic(name).(*Address)
	if !ok || !a.IsSet {
		return nil
	}
	id := a.AccountID()
	return &id
}
