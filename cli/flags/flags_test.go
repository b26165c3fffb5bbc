package flags

import (
	"flag"
	"io"
	"testing"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/subgo/pkg/crypto/keys"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

// Alice sr25519 public key.
const aliceAddress = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

func TestAddress_Set(t *testing.T) {
	addr := Address{}
	require.Equal(t, "", addr.String())

	t.Run("bad address", func(t *testing.T) {
		require.Error(t, addr.Set("not an address"))
		require.False(t, addr.IsSet)
	})

	t.Run("ss58", func(t *testing.T) {
		require.NoError(t, addr.Set(aliceAddress))
		require.True(t, addr.IsSet)
		require.Equal(t, aliceAddress, addr.String())
	})

	t.Run("hex", func(t *testing.T) {
		id := keys.AccountID{1, 2, 3}
		require.NoError(t, addr.Set(id.Hex()))
		require.Equal(t, id, addr.AccountID())
	})
}

func TestAddress_AccountIDPanics(t *testing.T) {
	addr := Address{}
	require.Panics(t, func() { addr.AccountID() })
}

func TestAddressFlag(t *testing.T) {
	f := AddressFlag{Name: "to, t", Usage: "receiver"}
	require.Equal(t, "--to value, -t value\treceiver", f.String())
	require.Equal(t, "to, t", f.GetName())

	set := flag.NewFlagSet("", flag.ContinueOnError)
	set.SetOutput(io.Discard)
	f.Apply(set)
	ctx := cli.NewContext(cli.NewApp(), set, nil)
	require.Nil(t, AddressFromContext(ctx, "to"))

	require.NoError(t, set.Parse([]string{"-t", aliceAddress}))
	id := AddressFromContext(ctx, "to")
	require.NotNil(t, id)
	require.Equal(t, aliceAddress, id.String())

	require.Error(t, set.Parse([]string{"--to", "5Grwva"}))
}

func TestParseAmount(t *testing.T) {
	var testCases = []struct {
		in  string
		out *uint256.Int
	}{
		{"0", uint256.NewInt(0)},
		{"12345", uint256.NewInt(12345)},
		{"1_000_000", uint256.NewInt(1000000)},
		{"340282366920938463463374607431768211455", new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)},
	}
	for _, tc := range testCases {
		n, err := ParseAmount(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.out, n, tc.in)
	}
	for _, bad := range []string{"", "1.5", "-1", "0x10", "340282366920938463463374607431768211456"} {
		_, err := ParseAmount(bad)
		require.Error(t, err, bad)
	}
}

func TestAmountFlag(t *testing.T) {
	f := AmountFlag{Name: "amount", Usage: "how much"}
	require.Equal(t, "--amount value\thow much", f.String())
	require.Equal(t, "amount", f.GetName())

	set := flag.NewFlagSet("", flag.ContinueOnError)
	set.SetOutput(io.Discard)
	f.Apply(set)
	ctx := cli.NewContext(cli.NewApp(), set, nil)
	require.True(t, AmountFromContext(ctx, "amount").IsZero())

	require.NoError(t, set.Parse([]string{"--amount", "1000"}))
	require.Equal(t, uint256.NewInt(1000), AmountFromContext(ctx, "amount"))
	require.Error(t, set.Parse([]string{"--amount", "many"}))
}
