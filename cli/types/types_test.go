package types_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nspcc-dev/subgo/internal/testcli"
	"github.com/nspcc-dev/subgo/pkg/typereg"
	"github.com/stretchr/testify/require"
)

func writeFragment(t *testing.T, dir, name, data string) string {
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func TestAggregate(t *testing.T) {
	d := t.TempDir()
	a := writeFragment(t, d, "a.json", `{"A": "u32", "Pair": {"x": "u8", "y": "u16"}}`)
	b := writeFragment(t, d, "b.json", `{"B": "u64"}`)
	c := writeFragment(t, d, "c.json", `{"A": "u128"}`)
	out := filepath.Join(d, "out", "types.json")

	e := testcli.NewExecutor(t)
	e.Run(t, "subgo", "types", "aggregate", "--out", out, a, b, c)
	e.CheckNextLine(t, `^Saved 3 type\(s\) from 3 fragment\(s\) to `)
	e.CheckEOF(t)
	require.Contains(t, e.Err.String(), `type "A" from `+c+` overrides `+a)

	schema, err := typereg.LoadFile(out)
	require.NoError(t, err)
	require.True(t, typereg.Schema{
		"A":    typereg.AliasOf("u128"),
		"B":    typereg.AliasOf("u64"),
		"Pair": typereg.StructOf("x", "u8", "y", "u16"),
	}.Equal(schema))

	t.Run("show", func(t *testing.T) {
		e.Run(t, "subgo", "types", "show", "--types", out)
		e.CheckNextLine(t, `^A: "u128"$`)
		e.CheckNextLine(t, `^B: "u64"$`)
		e.CheckNextLine(t, `^Pair: {"x":"u8","y":"u16"}$`)
		e.CheckEOF(t)

		e.Run(t, "subgo", "types", "show", "--types", out, "Pair")
		e.CheckNextLine(t, `^Pair: `)
		e.CheckEOF(t)

		e.RunWithErrorCheck(t, "unknown type C", "subgo", "types", "show", "--types", out, "C")
	})
}

func TestAggregateStrict(t *testing.T) {
	d := t.TempDir()
	a := writeFragment(t, d, "a.json", `{"A": "u32"}`)
	b := writeFragment(t, d, "b.json", `{"A": "u64"}`)
	out := filepath.Join(d, "types.json")

	e := testcli.NewExecutor(t)
	e.RunWithErrorCheck(t, "1 type(s) redefined", "subgo", "types", "aggregate", "--strict", "--out", out, a, b)
	_, err := os.Stat(out)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestAggregateErrors(t *testing.T) {
	d := t.TempDir()
	bad := writeFragment(t, d, "bad.json", `{"A": `)

	e := testcli.NewExecutor(t)
	e.RunWithErrorCheck(t, "no fragments given", "subgo", "types", "aggregate")
	e.RunWithErrorCheck(t, "bad.json", "subgo", "types", "aggregate", "--out", filepath.Join(d, "out.json"), bad)
	e.RunWithErrorCheck(t, "missing.json", "subgo", "types", "aggregate", "--out", filepath.Join(d, "out.json"), filepath.Join(d, "missing.json"))
}
