package codec

import (
	json "github.com/nspcc-dev/go-ordered-json"
	"github.com/nspcc-dev/subgo/pkg/typereg"
)

// Builtin returns definitions known without any schema. Schema passed to
// NewRegistry overrides them.
func Builtin() typereg.Schema {
	return typereg.Schema{
		"Index":        typereg.AliasOf("u32"),
		"RefCount":     typereg.AliasOf("u32"),
		"Balance":      typereg.AliasOf("u128"),
		"BlockNumber":  typereg.AliasOf("u32"),
		"Hash":         typereg.AliasOf("H256"),
		"BlockHash":    typereg.AliasOf("Hash"),
		"AccountIndex": typereg.AliasOf("u32"),
		"Moment":       typereg.AliasOf("u64"),
		"Weight":       typereg.AliasOf("u64"),
		"AccountData": typereg.StructOf(
			"free", "Balance",
			"reserved", "Balance",
			"miscFrozen", "Balance",
			"feeFrozen", "Balance",
		),
		"AccountInfo": typereg.StructOf(
			"nonce", "Index",
			"consumers", "RefCount",
			"providers", "RefCount",
			"sufficients", "RefCount",
			"data", "AccountData",
		),
		"MultiAddress": enumOf(
			"Id", "AccountId",
			"Index", "Compact<AccountIndex>",
			"Raw", "Bytes",
			"Address32", "H256",
			"Address20", "H160",
		),
		"Address":      typereg.AliasOf("MultiAddress"),
		"LookupSource": typereg.AliasOf("MultiAddress"),
	}
}

func enumOf(variants ...string) typereg.Definition {
	return typereg.Definition{Object: json.OrderedObject{
		{Key: "_enum", Value: typereg.StructOf(variants...).Object},
	}}
}
