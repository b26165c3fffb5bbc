package flags

import (
	"flag"
	"strings"
)

func eachName(longName string, fn func(string)) {
	for _, name := range strings.Split(longName, ",") {
		fn(strings.TrimSpace(name))
	}
}

// usage formats the help line of a value flag: every name with its dash
// prefix, then the usage text.
func usage(longName, text string) string {
	var names []string
	eachName(longName, func(name string) {
		if len(name) == 1 {
			names = append(names, "-"+name+" value")
		} else {
			names = append(names, "--"+name+" value")
		}
	})
	return strings.Join(names, ", ") + "\t" + text
}

// apply registers v under every name of the flag.
func apply(set *flag.FlagSet, longName, text string, v flag.Value) {
	eachName(longName, func(name string) {
		set.Var(v, name, text)
	})
}
