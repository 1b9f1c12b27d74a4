package kernel

import (
	"fmt"
	"strconv"
	"strings"
)

// Configuration maps parameter names to one chosen candidate value. A
// configuration produced by BuildConfigurations satisfies every declared
// constraint; configurations are transient and discarded once their trial
// result is recorded.
type Configuration map[string]int

// Clone returns an independent copy.
func (c Configuration) Clone() Configuration {
	out := make(Configuration, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Key renders the configuration canonically using the given parameter order.
// Two configurations over the same parameters have equal keys iff they bind
// equal values.
func (c Configuration) Key(params []Parameter) string {
	var b strings.Builder
	for i := range params {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.Itoa(c[params[i].Name]))
	}
	return b.String()
}

// Format renders the configuration for display in declaration order, e.g.
// "MWG=64 NWG=128".
func (c Configuration) Format(params []Parameter) string {
	pairs := make([]string, 0, len(params))
	for i := range params {
		pairs = append(pairs, fmt.Sprintf("%s=%d", params[i].Name, c[params[i].Name]))
	}
	return strings.Join(pairs, " ")
}
