package domain

// DefaultRunnerName is the name used by Registry.RegisterDefault.
const DefaultRunnerName = "Default"

// MaxKeyLength bounds store keys; SQL backends declare the key column with this length.
const MaxKeyLength = 128

// StateKey derives the store key of a runner.
// Runner names are case-insensitive, so the key uses the folded name verbatim:
// two names share a key only when they fold to the same string.
func StateKey(runner string) string {
	name := Fold(runner)
	if name == "" {
		name = "anonymous"
	}
	return "yol.manager." + name + ".state"
}
