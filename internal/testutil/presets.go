package testutil

import "fmt"

// EchoDocument returns a document declaring one std.echo-based action per name.
func EchoDocument(t interface{ Helper() }, names ...string) string {
	t.Helper()
	doc := "version: '2.0'\n"
	for _, name := range names {
		doc += fmt.Sprintf("%s:\n  base: std.echo\n  base-input:\n    output: <%% $.text %%>\n  input:\n    - text\n", name)
	}
	return doc
}
