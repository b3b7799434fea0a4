// Package notion is a small client for the two Notion REST operations the
// dispatcher needs: querying a database and patching page properties.
package notion
