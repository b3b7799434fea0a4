// Package cmd implements the cobra command tree for the outreach CLI: a run
// of the dispatcher, database diagnosis, configuration dump, keyring
// credential management, version and shell completion.
package cmd
