// Package cli holds helpers shared by the assay commands: typed errors that
// map to exit codes, the run progress indicator and common flag handling.
//
// Commands report failures by returning one of the error types in this
// package; cmd.Execute translates them into process exit codes:
//
//	*RunFailedError     exit 2  (the suite ran but did not pass)
//	*InvalidSuiteError  exit 3  (a suite could not be loaded or validated)
//	anything else       exit 1
package cli
