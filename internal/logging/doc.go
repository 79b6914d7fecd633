// Package logger provides leveled logging for veil commands.
//
// The logger supports multiple verbosity levels controlled by command-line
// flags. Output is formatted with semantic prefixes and colors.
//
// # Verbosity Levels
//
//   - --verbose: Shows info messages
//   - --debug: Shows all messages including debug details
//
// Warnings and errors are always shown.
//
// # Output
//
// Every level writes to stderr. git plumbing that drives veil reads stdout,
// so stdout is reserved for command results.
//
// # Usage
//
//	log := Logger{Verbose: verbose, Debug: debug}
//	log.Infof("mirrored %d objects", count)
package logger
