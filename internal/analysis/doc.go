// Package analysis parses a performance report and computes summary
// statistics from it.
//
// Structural problems fail the whole call: an empty file (ErrEmptyFile), a
// missing required column (*ColumnError) or a table without rows (ErrNoData).
// Data-quality problems are tolerated per row: a response time that is not a
// number is left out of that operation's mean and max, and a status other
// than success or failed counts toward neither rate.
package analysis
