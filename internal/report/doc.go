// Package report writes the performance report at the end of a run.
//
// The file is comma-separated text with a fixed header:
//
//	timestamp,operation,response_time,status
//
// An optional preamble can precede the table:
//
//	### Test Configuration ###
//	jfrog_url,https://example.jfrog.io
//	### Performance Metrics ###
//
//	timestamp,operation,response_time,status
//	...
//
// Configuration lines are split on their first comma, so values may contain
// commas.
package report
