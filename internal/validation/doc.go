// Package validation checks a finished SQL query against a ground-truth query
// by execution accuracy.
//
// Both queries run on the table database and their result sets are compared
// as multisets: row order is ignored, strings compare case-insensitively and
// numbers compare by value (so 3, 3.0 and "3" are equal).
//
// A Verdict never carries an error. A predicted query that fails to execute is
// a failed verdict with the execution error as its Reason; a gold query that
// fails to execute is also a failed verdict, reported separately so batch runs
// can exclude broken cases.
//
// Typical use:
//
//	v := validation.NewValidator(tables)
//	verdict := v.Validate(ctx, validation.Case{
//		TableID:      "1-10015132-11",
//		PredictedSQL: analysis.FinalSQL(),
//		GoldSQL:      "SELECT col5 FROM table_1_10015132_11 WHERE col1 = 21",
//	}, &analysis.Report)
package validation
