// Package dataset supplies the readings the publisher replays.
//
// A dataset is an ordered list of rows, each a timestamp plus one value per
// field. Rows come from a CSV file, from the SQLite store, or from the
// synthetic generator that also produces the CSV and SQLite files:
//
//	timestamp,mixing_temperature,mixing_humidity,...
//	2024-05-05 12:00:00,25.31,44.2,...
//
// Generated data follows the plant's nominal operating points with uniform
// noise; a few temperatures also follow a daily cycle.
package dataset
