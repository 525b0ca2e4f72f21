// Package domain normalizes river water-level and rainfall situation reports.
//
// # Data Source
//
// Reports are published several times a day as PDF tables listing every
// gauging station with its flood thresholds, recent water-level readings and
// accumulated rainfall. An upstream extractor turns each document into JSON
// named water_level_<epoch>.json, where epoch is the publication time in Unix
// seconds. The JSON is an array of row objects keyed by column position:
//
//	[{"0": "River Basin", "1": "Tributory/River", "2": "Gauging Station", ...},
//	 {"0": "", "1": "", "2": "", ..., "9": "at 6:30 am"},
//	 {"0": "Kelani Ganga", "1": "Kelani Ganga", "2": "Nagalagam Street", ...}]
//
// # Report Conventions
//
// Headers span two rows. Merged PDF cells leave the primary row blank under a
// group label, so the sub row carries the label for those positions:
//
//	primary: "Water Level"  ""            ""
//	sub:     ""             "at 8 am"     "at 2 pm"
//	result:  "Water Level"  "at 8 am"     "at 2 pm"
//
// Dynamic columns are recognised by label only:
//
//	"Water Level at 6:30 am"     water level reading at a clock time
//	"24 Hr RF in mm at 8.30 am"  rainfall accumulated over a 24 hour window
//	"at 2 pm"                    bare time under the preceding group label
//
// The earliest and latest water-level columns give the row's difference and
// trend tag ("rising", "falling", "no change", or "<!Error>" when the
// difference is not a number). Placeholders "NA", "-" and "N.A." mean no
// reading and are stored as zero.
//
// Station and river names are free text. River basins are resolved through a
// lookup file because the published basin column is unreliable, and a small
// set of station overrides corrects rivers the source is known to misreport.
//
// # Errors and Diagnostics
//
// Structural problems ([ErrMalformedInput]) and unparseable numbers
// ([ErrParseFailure]) reject the whole report. Lookup misses, ambiguous
// columns and similar observations are returned as [Diagnostics] so callers
// can log and count them.
package domain
