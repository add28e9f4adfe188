// Package domain models the storm reports consumed by the gridder and the
// gridded analyses it publishes.
//
// # Input
//
// The source topic carries storm reports already enriched by the ETL service:
// a JSON object per report with an event type ("hail", "wind", "tornado"),
// a WGS-84 position, a normalized measurement and an hourly time bucket.
// Only those fields are decoded; everything else is ignored. See
// [ParseStormEvent].
//
// The offline tool reads the raw NOAA Storm Prediction Center daily CSV files
// instead (https://www.spc.noaa.gov/climo/reports/). Rows are converted with
// [EventFromRecord], which applies the same conventions the ETL service does:
//
//	Time:      HHMM in 24-hour UTC; three-digit values are zero-padded.
//	Hail:      inches, or hundredths of inches when the value is >= 10.
//	Tornado:   Enhanced Fujita integer, "EF"/"F" prefix stripped.
//	Wind:      miles per hour.
//	"UNK":     unknown magnitude, read as 0 and excluded from analyses.
//
// # Observations
//
// Longitude and latitude are used directly as planar x and y; no map
// projection is applied. Reports at (0, 0) or with zero magnitude are
// dropped, and repeated coordinates keep the first report, because coincident
// points would produce degenerate triangles.
//
// # Output
//
// An [Analysis] is keyed by product and time bucket so that a compacted sink
// topic retains the latest analysis for every slot. Grid values are row-major
// from the south-west corner; undetermined cells are encoded as JSON null.
//
// To build a grid, the observation bounding box is padded, the number of
// columns and rows is floor(extent / spacing), and the grid spans the padded
// box edge to edge. See [GenerateGrid].
package domain
