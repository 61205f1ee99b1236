// Package survey decodes NCHS-style coded survey exports.
//
// Categorical values in these exports are stored as numeric/text column
// pairs (PANEL_NUM/PANEL, STUB_LABEL_NUM/STUB_LABEL, ...). The package
// extracts code maps per axis, selects cross-tabulation slices by exact
// code equality, expands packed stub-label codes into semantic columns via
// versioned lookup tables, and partitions rows by estimate quality.
//
// Tables are immutable. Slices are views; Decode always works on an
// explicit copy.
package survey
