// Package provenance resolves where an indexed composition comes from.
//
// A lookup table maps canonical composition keys to the databases the
// composition appears in; a catalog describes each database (whether it
// holds experimental measurements, whether it carries crystal structures).
// Annotator combines both into the per-item flags the cluster index filters
// on.
package provenance
