// Package locsync replicates loc shadow tables using SCNs (system change
// numbers). Triggers on the upstream shadow table append every change to
// loc_shadow_log with a per-dataset SCN; Replicate copies entries past the
// replica's last applied SCN into the replica's shadow table, whose own loc
// triggers then invalidate persisted indexes.
package locsync
