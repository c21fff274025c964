// Package loctab implements the "loc" SQLite virtual table: List-of-Clusters
// similarity search over chemical formulas with MATCH semantics.
//
//	CREATE VIRTUAL TABLE nn USING loc(formula, ratio=32, k=50);
//	SELECT id, formula, distance FROM nn
//	 WHERE dataset_id = 'ds' AND formula MATCH 'Fe2O3' AND k = 5;
//	SELECT id, formula, distance FROM nn
//	 WHERE dataset_id = 'ds' AND formula MATCH 'Fe2O3' AND radius = 0.2;
//
// Rows live in the shadow table _loc_<name>(dataset_id, id, formula). The
// index of each dataset is built on first use and shared through a
// process-wide cache. index=loc (default) builds a List-of-Clusters index and
// persists it in loc_storage; index=brute scans, index=cover builds a cover
// tree (cover_base=1.3), and index=auto scans datasets smaller than ratio
// rows and clusters the rest. Triggers on the shadow table drop the
// persisted blob and the cached index whenever rows change.
package loctab
