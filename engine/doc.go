// Package engine opens SQLite connections through the modernc.org/sqlite
// driver and registers the module's SQL scalar functions:
//
//	loc_distance(a TEXT, b TEXT) REAL   fractional L1 distance of two formulas
//	loc_key(a TEXT) TEXT                canonical composition key
//	loc_l2(a BLOB, b BLOB) REAL         Euclidean distance of two embeddings
//	loc_angular(a BLOB, b BLOB) REAL    angular distance of two embeddings
package engine
