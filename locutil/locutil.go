package locutil

import (
	"github.com/viant/sqlite-loc/loctab"
)

// ShadowTableName derives the default shadow table name for a given loc
// virtual table. It mirrors the naming convention used by the loc module,
// which prefixes the table name with _loc_.
//
// For example:
//
//	ShadowTableName("materials") == "_loc_materials".
func ShadowTableName(virtualTable string) string {
	return loctab.ShadowTableName(virtualTable)
}
