package engine

import (
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/viant/sqlite-loc/composition"
	"github.com/viant/sqlite-loc/vector"
	sqlite "modernc.org/sqlite"
)

// RegisterFunctions registers loc_distance, loc_key, loc_l2 and loc_angular
// with the driver so they are available on new connections opened after this
// call. Existing open connections will not see new functions.
func RegisterFunctions(_ *sql.DB) error {
	// The driver rejects duplicate registrations; repeated calls are harmless.
	_ = sqlite.RegisterDeterministicScalarFunction("loc_distance", 2, distanceImpl)
	_ = sqlite.RegisterDeterministicScalarFunction("loc_key", 1, keyImpl)
	_ = sqlite.RegisterDeterministicScalarFunction("loc_l2", 2, l2Impl)
	_ = sqlite.RegisterDeterministicScalarFunction("loc_angular", 2, angularImpl)
	return nil
}

func asFormula(arg driver.Value) (composition.Composition, bool, error) {
	var raw string
	switch v := arg.(type) {
	case nil:
		return composition.Composition{}, false, nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return composition.Composition{}, false, fmt.Errorf("loc: unsupported argument type %T for formula; want TEXT", arg)
	}
	c, err := composition.Parse(raw)
	if err != nil {
		return c, false, err
	}
	return c, true, nil
}

func asEmbedding(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return vector.DecodeEmbedding(v)
	default:
		return nil, fmt.Errorf("loc: unsupported argument type %T for embedding; want BLOB", arg)
	}
}

// distanceImpl implements loc_distance(a TEXT, b TEXT) -> REAL.
func distanceImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("loc_distance: expected 2 arguments, got %d", len(args))
	}
	a, okA, err := asFormula(args[0])
	if err != nil {
		return nil, err
	}
	b, okB, err := asFormula(args[1])
	if err != nil {
		return nil, err
	}
	if !okA || !okB {
		return nil, nil
	}
	return composition.Distance(a, b), nil
}

// keyImpl implements loc_key(a TEXT) -> TEXT.
func keyImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("loc_key: expected 1 argument, got %d", len(args))
	}
	c, ok, err := asFormula(args[0])
	if err != nil || !ok {
		return nil, err
	}
	return c.CanonicalKey(), nil
}

func embeddingPair(name string, args []driver.Value) ([]float32, []float32, error) {
	if len(args) != 2 {
		return nil, nil, fmt.Errorf("%s: expected 2 arguments, got %d", name, len(args))
	}
	a, err := asEmbedding(args[0])
	if err != nil {
		return nil, nil, err
	}
	b, err := asEmbedding(args[1])
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// l2Impl implements loc_l2(a BLOB, b BLOB) -> REAL.
func l2Impl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, b, err := embeddingPair("loc_l2", args)
	if err != nil || a == nil || b == nil {
		return nil, err
	}
	return vector.L2Distance(a, b)
}

// angularImpl implements loc_angular(a BLOB, b BLOB) -> REAL.
func angularImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, b, err := embeddingPair("loc_angular", args)
	if err != nil || a == nil || b == nil {
		return nil, err
	}
	return vector.AngularDistance(a, b)
}
