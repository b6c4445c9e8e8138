package sqlstore

import (
	"database/sql"
	"encoding/json"

	"github.com/tidalsync/core/pkg/errs"
)

func marshalValue(value interface{}) (sql.NullString, error) {
	if value == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return sql.NullString{}, errs.Wrap(errs.Format, "sqlstore.marshal_value", "encoding value failed", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func unmarshalValue(raw sql.NullString) (interface{}, error) {
	if !raw.Valid {
		return nil, nil
	}
	var value interface{}
	if err := json.Unmarshal([]byte(raw.String), &value); err != nil {
		return nil, errs.Wrap(errs.Format, "sqlstore.unmarshal_value", "decoding value failed", err)
	}
	return value, nil
}
