package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ExtraData is the open-ended bag of report-only slot fields, stored as JSONB
type ExtraData map[string]string

// Attachments is a list of attachment metadata, stored as JSONB
type Attachments []Attachment

func (d ExtraData) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

func (d *ExtraData) Scan(src interface{}) error {
	return scanJSON(src, d)
}

func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

func (a *Attachments) Scan(src interface{}) error {
	return scanJSON(src, a)
}

func (p HistoryPayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *HistoryPayload) Scan(src interface{}) error {
	return scanJSON(src, p)
}

func (p Period) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *Period) Scan(src interface{}) error {
	return scanJSON(src, p)
}

func (a Attachment) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Attachment) Scan(src interface{}) error {
	return scanJSON(src, a)
}

func scanJSON(src interface{}, dst interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
