package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// BucketEntry is one participant in a bucket together with the note they signed up with.
type BucketEntry struct {
	Participant string `json:"participant"`
	Note        string `json:"note"`
}

// Bucket is the plain data form of a roster bucket. The order of the entries is the sign-up order, it is
// serialized as a JSON object whose keys keep that order.
type Bucket []BucketEntry

// Value return json value, implement driver.Valuer interface
func (b Bucket) Value() (driver.Value, error) {
	ba, err := b.MarshalJSON()
	return string(ba), err
}

// Scan scan value into Bucket, implements sql.Scanner interface
func (b *Bucket) Scan(val interface{}) error {
	var ba []byte
	switch v := val.(type) {
	case []byte:
		ba = v
	case string:
		ba = []byte(v)
	case nil:
		*b = Bucket{}
		return nil
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal bucket value:", val))
	}
	return b.UnmarshalJSON(ba)
}

// MarshalJSON writes the entries as {"participant":"note",...} in bucket order
func (b Bucket) MarshalJSON() ([]byte, error) {
	buf := bytes.Buffer{}
	buf.WriteByte('{')
	for i, entry := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(entry.Participant)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(entry.Note)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object token by token, so the key order survives.
func (b *Bucket) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*b = Bucket{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("bucket: expected object, got %v", tok)
	}
	res := Bucket{}
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("bucket: expected string key, got %v", tok)
		}
		var note string
		if err := dec.Decode(&note); err != nil {
			return err
		}
		if _, ok := seen[key]; ok {
			return fmt.Errorf("bucket: duplicate participant %q", key)
		}
		seen[key] = struct{}{}
		res = append(res, BucketEntry{Participant: key, Note: note})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*b = res
	return nil
}

// Participants returns the participant ids in bucket order.
func (b Bucket) Participants() []string {
	res := make([]string, len(b))
	for i, entry := range b {
		res[i] = entry.Participant
	}
	return res
}

// GormDataType gorm common data type
func (b Bucket) GormDataType() string {
	return "bucket"
}

// GormDBDataType gorm db data type
func (Bucket) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "sqlite":
		return "JSON"
	case "mysql":
		return "JSON"
	case "postgres":
		return "JSON" // JSONB would reorder the keys
	}
	return ""
}
