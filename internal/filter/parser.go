package filter

import (
	"strconv"
	"strings"
	"time"
)

// FieldType describes the expected JSON type of a metadata field, used for
// schema-validated parsing of string-encoded filter values (as they'd
// arrive off a query-string or JSON request body).
type FieldType int

const (
	StringField FieldType = iota
	IntField
	FloatField
	BoolField
	TimeField
	StringArrayField
	IntArrayField
	FloatArrayField
)

// Schema maps field name to expected type; a nil Schema disables
// validation and falls back to type inference.
type Schema map[string]FieldType

// Parser parses string-encoded filter operands against an optional Schema.
type Parser struct {
	schema Schema
}

func NewParser(schema Schema) *Parser {
	return &Parser{schema: schema}
}

func (p *Parser) ValidateField(field string) error {
	if p.schema == nil {
		return nil
	}
	if _, ok := p.schema[field]; !ok {
		return newError(field, "field not found in schema")
	}
	return nil
}

// ParseValue parses value according to the schema's type for field, or
// infers a type (bool, int64, float64, time, string in that order) when no
// schema is configured.
func (p *Parser) ParseValue(field, value string) (interface{}, error) {
	if p.schema == nil {
		return p.infer(value), nil
	}
	ft, ok := p.schema[field]
	if !ok {
		return nil, newError(field, "field not found in schema")
	}
	return p.parseTyped(value, ft)
}

func (p *Parser) ParseValues(field string, values []string) ([]interface{}, error) {
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		parsed, err := p.ParseValue(field, v)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}

func (p *Parser) parseTyped(value string, ft FieldType) (interface{}, error) {
	switch ft {
	case StringField:
		return value, nil
	case IntField:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, newError("", "invalid integer value: "+value)
		}
		return n, nil
	case FloatField:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, newError("", "invalid float value: "+value)
		}
		return f, nil
	case BoolField:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, newError("", "invalid boolean value: "+value)
		}
		return b, nil
	case TimeField:
		return p.parseTime(value)
	case StringArrayField:
		return strings.Split(value, ","), nil
	case IntArrayField:
		parts := strings.Split(value, ",")
		out := make([]int64, len(parts))
		for i, part := range parts {
			n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return nil, newError("", "invalid integer in array: "+part)
			}
			out[i] = n
		}
		return out, nil
	case FloatArrayField:
		parts := strings.Split(value, ",")
		out := make([]float64, len(parts))
		for i, part := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return nil, newError("", "invalid float in array: "+part)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, newError("", "unsupported field type")
	}
}

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (p *Parser) parseTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	if ts, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(ts, 0), nil
	}
	return time.Time{}, newError("", "unable to parse time value: "+value)
}

func (p *Parser) infer(value string) interface{} {
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if t, err := p.parseTime(value); err == nil {
		return t
	}
	return value
}

// CreateMatchKeyword builds a schema-validated MatchKeyword condition.
func (p *Parser) CreateMatchKeyword(field, value string) (*MatchKeyword, error) {
	if err := p.ValidateField(field); err != nil {
		return nil, err
	}
	v, err := p.ParseValue(field, value)
	if err != nil {
		return nil, err
	}
	return NewMatchKeyword(field, v), nil
}

// CreateRange builds a schema-validated Range condition; empty bound
// strings are treated as unset.
func (p *Parser) CreateRange(field, gte, gt, lte, lt string) (*Range, error) {
	if err := p.ValidateField(field); err != nil {
		return nil, err
	}
	parse := func(s string) (interface{}, error) {
		if s == "" {
			return nil, nil
		}
		return p.ParseValue(field, s)
	}
	gteV, err := parse(gte)
	if err != nil {
		return nil, err
	}
	gtV, err := parse(gt)
	if err != nil {
		return nil, err
	}
	lteV, err := parse(lte)
	if err != nil {
		return nil, err
	}
	ltV, err := parse(lt)
	if err != nil {
		return nil, err
	}
	return NewRange(field, gteV, gtV, lteV, ltV), nil
}
