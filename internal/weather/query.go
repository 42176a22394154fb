package weather

import (
	"strings"
	"time"
)

// Field names a filterable Record column.
type Field string

const (
	FieldLocation  Field = "location"
	FieldDate      Field = "date"
	FieldCondition Field = "condition"
)

// Operator is the comparison a Clause applies.
type Operator int

const (
	// Equals matches a string field exactly.
	Equals Operator = iota
	// Contains matches a string field by substring.
	Contains
	// Between matches a time field within [From, To], both ends inclusive.
	Between
)

// Clause is a single predicate over one Record field.
type Clause struct {
	Field    Field
	Operator Operator
	Value    string
	From     time.Time
	To       time.Time
}

// Query is a conjunction of clauses. The zero Query matches every record.
type Query struct {
	Clauses []Clause
}

// Where returns a copy of q with c appended.
func (q Query) Where(c Clause) Query {
	clauses := make([]Clause, 0, len(q.Clauses)+1)
	clauses = append(clauses, q.Clauses...)
	return Query{Clauses: append(clauses, c)}
}

// Matches reports whether r satisfies every clause of q.
func (q Query) Matches(r Record) bool {
	for _, c := range q.Clauses {
		if !c.matches(r) {
			return false
		}
	}
	return true
}

func (c Clause) matches(r Record) bool {
	switch c.Operator {
	case Between:
		if c.Field != FieldDate {
			return false
		}
		return !r.Date.Before(c.From) && !r.Date.After(c.To)
	case Equals:
		return r.stringField(c.Field) == c.Value
	case Contains:
		return strings.Contains(r.stringField(c.Field), c.Value)
	default:
		return false
	}
}

func (r Record) stringField(f Field) string {
	switch f {
	case FieldLocation:
		return r.Location
	case FieldCondition:
		return r.Condition
	default:
		return ""
	}
}

// BuildSearchQuery turns a filter into a query. Every set field adds one
// clause; the clauses are ANDed together.
func BuildSearchQuery(f SearchFilter) Query {
	var q Query
	if f.Date != nil {
		start, end := DayBounds(*f.Date)
		q = q.Where(Clause{Field: FieldDate, Operator: Between, From: start, To: end})
	}
	if f.Location != "" {
		q = q.Where(Clause{Field: FieldLocation, Operator: Contains, Value: f.Location})
	}
	if f.Condition != "" {
		q = q.Where(Clause{Field: FieldCondition, Operator: Contains, Value: f.Condition})
	}
	return q
}

// endOfDay is the offset of 23:59:59.999 from midnight.
const endOfDay = 24*time.Hour - time.Millisecond

// DayBounds returns 00:00:00.000 and 23:59:59.999 of t's UTC calendar day.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := midnightUTC(t)
	return start, start.Add(endOfDay)
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
