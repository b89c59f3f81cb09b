package ctgov

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Record is one study exactly as the registry returned it.
type Record map[string]any

// ResultSet holds records in page-arrival order. Duplicates are preserved.
type ResultSet []Record

// Lookup walks nested objects along path and returns the value found.
func (r Record) Lookup(path ...string) (any, bool) {
	var current any = map[string]any(r)
	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func (r Record) lookupString(path ...string) string {
	value, ok := r.Lookup(path...)
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// NCTID returns the registry identifier, e.g. NCT01234567.
func (r Record) NCTID() string {
	return r.lookupString("protocolSection", "identificationModule", "nctId")
}

// BriefTitle returns the short study title.
func (r Record) BriefTitle() string {
	return r.lookupString("protocolSection", "identificationModule", "briefTitle")
}

// OverallStatus returns the raw recruitment status, e.g. RECRUITING.
func (r Record) OverallStatus() string {
	return r.lookupString("protocolSection", "statusModule", "overallStatus")
}

// Conditions returns the studied conditions.
func (r Record) Conditions() []string {
	value, ok := r.Lookup("protocolSection", "conditionsModule", "conditions")
	if !ok {
		return nil
	}
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// Columns returns the union of top-level keys across the set, in first-seen
// order. Keys within one record are taken in sorted order.
func (rs ResultSet) Columns() []string {
	seen := make(map[string]struct{})
	var columns []string
	for _, record := range rs {
		keys := make([]string, 0, len(record))
		for key := range record {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			columns = append(columns, key)
		}
	}
	return columns
}

// Rows returns one row per record aligned with Columns; missing keys are nil.
func (rs ResultSet) Rows() [][]any {
	columns := rs.Columns()
	rows := make([][]any, 0, len(rs))
	for _, record := range rs {
		row := make([]any, len(columns))
		for i, column := range columns {
			row[i] = record[column]
		}
		rows = append(rows, row)
	}
	return rows
}

// Summary is the condensed view rendered in terminal tables.
type Summary struct {
	NCTID      string   `json:"nct_id"`
	Title      string   `json:"title"`
	Status     string   `json:"status"`
	Conditions []string `json:"conditions,omitempty"`
}

// Summarize condenses each record in the set.
func (rs ResultSet) Summarize() []Summary {
	out := make([]Summary, 0, len(rs))
	for _, record := range rs {
		out = append(out, Summary{
			NCTID:      record.NCTID(),
			Title:      record.BriefTitle(),
			Status:     HumanizeStatus(record.OverallStatus()),
			Conditions: record.Conditions(),
		})
	}
	return out
}

// HumanizeStatus turns registry enums such as ACTIVE_NOT_RECRUITING into
// "Active Not Recruiting".
func HumanizeStatus(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	words := strings.ReplaceAll(strings.ToLower(status), "_", " ")
	return cases.Title(language.English).String(words)
}
