package trace

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/teranos/finkg/errors"
)

// UnknownScenario is the summary bucket for records without a scenario
const UnknownScenario = "unknown"

// maxLine bounds a single record; fact blocks for large clients run long
const maxLine = 8 << 20

// legacy key names written by earlier tooling, mapped to current fields
var legacyKeys = map[string]string{
	"user_question": "question",
	"facts_text":    "facts",
	"llm_response":  "response",
}

// Load reads the log at path. A missing file is an empty log.
func Load(path string) ([]Record, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, errors.Wrapf(err, "failed to open trace log %s", path)
	}
	defer f.Close()

	return Read(f)
}

// Read decodes JSONL records from r. Blank lines are ignored and lines that
// are not a JSON object are skipped and counted.
func Read(r io.Reader) (records []Record, skipped int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return records, skipped, errors.Wrap(err, "failed to read trace log")
	}
	return records, skipped, nil
}

// UnmarshalJSON accepts current and legacy field names. Keys it does not
// know are kept in Extra. An unparseable timestamp leaves Timestamp zero.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for old, cur := range legacyKeys {
		if v, ok := raw[old]; ok {
			if _, exists := raw[cur]; !exists {
				raw[cur] = v
			}
			delete(raw, old)
		}
	}

	*r = Record{}
	fields := map[string]*string{
		"id":        &r.ID,
		"scenario":  &r.Scenario,
		"client_id": &r.ClientID,
		"tx_id":     &r.TxID,
		"question":  &r.Question,
		"facts":     &r.Facts,
		"response":  &r.Response,
		"error":     &r.Error,
	}
	for key, dst := range fields {
		v, ok := raw[key]
		if !ok {
			continue
		}
		delete(raw, key)
		// null and non-string values leave the field empty
		_ = json.Unmarshal(v, dst)
	}

	if v, ok := raw["timestamp"]; ok {
		delete(raw, "timestamp")
		var s string
		if json.Unmarshal(v, &s) == nil {
			r.Timestamp = parseTimestamp(s)
		}
	}

	if v, ok := raw["extra"]; ok {
		delete(raw, "extra")
		_ = json.Unmarshal(v, &r.Extra)
	}
	for key, v := range raw {
		var val interface{}
		if json.Unmarshal(v, &val) != nil {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]interface{})
		}
		r.Extra[key] = val
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

// Last returns the most recent record, optionally restricted to a scenario
// (case-insensitive). It returns nil when nothing matches.
func Last(records []Record, scenario string) *Record {
	var last *Record
	for i := range records {
		rec := &records[i]
		if scenario != "" && !strings.EqualFold(rec.Scenario, scenario) {
			continue
		}
		if last == nil || !rec.Timestamp.Before(last.Timestamp) {
			last = rec
		}
	}
	return last
}

// Summary counts records per scenario
type Summary struct {
	TotalEntries   int            `json:"total_entries" yaml:"total_entries"`
	Skipped        int            `json:"skipped_lines" yaml:"skipped_lines"`
	PerScenario    map[string]int `json:"per_scenario" yaml:"per_scenario"`
	FirstTimestamp *time.Time     `json:"first_timestamp" yaml:"first_timestamp"`
	LastTimestamp  *time.Time     `json:"last_timestamp" yaml:"last_timestamp"`
}

// Summarize aggregates records. Scenario keys are lowercased.
func Summarize(records []Record) Summary {
	s := Summary{
		TotalEntries: len(records),
		PerScenario:  make(map[string]int),
	}
	for _, rec := range records {
		key := strings.ToLower(rec.Scenario)
		if key == "" {
			key = UnknownScenario
		}
		s.PerScenario[key]++

		ts := rec.Timestamp
		if s.FirstTimestamp == nil || ts.Before(*s.FirstTimestamp) {
			s.FirstTimestamp = &ts
		}
		if s.LastTimestamp == nil || ts.After(*s.LastTimestamp) {
			s.LastTimestamp = &ts
		}
	}
	return s
}

// Scenarios returns the summary keys in sorted order
func (s Summary) Scenarios() []string {
	keys := make([]string, 0, len(s.PerScenario))
	for k := range s.PerScenario {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
