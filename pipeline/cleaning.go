package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"obesityrisk/ml"
)

// CleaningRule inspects one row and either returns the (possibly corrected)
// row or an error rejecting it.
type CleaningRule interface {
	Apply(Row) (Row, error)
	Name() string
}

// QualityIssue describes why a row was rejected.
type QualityIssue struct {
	Rule    string `json:"rule"`
	Line    int    `json:"line"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// CleaningStats summarises one or more Clean calls.
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Corrected      int64            `json:"corrected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// Sample is a validated training example.
type Sample struct {
	Line   int
	Record ml.PatientRecord
	Label  ml.Label
}

// DataCleaner runs the rules over raw rows and turns the survivors into samples.
type DataCleaner struct {
	rules  []CleaningRule
	logger *zap.Logger

	mu    sync.Mutex
	stats CleaningStats
}

// NewDataCleaner returns a cleaner with the default rule chain.
func NewDataCleaner(logger *zap.Logger) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	dc := &DataCleaner{
		logger: logger,
		stats:  CleaningStats{Issues: make(map[string]int64)},
	}
	dc.AddRule(NewRequiredColumnsRule())
	dc.AddRule(NewOrdinalRoundingRule())
	dc.AddRule(NewCategoryDomainRule())
	return dc
}

// AddRule appends a rule to the chain.
func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.logger.Debug("cleaning rule added", zap.String("rule", rule.Name()))
}

// Clean applies every rule to every row, then parses the record and label.
// The first failing rule rejects the row.
func (dc *DataCleaner) Clean(rows []Row) ([]Sample, []QualityIssue) {
	var samples []Sample
	var issues []QualityIssue

	dc.mu.Lock()
	defer dc.mu.Unlock()

	for _, row := range rows {
		dc.stats.TotalProcessed++
		sample, corrected, issue := dc.cleanRow(row)
		if issue != nil {
			dc.stats.Rejected++
			dc.stats.Issues[issue.Rule]++
			issues = append(issues, *issue)
			continue
		}
		if corrected {
			dc.stats.Corrected++
		}
		dc.stats.Passed++
		samples = append(samples, sample)
	}
	dc.stats.LastClean = time.Now()

	dc.logger.Info("dataset cleaned",
		zap.Int("rows", len(rows)),
		zap.Int("accepted", len(samples)),
		zap.Int("rejected", len(issues)),
	)
	return samples, issues
}

func (dc *DataCleaner) cleanRow(row Row) (Sample, bool, *QualityIssue) {
	original := copyValues(row.Values)
	row.Values = copyValues(row.Values)
	for _, rule := range dc.rules {
		next, err := rule.Apply(row)
		if err != nil {
			return Sample{}, false, newIssue(rule.Name(), row.Line, err)
		}
		row = next
	}

	rec, err := ml.ParseStringRecord(row.Values)
	if err != nil {
		return Sample{}, false, newIssue("record_validation", row.Line, err)
	}
	label, err := ml.ParseLabel(row.Values[ml.LabelColumn])
	if err != nil {
		issue := newIssue("label_validation", row.Line, err)
		issue.Field = ml.LabelColumn
		return Sample{}, false, issue
	}
	return Sample{Line: row.Line, Record: rec, Label: label}, !sameValues(original, row.Values), nil
}

func newIssue(rule string, line int, err error) *QualityIssue {
	issue := &QualityIssue{Rule: rule, Line: line, Message: err.Error()}
	if field, ok := ml.FieldOf(err); ok {
		issue.Field = field
	}
	return issue
}

// GetStats returns a copy of the accumulated statistics.
func (dc *DataCleaner) GetStats() CleaningStats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// SplitSamples separates records from labels for ml.Train.
func SplitSamples(samples []Sample) ([]ml.PatientRecord, []ml.Label) {
	records := make([]ml.PatientRecord, len(samples))
	targets := make([]ml.Label, len(samples))
	for i, s := range samples {
		records[i] = s.Record
		targets[i] = s.Label
	}
	return records, targets
}

// ============ rules ============

// RequiredColumnsRule rejects rows missing a feature or the label.
type RequiredColumnsRule struct {
	Columns []string
}

func NewRequiredColumnsRule() *RequiredColumnsRule {
	cols := make([]string, 0, len(ml.Fields())+1)
	for _, f := range ml.Fields() {
		cols = append(cols, f.Name)
	}
	cols = append(cols, ml.LabelColumn)
	return &RequiredColumnsRule{Columns: cols}
}

func (r *RequiredColumnsRule) Name() string {
	return "required_columns"
}

func (r *RequiredColumnsRule) Apply(row Row) (Row, error) {
	for _, col := range r.Columns {
		if v, ok := row.Values[col]; !ok || v == "" {
			return row, &ml.MissingFieldError{Field: col}
		}
	}
	return row, nil
}

// OrdinalRoundingRule rounds integer columns recorded with a fractional part.
// Some published copies of the dataset carry synthetic rows such as FCVC=2.45.
type OrdinalRoundingRule struct {
	Columns []string
}

func NewOrdinalRoundingRule() *OrdinalRoundingRule {
	var cols []string
	for _, f := range ml.Fields() {
		if f.Kind == ml.KindInteger {
			cols = append(cols, f.Name)
		}
	}
	return &OrdinalRoundingRule{Columns: cols}
}

func (r *OrdinalRoundingRule) Name() string {
	return "ordinal_rounding"
}

func (r *OrdinalRoundingRule) Apply(row Row) (Row, error) {
	for _, col := range r.Columns {
		raw, ok := row.Values[col]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return row, &ml.InvalidValueError{Field: col, Value: raw, Reason: "not a number"}
		}
		if v != math.Trunc(v) {
			row.Values[col] = strconv.FormatFloat(math.RoundToEven(v), 'f', -1, 64)
		}
	}
	return row, nil
}

// CategoryDomainRule rejects categorical values outside the documented levels.
type CategoryDomainRule struct {
	levels map[string]map[string]bool
}

func NewCategoryDomainRule() *CategoryDomainRule {
	r := &CategoryDomainRule{levels: make(map[string]map[string]bool)}
	for _, f := range ml.Fields() {
		if f.Kind != ml.KindCategorical {
			continue
		}
		allowed := make(map[string]bool, len(f.Levels))
		for _, l := range f.Levels {
			allowed[l] = true
		}
		r.levels[f.Name] = allowed
	}
	return r
}

func (r *CategoryDomainRule) Name() string {
	return "category_domain"
}

func (r *CategoryDomainRule) Apply(row Row) (Row, error) {
	for _, f := range ml.Fields() {
		allowed, ok := r.levels[f.Name]
		if !ok {
			continue
		}
		v := row.Values[f.Name]
		if !allowed[v] {
			return row, &ml.UnknownCategoryError{Field: f.Name, Value: v, Allowed: f.Levels}
		}
	}
	return row, nil
}

// DuplicateDetectionRule rejects rows identical to an earlier one. Not in the
// default chain; enable with training.drop_duplicates.
type DuplicateDetectionRule struct {
	seen map[string]int
	mu   sync.Mutex
}

func NewDuplicateDetectionRule() *DuplicateDetectionRule {
	return &DuplicateDetectionRule{seen: make(map[string]int)}
}

func (r *DuplicateDetectionRule) Name() string {
	return "duplicate_detection"
}

func (r *DuplicateDetectionRule) Apply(row Row) (Row, error) {
	key := rowKey(row.Values)

	r.mu.Lock()
	defer r.mu.Unlock()

	if first, exists := r.seen[key]; exists {
		return row, fmt.Errorf("duplicate of line %d", first)
	}
	r.seen[key] = row.Line
	return row, nil
}

func rowKey(values map[string]string) string {
	key := ""
	for _, f := range ml.Fields() {
		key += values[f.Name] + "|"
	}
	return key + values[ml.LabelColumn]
}

func copyValues(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

func sameValues(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
