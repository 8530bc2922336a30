package recovery

import (
	"fmt"
	"sync"
)

// Anomaly codes recorded while parsing.
const (
	AnomalyXRefPrevCycle        = "xref_prev_cycle"
	AnomalyXRefParseFailed      = "xref_parse_failed"
	AnomalyXRefAlternateForm    = "xref_recovered_alternate_form"
	AnomalyXRefNearOffset       = "xref_recovered_near_offset"
	AnomalyXRefScan             = "xref_recovered_by_scan"
	AnomalyXRefChainTooDeep     = "xref_chain_too_deep"
	AnomalyObjectIDMismatch     = "object_id_mismatch"
	AnomalyObjectParseRecovered = "object_parse_recovered"
	AnomalyStreamLength         = "stream_length_fallback"
	AnomalyRecursionLimit       = "recursion_limit"
	AnomalyObjectStreamInvalid  = "object_stream_invalid"
	AnomalyHeaderDisplaced      = "header_displaced"
	AnomalyCatalogSynthesized   = "catalog_synthesized"
	AnomalyCatalogMissing       = "catalog_missing"
)

// Anomaly is a non-fatal irregularity found in the input.
type Anomaly struct {
	Code        string
	Message     string
	Offset      int64
	HasOffset   bool
	Recoverable bool
}

func (a Anomaly) String() string {
	if a.HasOffset {
		return fmt.Sprintf("%s at %d: %s", a.Code, a.Offset, a.Message)
	}
	return fmt.Sprintf("%s: %s", a.Code, a.Message)
}

// Recorder collects anomalies for one parse session. The zero value is ready to use.
type Recorder struct {
	mu        sync.Mutex
	anomalies []Anomaly
}

func (r *Recorder) Record(code, message string) {
	r.add(Anomaly{Code: code, Message: message, Recoverable: true})
}

func (r *Recorder) RecordAt(code, message string, offset int64) {
	r.add(Anomaly{Code: code, Message: message, Offset: offset, HasOffset: true, Recoverable: true})
}

func (r *Recorder) add(a Anomaly) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.anomalies = append(r.anomalies, a)
	r.mu.Unlock()
}

// Anomalies returns a copy of everything recorded so far.
func (r *Recorder) Anomalies() []Anomaly {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Anomaly(nil), r.anomalies...)
}

// Count returns how many anomalies with the given code were recorded.
func (r *Recorder) Count(code string) int {
	n := 0
	for _, a := range r.Anomalies() {
		if a.Code == code {
			n++
		}
	}
	return n
}
