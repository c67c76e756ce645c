package status

// Overall is the aggregate state computed from item states.
type Overall string

const (
	// OverallComplete means every item reached SUCCESS.
	OverallComplete Overall = "complete"

	// OverallProcessing means at least one item is still in flight and
	// none has failed.
	OverallProcessing Overall = "processing"

	// OverallError means at least one item failed. Error takes precedence
	// over processing: a run with failures reports error even while other
	// items are still in flight.
	OverallError Overall = "error"
)

// Counts summarizes item states. Pending merges UPLOADING, PENDING, and
// PROCESSING.
type Counts struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// Summary is the aggregate computed over a site's items.
type Summary struct {
	Counts  Counts
	Overall Overall
}

// Ready reports whether polling can stop: every item is terminal.
func (s *Summary) Ready() bool {
	return s.Counts.Pending == 0
}

// Aggregate computes the summary for a set of items. Precedence: any
// failure makes the overall state error; otherwise any in-flight item makes
// it processing; otherwise complete. An empty item set is complete.
func Aggregate(items []ItemStatus) *Summary {
	counts := Counts{Total: len(items)}
	for _, item := range items {
		switch {
		case item.State == ItemStateError:
			counts.Failed++
		case item.State == ItemStateSuccess:
			counts.Success++
		default:
			counts.Pending++
		}
	}

	overall := OverallComplete
	switch {
	case counts.Failed > 0:
		overall = OverallError
	case counts.Pending > 0:
		overall = OverallProcessing
	}

	return &Summary{Counts: counts, Overall: overall}
}

// FailedItem is the redacted per-item error detail exposed on the public
// status view. It intentionally carries no internal identifiers.
type FailedItem struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// FailedItems extracts the redacted error list for the public view.
func FailedItems(items []ItemStatus) []FailedItem {
	var failed []FailedItem
	for _, item := range items {
		if item.State == ItemStateError {
			failed = append(failed, FailedItem{Path: item.Path, Error: item.Error})
		}
	}
	return failed
}
