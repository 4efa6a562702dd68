package domain

// Record is a row of unknown shape produced by the bot (holding, order, strategy state).
// The schema belongs to the bot, so rows are kept as open maps and passed through verbatim.
type Record map[string]any

// DashboardPayload is the full "current state" bundle pushed on every ingest.
type DashboardPayload struct {
	Snapshot      Snapshot       `json:"snapshot"`
	Holdings      []Record       `json:"holdings"`
	Orders        []Record       `json:"orders"`
	StrategyState []Record       `json:"strategy_state"`
	Meta          map[string]any `json:"meta,omitempty"`
}

// Valid reports whether the payload carries the minimum the dashboard needs: a snapshot timestamp.
func (p *DashboardPayload) Valid() bool {
	return p != nil && p.Snapshot.TS != ""
}

// StoredData is everything persisted in the blob store.
type StoredData struct {
	Latest  *DashboardPayload `json:"latest"`
	History []Snapshot        `json:"history"`
}

// EmptyStoredData is the state of a store nothing was ever ingested into.
func EmptyStoredData() StoredData {
	return StoredData{History: []Snapshot{}}
}
