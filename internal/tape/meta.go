package tape

// Tape directory file names.
const (
	RawFileName    = "raw_ws.jsonl"
	EventsFileName = "events.jsonl"
	MetaFileName   = "meta.json"
)

// RawFrame is one line of raw_ws.jsonl: the verbatim WS payload kept for
// post-hoc forensics.
type RawFrame struct {
	FrameSeq int64   `json:"frame_seq"`
	TsRecv   float64 `json:"ts_recv"`
	Raw      string  `json:"raw"`
}

// Meta describes one recorded tape.
type Meta struct {
	WSURL              string   `json:"ws_url"`
	AssetIDs           []string `json:"asset_ids"`
	Source             string   `json:"source"`
	StartedAt          string   `json:"started_at"`
	EndedAt            string   `json:"ended_at"`
	RecvTimeoutSeconds float64  `json:"recv_timeout_seconds"`
	ReconnectCount     int64    `json:"reconnect_count"`
	FrameCount         int64    `json:"frame_count"`
	EventCount         int64    `json:"event_count"`
	Warnings           []string `json:"warnings"`
}
