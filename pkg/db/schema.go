package db

// Schema defines the SQLite journal schema. sessions keeps one row per
// update session with its staging result and last phase; phase_log keeps
// every phase transition.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    source TEXT,
    staged_path TEXT,
    sha256 TEXT,
    image_version TEXT,
    status TEXT NOT NULL CHECK(status IN ('pending', 'staging', 'staged', 'failed')),
    phase TEXT NOT NULL DEFAULT 'prepare',
    progress INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);

CREATE TABLE IF NOT EXISTS phase_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    phase TEXT NOT NULL,
    progress INTEGER NOT NULL DEFAULT 0,
    message TEXT,
    recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_phase_log_session ON phase_log(session_id);
`

// Staging status constants
const (
	StatusPending = "pending"
	StatusStaging = "staging"
	StatusStaged  = "staged"
	StatusFailed  = "failed"
)

// Session is the journal record of one update session
type Session struct {
	ID           string
	Kind         string
	Source       string
	StagedPath   string
	SHA256       string
	ImageVersion string
	Status       string
	Phase        string
	Progress     int
	ErrorMessage string
	CreatedAt    string
	UpdatedAt    string
}

// PhaseEntry is one recorded phase transition
type PhaseEntry struct {
	Phase      string
	Progress   int
	Message    string
	RecordedAt string
}
