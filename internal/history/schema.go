package history

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    run_at TIMESTAMP NOT NULL,
    log_path TEXT,
    summary_path TEXT,
    total_duration_seconds REAL NOT NULL,
    failed_sections INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_sections (
    run_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    status TEXT NOT NULL,
    duration_seconds REAL NOT NULL,
    exit_code INTEGER NOT NULL,
    installed INTEGER NOT NULL,
    available INTEGER NOT NULL,
    updated INTEGER NOT NULL,
    skipped INTEGER NOT NULL,
    failed INTEGER NOT NULL,
    PRIMARY KEY (run_id, position),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_run_at ON runs(run_at);
CREATE INDEX IF NOT EXISTS idx_run_sections_name ON run_sections(name);
`
