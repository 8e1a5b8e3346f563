// journal/schema.go
package journal

// Schema creates every journal table. Missing values are NULL and floats
// are REAL, so loaders get back the exact float64 that was stored.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created TEXT NOT NULL,
	source TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	row_count INTEGER NOT NULL,
	config TEXT NOT NULL,
	warnings TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS series_points (
	run_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	family TEXT NOT NULL,
	position INTEGER NOT NULL,
	date TEXT NOT NULL,
	value REAL,
	PRIMARY KEY (run_id, kind, family, name, date)
);

CREATE TABLE IF NOT EXISTS drawdowns (
	run_id TEXT NOT NULL,
	factor TEXT NOT NULL,
	date TEXT NOT NULL,
	cumulative REAL NOT NULL,
	peak REAL NOT NULL,
	drawdown REAL NOT NULL,
	PRIMARY KEY (run_id, factor, date)
);

CREATE TABLE IF NOT EXISTS episodes (
	run_id TEXT NOT NULL,
	factor TEXT NOT NULL,
	seq INTEGER NOT NULL,
	peak_date TEXT NOT NULL,
	breach_date TEXT NOT NULL,
	trough_date TEXT NOT NULL,
	recovery_date TEXT,
	depth REAL NOT NULL,
	duration INTEGER NOT NULL,
	recovery_days INTEGER NOT NULL,
	peak_value REAL NOT NULL,
	trough_value REAL NOT NULL,
	PRIMARY KEY (run_id, factor, seq)
);

CREATE TABLE IF NOT EXISTS datasets (
	run_id TEXT NOT NULL,
	horizon INTEGER NOT NULL,
	label_mode TEXT NOT NULL,
	features TEXT NOT NULL,
	dropped_horizon INTEGER NOT NULL,
	dropped_missing INTEGER NOT NULL,
	no_forward INTEGER NOT NULL,
	PRIMARY KEY (run_id, horizon)
);

CREATE TABLE IF NOT EXISTS dataset_rows (
	run_id TEXT NOT NULL,
	horizon INTEGER NOT NULL,
	date TEXT NOT NULL,
	label INTEGER NOT NULL,
	forward_return REAL,
	regime TEXT NOT NULL,
	PRIMARY KEY (run_id, horizon, date)
);

CREATE TABLE IF NOT EXISTS dataset_features (
	run_id TEXT NOT NULL,
	horizon INTEGER NOT NULL,
	date TEXT NOT NULL,
	position INTEGER NOT NULL,
	value REAL NOT NULL,
	PRIMARY KEY (run_id, horizon, date, position)
);

CREATE TABLE IF NOT EXISTS model_results (
	run_id TEXT NOT NULL,
	horizon INTEGER NOT NULL,
	fit_auc REAL,
	holdout_auc REAL,
	tn INTEGER NOT NULL,
	fp INTEGER NOT NULL,
	fn INTEGER NOT NULL,
	tp INTEGER NOT NULL,
	split_mode TEXT NOT NULL,
	seed INTEGER NOT NULL,
	embargo INTEGER NOT NULL,
	fit_rows TEXT NOT NULL,
	holdout_rows TEXT NOT NULL,
	iterations INTEGER NOT NULL,
	converged INTEGER NOT NULL,
	PRIMARY KEY (run_id, horizon)
);

CREATE TABLE IF NOT EXISTS coefficients (
	run_id TEXT NOT NULL,
	horizon INTEGER NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	value REAL NOT NULL,
	PRIMARY KEY (run_id, horizon, position)
);

CREATE TABLE IF NOT EXISTS deciles (
	run_id TEXT NOT NULL,
	horizon INTEGER NOT NULL,
	bucket INTEGER NOT NULL,
	row_count INTEGER NOT NULL,
	crowding_min REAL NOT NULL,
	crowding_mean REAL NOT NULL,
	crowding_max REAL NOT NULL,
	forward_mean REAL NOT NULL,
	forward_std REAL,
	PRIMARY KEY (run_id, horizon, bucket)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created);
`
