package store

const Schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	folder_path TEXT NOT NULL,
	job_type TEXT NOT NULL,
	status TEXT NOT NULL,
	metadata_json TEXT NOT NULL DEFAULT '',
	user_feedback TEXT NOT NULL DEFAULT '',
	artist_hint TEXT NOT NULL DEFAULT '',
	result_json TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	started_at DATETIME,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_folder_path ON jobs(folder_path);
CREATE INDEX IF NOT EXISTS idx_jobs_type ON jobs(job_type);
`
