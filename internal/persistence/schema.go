package persistence

// schema holds the CREATE TABLE statements for the relational store:
// submissions, user_tests, datasets, testcases, submission_results,
// evaluations and user_test_results. The core only reads submissions/
// user_tests/datasets/testcases and owns the result and evaluation tables;
// there are no participation, task, user or file tables, since the web
// surfaces (out of scope here) own those rows.
//
// schemaSQLite is the DDL for modernc.org/sqlite (tests and single-host
// runs); schemaMySQL below is a separate variant of the same tables for
// go-sql-driver/mysql.
const schemaSQLite = `
CREATE TABLE IF NOT EXISTS submissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	participation_id INTEGER NOT NULL,
	task_id INTEGER NOT NULL,
	timestamp DATETIME NOT NULL,
	language TEXT,
	tokened INTEGER NOT NULL DEFAULT 0,
	files_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_tests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	participation_id INTEGER NOT NULL,
	task_id INTEGER NOT NULL,
	timestamp DATETIME NOT NULL,
	language TEXT,
	input_digest TEXT,
	files_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS datasets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL,
	description TEXT,
	task_type TEXT NOT NULL,
	task_type_params_json TEXT NOT NULL,
	score_type TEXT NOT NULL,
	score_type_params_json TEXT NOT NULL,
	time_limit REAL,
	memory_limit INTEGER,
	managers_json TEXT NOT NULL DEFAULT '{}',
	active INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS testcases (
	dataset_id INTEGER NOT NULL,
	codename TEXT NOT NULL,
	input_digest TEXT NOT NULL,
	output_digest TEXT NOT NULL,
	public INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (dataset_id, codename)
);

CREATE TABLE IF NOT EXISTS submission_results (
	submission_id INTEGER NOT NULL,
	dataset_id INTEGER NOT NULL,
	compilation_outcome INTEGER NOT NULL DEFAULT 0,
	compilation_text TEXT NOT NULL DEFAULT '',
	executables_json TEXT NOT NULL DEFAULT '{}',
	compilation_tries INTEGER NOT NULL DEFAULT 0,
	score REAL NOT NULL DEFAULT 0,
	score_details TEXT NOT NULL DEFAULT '',
	public_score REAL NOT NULL DEFAULT 0,
	public_score_details TEXT NOT NULL DEFAULT '',
	ranking_score_details TEXT NOT NULL DEFAULT '',
	scored INTEGER NOT NULL DEFAULT 0,
	tombstoned INTEGER NOT NULL DEFAULT 0,
	partial INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (submission_id, dataset_id)
);

CREATE TABLE IF NOT EXISTS evaluations (
	submission_id INTEGER NOT NULL,
	dataset_id INTEGER NOT NULL,
	codename TEXT NOT NULL,
	outcome REAL NOT NULL,
	text TEXT NOT NULL DEFAULT '',
	execution_time REAL NOT NULL DEFAULT 0,
	memory INTEGER NOT NULL DEFAULT 0,
	tries INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (submission_id, dataset_id, codename)
);

CREATE TABLE IF NOT EXISTS user_test_results (
	user_test_id INTEGER NOT NULL,
	dataset_id INTEGER NOT NULL,
	compilation_outcome INTEGER NOT NULL DEFAULT 0,
	compilation_text TEXT NOT NULL DEFAULT '',
	executables_json TEXT NOT NULL DEFAULT '{}',
	output_digest TEXT NOT NULL DEFAULT '',
	evaluation_text TEXT NOT NULL DEFAULT '',
	execution_time REAL NOT NULL DEFAULT 0,
	memory INTEGER NOT NULL DEFAULT 0,
	compilation_tries INTEGER NOT NULL DEFAULT 0,
	evaluation_tries INTEGER NOT NULL DEFAULT 0,
	tombstoned INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (user_test_id, dataset_id)
);
`

// schemaMySQL is the same schema with AUTOINCREMENT spelled the MySQL way.
const schemaMySQL = `
CREATE TABLE IF NOT EXISTS submissions (
	id BIGINT PRIMARY KEY AUTO_INCREMENT,
	participation_id BIGINT NOT NULL,
	task_id BIGINT NOT NULL,
	timestamp DATETIME NOT NULL,
	language VARCHAR(64),
	tokened TINYINT NOT NULL DEFAULT 0,
	files_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_tests (
	id BIGINT PRIMARY KEY AUTO_INCREMENT,
	participation_id BIGINT NOT NULL,
	task_id BIGINT NOT NULL,
	timestamp DATETIME NOT NULL,
	language VARCHAR(64),
	input_digest VARCHAR(128),
	files_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS datasets (
	id BIGINT PRIMARY KEY AUTO_INCREMENT,
	task_id BIGINT NOT NULL,
	description VARCHAR(255),
	task_type VARCHAR(64) NOT NULL,
	task_type_params_json TEXT NOT NULL,
	score_type VARCHAR(64) NOT NULL,
	score_type_params_json TEXT NOT NULL,
	time_limit DOUBLE,
	memory_limit BIGINT,
	managers_json TEXT NOT NULL,
	active TINYINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS testcases (
	dataset_id BIGINT NOT NULL,
	codename VARCHAR(255) NOT NULL,
	input_digest VARCHAR(128) NOT NULL,
	output_digest VARCHAR(128) NOT NULL,
	public TINYINT NOT NULL DEFAULT 0,
	PRIMARY KEY (dataset_id, codename)
);

CREATE TABLE IF NOT EXISTS submission_results (
	submission_id BIGINT NOT NULL,
	dataset_id BIGINT NOT NULL,
	compilation_outcome INT NOT NULL DEFAULT 0,
	compilation_text TEXT,
	executables_json TEXT,
	compilation_tries INT NOT NULL DEFAULT 0,
	score DOUBLE NOT NULL DEFAULT 0,
	score_details TEXT,
	public_score DOUBLE NOT NULL DEFAULT 0,
	public_score_details TEXT,
	ranking_score_details TEXT,
	scored TINYINT NOT NULL DEFAULT 0,
	tombstoned TINYINT NOT NULL DEFAULT 0,
	partial TINYINT NOT NULL DEFAULT 0,
	PRIMARY KEY (submission_id, dataset_id)
);

CREATE TABLE IF NOT EXISTS evaluations (
	submission_id BIGINT NOT NULL,
	dataset_id BIGINT NOT NULL,
	codename VARCHAR(255) NOT NULL,
	outcome DOUBLE NOT NULL,
	text TEXT,
	execution_time DOUBLE NOT NULL DEFAULT 0,
	memory BIGINT NOT NULL DEFAULT 0,
	tries INT NOT NULL DEFAULT 0,
	PRIMARY KEY (submission_id, dataset_id, codename)
);

CREATE TABLE IF NOT EXISTS user_test_results (
	user_test_id BIGINT NOT NULL,
	dataset_id BIGINT NOT NULL,
	compilation_outcome INT NOT NULL DEFAULT 0,
	compilation_text TEXT,
	executables_json TEXT,
	output_digest VARCHAR(128),
	evaluation_text TEXT,
	execution_time DOUBLE NOT NULL DEFAULT 0,
	memory BIGINT NOT NULL DEFAULT 0,
	compilation_tries INT NOT NULL DEFAULT 0,
	evaluation_tries INT NOT NULL DEFAULT 0,
	tombstoned TINYINT NOT NULL DEFAULT 0,
	PRIMARY KEY (user_test_id, dataset_id)
);
`
