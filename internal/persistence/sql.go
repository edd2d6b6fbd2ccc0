package persistence

import (
	"context"
	"database/sql"
	"encoding/json"

	"go.chromium.org/luci/common/errors"

	"github.com/wil93/cms/internal/filecache"
	"github.com/wil93/cms/internal/model"
	"github.com/wil93/cms/internal/pipelineerr"
)

// SQLBridge implements Bridge over database/sql, driver-agnostic so the
// same code wires modernc.org/sqlite for tests/single-host deployments and
// github.com/go-sql-driver/mysql for production.
// The two drivers disagree on upsert syntax (INSERT OR IGNORE / ON CONFLICT
// vs INSERT IGNORE / ON DUPLICATE KEY UPDATE), so the handful of statements
// that need it are chosen by dialect rather than shared verbatim.
type SQLBridge struct {
	db      *sql.DB
	dialect dialect
}

type dialect int

const (
	dialectSQLite dialect = iota
	dialectMySQL
)

// newSQLBridge wraps an already-open *sql.DB, applying schema (sqlite or
// mysql flavored DDL, chosen by the caller-specific constructors below).
func newSQLBridge(db *sql.DB, schema string, d dialect) (*SQLBridge, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Annotate(err, "applying schema").Err()
	}
	return &SQLBridge{db: db, dialect: d}, nil
}

func (b *SQLBridge) GetSubmission(ctx context.Context, submissionID int64) (*model.Submission, error) {
	row := b.db.QueryRowContext(ctx, `SELECT id, participation_id, task_id, timestamp, language, tokened, files_json FROM submissions WHERE id = ?`, submissionID)
	var s model.Submission
	var filesJSON string
	var language sql.NullString
	var tokened int
	if err := row.Scan(&s.ID, &s.ParticipationID, &s.TaskID, &s.Timestamp, &language, &tokened, &filesJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Annotate(err, "submission %d not found", submissionID).Err()
		}
		return nil, errors.Annotate(err, "querying submission %d", submissionID).Err()
	}
	s.Language = language.String
	s.Tokened = tokened != 0
	if err := json.Unmarshal([]byte(filesJSON), &s.Files); err != nil {
		return nil, errors.Annotate(err, "decoding submission files").Err()
	}
	return &s, nil
}

func (b *SQLBridge) GetUserTest(ctx context.Context, userTestID int64) (*model.UserTest, error) {
	row := b.db.QueryRowContext(ctx, `SELECT id, participation_id, task_id, timestamp, language, input_digest, files_json FROM user_tests WHERE id = ?`, userTestID)
	var u model.UserTest
	var filesJSON string
	var language, input sql.NullString
	if err := row.Scan(&u.ID, &u.ParticipationID, &u.TaskID, &u.Timestamp, &language, &input, &filesJSON); err != nil {
		return nil, errors.Annotate(err, "querying user test %d", userTestID).Err()
	}
	u.Language = language.String
	u.Input = filecache.Digest(input.String)
	if err := json.Unmarshal([]byte(filesJSON), &u.Files); err != nil {
		return nil, errors.Annotate(err, "decoding user test files").Err()
	}
	return &u, nil
}

func (b *SQLBridge) GetDataset(ctx context.Context, datasetID int64) (*model.Dataset, error) {
	row := b.db.QueryRowContext(ctx, `SELECT id, task_id, description, task_type, task_type_params_json, score_type, score_type_params_json, time_limit, memory_limit, managers_json, active FROM datasets WHERE id = ?`, datasetID)
	var d model.Dataset
	var taskTypeParams, scoreTypeParams, managersJSON string
	var timeLimit sql.NullFloat64
	var memoryLimit sql.NullInt64
	var active int
	if err := row.Scan(&d.ID, &d.TaskID, &d.Description, &d.TaskType, &taskTypeParams, &d.ScoreType, &scoreTypeParams, &timeLimit, &memoryLimit, &managersJSON, &active); err != nil {
		return nil, errors.Annotate(err, "querying dataset %d", datasetID).Err()
	}
	if err := json.Unmarshal([]byte(taskTypeParams), &d.TaskTypeParams); err != nil {
		return nil, errors.Annotate(err, "decoding task type params").Err()
	}
	if err := json.Unmarshal([]byte(scoreTypeParams), &d.ScoreTypeParams); err != nil {
		return nil, errors.Annotate(err, "decoding score type params").Err()
	}
	var managers map[string]string
	if err := json.Unmarshal([]byte(managersJSON), &managers); err != nil {
		return nil, errors.Annotate(err, "decoding managers").Err()
	}
	d.Managers = make(map[string]filecache.Digest, len(managers))
	for k, v := range managers {
		d.Managers[k] = filecache.Digest(v)
	}
	if timeLimit.Valid {
		d.TimeLimit = &timeLimit.Float64
	}
	if memoryLimit.Valid {
		d.MemoryLimit = &memoryLimit.Int64
	}
	d.Active = active != 0

	rows, err := b.db.QueryContext(ctx, `SELECT codename, input_digest, output_digest, public FROM testcases WHERE dataset_id = ?`, datasetID)
	if err != nil {
		return nil, errors.Annotate(err, "querying testcases for dataset %d", datasetID).Err()
	}
	defer rows.Close()
	for rows.Next() {
		var tc model.Testcase
		var input, output string
		var public int
		if err := rows.Scan(&tc.Codename, &input, &output, &public); err != nil {
			return nil, errors.Annotate(err, "scanning testcase").Err()
		}
		tc.Input = filecache.Digest(input)
		tc.Output = filecache.Digest(output)
		tc.Public = public != 0
		d.Testcases = append(d.Testcases, tc)
	}
	return &d, rows.Err()
}

func (b *SQLBridge) GetDatasetsToJudge(ctx context.Context, taskID int64) ([]*model.Dataset, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT id FROM datasets WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, errors.Annotate(err, "listing datasets for task %d", taskID).Err()
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()

	var out []*model.Dataset
	for _, id := range ids {
		d, err := b.GetDataset(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (b *SQLBridge) GetOrCreateResult(ctx context.Context, submissionID, datasetID int64) (*model.SubmissionResult, error) {
	existing, err := b.GetResult(ctx, submissionID, datasetID)
	if err == nil {
		return existing, nil
	}
	if _, execErr := b.db.ExecContext(ctx, b.insertIgnoreSQL("submission_results", "submission_id, dataset_id"), submissionID, datasetID); execErr != nil {
		return nil, errors.Annotate(execErr, "creating submission result").Err()
	}
	return b.GetResult(ctx, submissionID, datasetID)
}

func (b *SQLBridge) GetResult(ctx context.Context, submissionID, datasetID int64) (*model.SubmissionResult, error) {
	row := b.db.QueryRowContext(ctx, `SELECT compilation_outcome, compilation_text, executables_json, compilation_tries, score, score_details, public_score, public_score_details, ranking_score_details, scored, tombstoned, partial FROM submission_results WHERE submission_id = ? AND dataset_id = ?`, submissionID, datasetID)

	r := &model.SubmissionResult{SubmissionID: submissionID, DatasetID: datasetID}
	var executablesJSON string
	var scored, tombstoned, partial int
	if err := row.Scan(&r.CompilationOutcome, &r.CompilationText, &executablesJSON, &r.CompilationTries, &r.Score, &r.ScoreDetails, &r.PublicScore, &r.PublicScoreDetails, &r.RankingScoreDetails, &scored, &tombstoned, &partial); err != nil {
		return nil, errors.Annotate(err, "submission result (%d, %d) not found", submissionID, datasetID).Err()
	}
	r.Scored = scored != 0
	r.Tombstoned = tombstoned != 0
	r.Partial = partial != 0

	var executables map[string]string
	if err := json.Unmarshal([]byte(executablesJSON), &executables); err != nil {
		return nil, errors.Annotate(err, "decoding executables").Err()
	}
	r.Executables = make(map[string]filecache.Digest, len(executables))
	for k, v := range executables {
		r.Executables[k] = filecache.Digest(v)
	}

	r.Evaluations = make(map[string]model.Evaluation)
	r.EvaluationTries = make(map[string]int)
	rows, err := b.db.QueryContext(ctx, `SELECT codename, outcome, text, execution_time, memory, tries FROM evaluations WHERE submission_id = ? AND dataset_id = ?`, submissionID, datasetID)
	if err != nil {
		return nil, errors.Annotate(err, "querying evaluations").Err()
	}
	defer rows.Close()
	for rows.Next() {
		var e model.Evaluation
		var tries int
		if err := rows.Scan(&e.Codename, &e.Outcome, &e.Text, &e.ExecutionTime, &e.Memory, &tries); err != nil {
			return nil, errors.Annotate(err, "scanning evaluation").Err()
		}
		r.Evaluations[e.Codename] = e
		r.EvaluationTries[e.Codename] = tries
	}
	return r, rows.Err()
}

func (b *SQLBridge) GetOrCreateUserTestResult(ctx context.Context, userTestID, datasetID int64) (*model.UserTestResult, error) {
	existing, err := b.GetUserTestResult(ctx, userTestID, datasetID)
	if err == nil {
		return existing, nil
	}
	if _, execErr := b.db.ExecContext(ctx, b.insertIgnoreSQL("user_test_results", "user_test_id, dataset_id"), userTestID, datasetID); execErr != nil {
		return nil, errors.Annotate(execErr, "creating user test result").Err()
	}
	return b.GetUserTestResult(ctx, userTestID, datasetID)
}

func (b *SQLBridge) GetUserTestResult(ctx context.Context, userTestID, datasetID int64) (*model.UserTestResult, error) {
	row := b.db.QueryRowContext(ctx, `SELECT compilation_outcome, compilation_text, executables_json, output_digest, evaluation_text, execution_time, memory, compilation_tries, evaluation_tries, tombstoned FROM user_test_results WHERE user_test_id = ? AND dataset_id = ?`, userTestID, datasetID)
	r := &model.UserTestResult{UserTestID: userTestID, DatasetID: datasetID}
	var executablesJSON, output string
	var tombstoned int
	if err := row.Scan(&r.CompilationOutcome, &r.CompilationText, &executablesJSON, &output, &r.EvaluationText, &r.ExecutionTime, &r.Memory, &r.CompilationTries, &r.EvaluationTries, &tombstoned); err != nil {
		return nil, errors.Annotate(err, "user test result (%d, %d) not found", userTestID, datasetID).Err()
	}
	r.OutputDigest = filecache.Digest(output)
	r.Tombstoned = tombstoned != 0
	var executables map[string]string
	if err := json.Unmarshal([]byte(executablesJSON), &executables); err != nil {
		return nil, errors.Annotate(err, "decoding executables").Err()
	}
	r.Executables = make(map[string]filecache.Digest, len(executables))
	for k, v := range executables {
		r.Executables[k] = filecache.Digest(v)
	}
	return r, nil
}

func (b *SQLBridge) CommitCompilation(ctx context.Context, submissionID, datasetID int64, outcome model.CompilationOutcome, text string, executables map[string]string, expectedTries int) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Annotate(err, "starting transaction").Err()
	}
	defer tx.Rollback()

	execJSON, err := json.Marshal(executables)
	if err != nil {
		return errors.Annotate(err, "marshaling executables").Err()
	}

	res, err := tx.ExecContext(ctx, `UPDATE submission_results SET compilation_outcome = ?, compilation_text = ?, executables_json = ?, compilation_tries = compilation_tries + 1 WHERE submission_id = ? AND dataset_id = ? AND compilation_tries = ?`,
		outcome, text, string(execJSON), submissionID, datasetID, expectedTries)
	if err != nil {
		return errors.Annotate(err, "updating compilation").Err()
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return pipelineerr.Annotate(pipelineerr.ErrStaleWrite, "compilation try counter mismatch")
	}
	return tx.Commit()
}

func (b *SQLBridge) CommitEvaluation(ctx context.Context, submissionID, datasetID int64, eval model.Evaluation, expectedTries int) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Annotate(err, "starting transaction").Err()
	}
	defer tx.Rollback()

	// Upsert semantics: unique (submission_id, dataset_id, codename) makes
	// re-delivery of the same Evaluation a no-op.
	_, err = tx.ExecContext(ctx, b.upsertEvaluationSQL(),
		submissionID, datasetID, eval.Codename, eval.Outcome, eval.Text, eval.ExecutionTime, eval.Memory, expectedTries)
	if err != nil {
		return errors.Annotate(err, "upserting evaluation %s", eval.Codename).Err()
	}
	return tx.Commit()
}

// insertIgnoreSQL returns an insert statement for (table, idColumns) with
// only the id columns populated (everything else taking its DEFAULT), that
// silently does nothing if the row already exists. Spelled differently per
// dialect: SQLite accepts "INSERT OR IGNORE", MySQL wants "INSERT IGNORE".
func (b *SQLBridge) insertIgnoreSQL(table, idColumns string) string {
	placeholders := "?"
	for i := 1; i < len(splitColumns(idColumns)); i++ {
		placeholders += ", ?"
	}
	switch b.dialect {
	case dialectMySQL:
		return "INSERT IGNORE INTO " + table + " (" + idColumns + ") VALUES (" + placeholders + ")"
	default:
		return "INSERT OR IGNORE INTO " + table + " (" + idColumns + ") VALUES (" + placeholders + ")"
	}
}

func splitColumns(columns string) []string {
	var out []string
	start := 0
	for i := 0; i < len(columns); i++ {
		if columns[i] == ',' {
			out = append(out, columns[start:i])
			start = i + 1
		}
	}
	out = append(out, columns[start:])
	return out
}

// upsertEvaluationSQL returns the evaluations upsert statement, spelled per
// dialect: SQLite/Postgres-style "ON CONFLICT ... DO UPDATE" vs MySQL's
// "ON DUPLICATE KEY UPDATE".
func (b *SQLBridge) upsertEvaluationSQL() string {
	const columns = `submission_id, dataset_id, codename, outcome, text, execution_time, memory, tries`
	switch b.dialect {
	case dialectMySQL:
		return `INSERT INTO evaluations (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE outcome = VALUES(outcome), text = VALUES(text),
				execution_time = VALUES(execution_time), memory = VALUES(memory), tries = VALUES(tries)`
	default:
		return `INSERT INTO evaluations (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (submission_id, dataset_id, codename) DO UPDATE SET
				outcome = excluded.outcome, text = excluded.text, execution_time = excluded.execution_time,
				memory = excluded.memory, tries = excluded.tries`
	}
}

func (b *SQLBridge) CommitUserTestCompilation(ctx context.Context, userTestID, datasetID int64, outcome model.CompilationOutcome, text string, executables map[string]string, expectedTries int) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Annotate(err, "starting transaction").Err()
	}
	defer tx.Rollback()

	execJSON, err := json.Marshal(executables)
	if err != nil {
		return errors.Annotate(err, "marshaling executables").Err()
	}

	res, err := tx.ExecContext(ctx, `UPDATE user_test_results SET compilation_outcome = ?, compilation_text = ?, executables_json = ?, compilation_tries = compilation_tries + 1 WHERE user_test_id = ? AND dataset_id = ? AND compilation_tries = ?`,
		outcome, text, string(execJSON), userTestID, datasetID, expectedTries)
	if err != nil {
		return errors.Annotate(err, "updating user test compilation").Err()
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return pipelineerr.Annotate(pipelineerr.ErrStaleWrite, "user test compilation try counter mismatch")
	}
	return tx.Commit()
}

func (b *SQLBridge) CommitUserTestEvaluation(ctx context.Context, userTestID, datasetID int64, outputDigest string, text string, executionTime float64, memory int64, expectedTries int) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Annotate(err, "starting transaction").Err()
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE user_test_results SET output_digest = ?, evaluation_text = ?, execution_time = ?, memory = ?, evaluation_tries = evaluation_tries + 1 WHERE user_test_id = ? AND dataset_id = ? AND evaluation_tries = ?`,
		outputDigest, text, executionTime, memory, userTestID, datasetID, expectedTries)
	if err != nil {
		return errors.Annotate(err, "updating user test evaluation").Err()
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return pipelineerr.Annotate(pipelineerr.ErrStaleWrite, "user test evaluation try counter mismatch")
	}
	return tx.Commit()
}

func (b *SQLBridge) CommitScore(ctx context.Context, submissionID, datasetID int64, result model.SubmissionResult) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Annotate(err, "starting transaction").Err()
	}
	defer tx.Rollback()

	partial := 0
	if result.Partial {
		partial = 1
	}
	_, err = tx.ExecContext(ctx, `UPDATE submission_results SET score = ?, score_details = ?, public_score = ?, public_score_details = ?, ranking_score_details = ?, scored = 1, partial = ? WHERE submission_id = ? AND dataset_id = ?`,
		result.Score, result.ScoreDetails, result.PublicScore, result.PublicScoreDetails, result.RankingScoreDetails, partial, submissionID, datasetID)
	if err != nil {
		return errors.Annotate(err, "committing score").Err()
	}
	return tx.Commit()
}

// ClearResult resets submission_results columns at and above level and
// deletes evaluations when level reaches down to ClearCompile or
// ClearEvaluate. Scored is always cleared back to 0 unless level keeps the
// score.
func (b *SQLBridge) ClearResult(ctx context.Context, submissionID, datasetID int64, level ClearLevel) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Annotate(err, "starting transaction").Err()
	}
	defer tx.Rollback()

	switch level {
	case ClearCompile:
		_, err = tx.ExecContext(ctx, `UPDATE submission_results SET
				compilation_outcome = 0, compilation_text = '', executables_json = '{}', compilation_tries = 0,
				score = 0, score_details = '', public_score = 0, public_score_details = '', ranking_score_details = '',
				scored = 0, partial = 0
			WHERE submission_id = ? AND dataset_id = ?`, submissionID, datasetID)
		if err != nil {
			return errors.Annotate(err, "clearing compilation state").Err()
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM evaluations WHERE submission_id = ? AND dataset_id = ?`, submissionID, datasetID); err != nil {
			return errors.Annotate(err, "clearing evaluations").Err()
		}
	case ClearEvaluate:
		_, err = tx.ExecContext(ctx, `UPDATE submission_results SET
				score = 0, score_details = '', public_score = 0, public_score_details = '', ranking_score_details = '',
				scored = 0, partial = 0
			WHERE submission_id = ? AND dataset_id = ?`, submissionID, datasetID)
		if err != nil {
			return errors.Annotate(err, "clearing evaluation state").Err()
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM evaluations WHERE submission_id = ? AND dataset_id = ?`, submissionID, datasetID); err != nil {
			return errors.Annotate(err, "clearing evaluations").Err()
		}
	case ClearScore:
		_, err = tx.ExecContext(ctx, `UPDATE submission_results SET
				score = 0, score_details = '', public_score = 0, public_score_details = '', ranking_score_details = '',
				scored = 0, partial = 0
			WHERE submission_id = ? AND dataset_id = ?`, submissionID, datasetID)
		if err != nil {
			return errors.Annotate(err, "clearing score").Err()
		}
	default:
		return errors.Reason("persistence: unknown clear level %v", level).Err()
	}
	return tx.Commit()
}

func (b *SQLBridge) ListScoredSubmissions(ctx context.Context, participationID, taskID, datasetID int64) ([]ScoredEntry, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT sr.submission_id, sr.score, s.tokened
		FROM submission_results sr
		JOIN submissions s ON s.id = sr.submission_id
		WHERE sr.dataset_id = ? AND sr.scored = 1 AND s.participation_id = ? AND s.task_id = ?
		ORDER BY s.timestamp ASC`, datasetID, participationID, taskID)
	if err != nil {
		return nil, errors.Annotate(err, "listing scored submissions").Err()
	}
	defer rows.Close()

	var out []ScoredEntry
	for rows.Next() {
		var e ScoredEntry
		var tokened int
		if err := rows.Scan(&e.SubmissionID, &e.Score, &tokened); err != nil {
			return nil, err
		}
		e.Tokened = tokened != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func (b *SQLBridge) ListNonTerminal(ctx context.Context) ([]*model.SubmissionResult, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT submission_id, dataset_id FROM submission_results WHERE scored = 0`)
	if err != nil {
		return nil, errors.Annotate(err, "listing non-terminal results").Err()
	}
	var pairs [][2]int64
	for rows.Next() {
		var sID, dID int64
		if err := rows.Scan(&sID, &dID); err != nil {
			rows.Close()
			return nil, err
		}
		pairs = append(pairs, [2]int64{sID, dID})
	}
	rows.Close()

	var out []*model.SubmissionResult
	for _, p := range pairs {
		r, err := b.GetResult(ctx, p[0], p[1])
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
