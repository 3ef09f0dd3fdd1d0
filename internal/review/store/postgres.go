// internal/review/store/postgres.go
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"foundation-review/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

const (
	applicationsTable  = "applications"
	votesTable         = "votes"
	commentsTable      = "comments"
	notificationsTable = "notifications"
	usersTable         = "users"
)

var (
	applicationColumns = []string{
		"id", "applicant_id", "status", "content", "votes_required",
		"created_at", "modified_at", "submitted_at", "review_started_at", "decision_at",
		"final_decision", "decision_message", "decision_by", "approved_monthly_amount",
		"withdrawal_reason", "sponsor_id", "program_start_date", "program_end_date",
	}
	voteColumns = []string{
		"id", "application_id", "voter_id", "decision", "reasoning",
		"confidence_level", "is_locked", "voted_at", "modified_at",
	}
	commentColumns = []string{
		"id", "application_id", "author_id", "content", "is_private",
		"is_information_request", "parent_comment_id", "has_response",
		"is_edited", "is_deleted", "created_at", "modified_at",
	}
	notificationColumns = []string{
		"id", "recipient_id", "application_id", "type", "title", "message",
		"action_link", "is_read", "read_at", "is_sent", "sent_at",
		"email_sent", "email_sent_at", "created_at", "expires_at",
	}
	userColumns = []string{"id", "full_name", "email", "phone", "role", "is_active", "sms_opt_in"}
)

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore implements Store on PostgreSQL via database/sql and lib/pq.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the review tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply review schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ==========================
// Applications
// ==========================

func (s *PostgresStore) CreateApplication(ctx context.Context, app *models.Application) error {
	if !app.Status.IsValid() {
		return fmt.Errorf("invalid status %q", app.Status)
	}
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	content, err := json.Marshal(app.Content)
	if err != nil {
		return fmt.Errorf("failed to encode application content: %w", err)
	}

	query, args, err := psql().
		Insert(applicationsTable).
		Columns(applicationColumns...).
		Values(
			app.ID, app.ApplicantID, string(app.Status), content, app.VotesRequired,
			app.CreatedAt, app.ModifiedAt, app.SubmittedAt, app.ReviewStartedAt, app.DecisionAt,
			string(app.FinalDecision), app.DecisionMessage, app.DecisionBy, app.ApprovedMonthlyAmount,
			app.WithdrawalReason, app.SponsorID, app.ProgramStartDate, app.ProgramEndDate,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate application insert query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: application %s", ErrConflict, app.ID)
		}
		return fmt.Errorf("failed to insert application: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	return getApplication(ctx, s.db, id)
}

func getApplication(ctx context.Context, q queryer, id string) (*models.Application, error) {
	query, args, err := psql().
		Select(applicationColumns...).
		From(applicationsTable).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate application query: %w", err)
	}

	app, err := scanApplication(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: application %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch application: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) ListApplicationsByApplicant(ctx context.Context, applicantID string) ([]*models.Application, error) {
	return s.listApplications(ctx, sq.Eq{"applicant_id": applicantID})
}

func (s *PostgresStore) ListApplicationsByStatus(ctx context.Context, statuses ...models.ApplicationStatus) ([]*models.Application, error) {
	if len(statuses) == 0 {
		return s.listApplications(ctx, nil)
	}
	values := make([]string, 0, len(statuses))
	for _, st := range statuses {
		values = append(values, string(st))
	}
	return s.listApplications(ctx, sq.Eq{"status": values})
}

func (s *PostgresStore) listApplications(ctx context.Context, where sq.Sqlizer) ([]*models.Application, error) {
	builder := psql().Select(applicationColumns...).From(applicationsTable)
	if where != nil {
		builder = builder.Where(where)
	}
	query, args, err := builder.OrderBy("created_at ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate applications query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch applications: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateApplication(ctx context.Context, app *models.Application, expected models.ApplicationStatus, opts TransitionOptions) error {
	if !app.Status.IsValid() {
		return fmt.Errorf("invalid status %q", app.Status)
	}
	content, err := json.Marshal(app.Content)
	if err != nil {
		return fmt.Errorf("failed to encode application content: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin application transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query, args, err := psql().
		Update(applicationsTable).
		SetMap(map[string]interface{}{
			"status":                  string(app.Status),
			"content":                 content,
			"votes_required":          sq.Expr("COALESCE(votes_required, ?)", app.VotesRequired),
			"modified_at":             app.ModifiedAt,
			"submitted_at":            app.SubmittedAt,
			"review_started_at":       app.ReviewStartedAt,
			"decision_at":             app.DecisionAt,
			"final_decision":          string(app.FinalDecision),
			"decision_message":        app.DecisionMessage,
			"decision_by":             app.DecisionBy,
			"approved_monthly_amount": app.ApprovedMonthlyAmount,
			"withdrawal_reason":       app.WithdrawalReason,
			"sponsor_id":              app.SponsorID,
			"program_start_date":      app.ProgramStartDate,
			"program_end_date":        app.ProgramEndDate,
		}).
		Where(sq.Eq{"id": app.ID, "status": string(expected)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate application update query: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: application %s is no longer %s", ErrStatusConflict, app.ID, expected)
	}

	if opts.LockVotes {
		lockQuery, lockArgs, err := psql().
			Update(votesTable).
			Set("is_locked", true).
			Where(sq.Eq{"application_id": app.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate vote lock query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, lockQuery, lockArgs...); err != nil {
			return fmt.Errorf("failed to lock votes: %w", err)
		}
	}

	if opts.Comment != nil {
		if err := insertComment(ctx, tx, opts.Comment); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit application transaction: %w", err)
	}
	return nil
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app     models.Application
		status  string
		final   string
		content []byte
	)
	err := row.Scan(
		&app.ID, &app.ApplicantID, &status, &content, &app.VotesRequired,
		&app.CreatedAt, &app.ModifiedAt, &app.SubmittedAt, &app.ReviewStartedAt, &app.DecisionAt,
		&final, &app.DecisionMessage, &app.DecisionBy, &app.ApprovedMonthlyAmount,
		&app.WithdrawalReason, &app.SponsorID, &app.ProgramStartDate, &app.ProgramEndDate,
	)
	if err != nil {
		return nil, err
	}
	app.Status = models.ApplicationStatus(status)
	app.FinalDecision = models.FinalDecision(final)
	if len(content) > 0 {
		if err := json.Unmarshal(content, &app.Content); err != nil {
			return nil, fmt.Errorf("failed to decode application content: %w", err)
		}
	}
	return &app, nil
}

// ==========================
// Votes
// ==========================

// UpsertVote relies on the (application_id, voter_id) unique key. The row is
// only produced while the application is reviewable, and FOR SHARE holds the
// application row so a concurrent decision waits for the vote to commit. A
// locked vote makes the conditional update a no-op, so no row comes back.
func (s *PostgresStore) UpsertVote(ctx context.Context, vote *models.Vote) (*models.Vote, error) {
	if vote.ID == "" {
		vote.ID = uuid.NewString()
	}

	source := sq.Select().
		Column(sq.Expr(
			"?::text, ?::text, ?::text, ?::text, ?::text, ?::integer, FALSE, ?::timestamptz, NULL::timestamptz",
			vote.ID, vote.ApplicationID, vote.VoterID, string(vote.Decision), vote.Reasoning,
			vote.ConfidenceLevel, vote.VotedAt,
		)).
		Where(sq.Expr(
			"EXISTS (SELECT 1 FROM applications WHERE id = ? AND status IN (?, ?) FOR SHARE)",
			vote.ApplicationID, string(models.StatusUnderReview), string(models.StatusInDiscussion),
		))

	query, args, err := psql().
		Insert(votesTable).
		Columns(voteColumns...).
		Select(source).
		Suffix("ON CONFLICT (application_id, voter_id) DO UPDATE SET " +
			"decision = EXCLUDED.decision, reasoning = EXCLUDED.reasoning, " +
			"confidence_level = EXCLUDED.confidence_level, modified_at = EXCLUDED.voted_at " +
			"WHERE votes.is_locked = FALSE").
		Suffix("RETURNING " + strings.Join(voteColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate vote upsert query: %w", err)
	}

	stored, err := scanVote(s.db.QueryRowContext(ctx, query, args...))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, s.rejectedVote(ctx, vote)
	case isUniqueViolation(err):
		return nil, fmt.Errorf("%w: vote by %s on %s", ErrConflict, vote.VoterID, vote.ApplicationID)
	case err != nil:
		return nil, fmt.Errorf("failed to upsert vote: %w", err)
	}
	return stored, nil
}

// rejectedVote tells a locked vote apart from an application that stopped
// accepting votes when the upsert produced no row.
func (s *PostgresStore) rejectedVote(ctx context.Context, vote *models.Vote) error {
	existing, err := s.GetVote(ctx, vote.ApplicationID, vote.VoterID)
	switch {
	case err == nil && existing.Locked:
		return fmt.Errorf("%w: voter %s on application %s", ErrVoteLocked, vote.VoterID, vote.ApplicationID)
	case err != nil && !errors.Is(err, ErrNotFound):
		return err
	}
	return fmt.Errorf("%w: application %s", ErrNotReviewable, vote.ApplicationID)
}

func (s *PostgresStore) GetVote(ctx context.Context, applicationID, voterID string) (*models.Vote, error) {
	query, args, err := psql().
		Select(voteColumns...).
		From(votesTable).
		Where(sq.Eq{"application_id": applicationID, "voter_id": voterID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate vote query: %w", err)
	}

	vote, err := scanVote(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: vote by %s on %s", ErrNotFound, voterID, applicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vote: %w", err)
	}
	return vote, nil
}

func (s *PostgresStore) ListVotes(ctx context.Context, applicationID string) ([]*models.Vote, error) {
	return listVotes(ctx, s.db, sq.Eq{"application_id": applicationID})
}

func (s *PostgresStore) ListVotesByVoter(ctx context.Context, voterID string) ([]*models.Vote, error) {
	return listVotes(ctx, s.db, sq.Eq{"voter_id": voterID})
}

func listVotes(ctx context.Context, q queryer, where sq.Sqlizer) ([]*models.Vote, error) {
	query, args, err := psql().
		Select(voteColumns...).
		From(votesTable).
		Where(where).
		OrderBy("voted_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate votes query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch votes: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Vote, 0)
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// VotingSnapshot reads the application row and its votes inside one
// REPEATABLE READ transaction.
func (s *PostgresStore) VotingSnapshot(ctx context.Context, applicationID string) (*models.Application, []*models.Vote, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	app, err := getApplication(ctx, tx, applicationID)
	if err != nil {
		return nil, nil, err
	}
	votes, err := listVotes(ctx, tx, sq.Eq{"application_id": applicationID})
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit snapshot transaction: %w", err)
	}
	return app, votes, nil
}

func scanVote(row rowScanner) (*models.Vote, error) {
	var (
		v        models.Vote
		decision string
	)
	err := row.Scan(
		&v.ID, &v.ApplicationID, &v.VoterID, &decision, &v.Reasoning,
		&v.ConfidenceLevel, &v.Locked, &v.VotedAt, &v.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Decision = models.VoteDecision(decision)
	return &v, nil
}

// ClaimQuorumNotification sets quorum_notified_at once; only the update that
// finds it NULL reports true.
func (s *PostgresStore) ClaimQuorumNotification(ctx context.Context, applicationID string, at time.Time) (bool, error) {
	query, args, err := psql().
		Update(applicationsTable).
		Set("quorum_notified_at", at).
		Where(sq.Eq{"id": applicationID, "quorum_notified_at": nil}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate quorum claim query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to claim quorum notification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read quorum claim result: %w", err)
	}
	return n == 1, nil
}

// ==========================
// Comments
// ==========================

func (s *PostgresStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin comment transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if comment.ParentCommentID != nil {
		query, args, err := psql().
			Update(commentsTable).
			Set("has_response", true).
			Where(sq.Eq{"id": *comment.ParentCommentID, "application_id": comment.ApplicationID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate parent comment update: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to flag parent comment: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return fmt.Errorf("%w: parent comment %s", ErrNotFound, *comment.ParentCommentID)
		}
	}

	if err := insertComment(ctx, tx, comment); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit comment transaction: %w", err)
	}
	return nil
}

func insertComment(ctx context.Context, tx *sql.Tx, c *models.Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	query, args, err := psql().
		Insert(commentsTable).
		Columns(commentColumns...).
		Values(
			c.ID, c.ApplicationID, c.AuthorID, c.Content, c.IsPrivate,
			c.IsInformationRequest, c.ParentCommentID, c.HasResponse,
			c.IsEdited, c.IsDeleted, c.CreatedAt, c.ModifiedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate comment insert query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	query, args, err := psql().
		Select(commentColumns...).
		From(commentsTable).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate comment query: %w", err)
	}

	c, err := scanComment(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: comment %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comment: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) UpdateComment(ctx context.Context, c *models.Comment) error {
	query, args, err := psql().
		Update(commentsTable).
		Set("content", c.Content).
		Set("is_edited", c.IsEdited).
		Set("is_deleted", c.IsDeleted).
		Set("modified_at", c.ModifiedAt).
		Where(sq.Eq{"id": c.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate comment update query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: comment %s", ErrNotFound, c.ID)
	}
	return nil
}

func (s *PostgresStore) ListComments(ctx context.Context, applicationID string, includePrivate bool) ([]*models.Comment, error) {
	where := sq.And{sq.Eq{"application_id": applicationID}, sq.Eq{"is_deleted": false}}
	if !includePrivate {
		where = append(where, sq.Eq{"is_private": false})
	}

	query, args, err := psql().
		Select(commentColumns...).
		From(commentsTable).
		Where(where).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate comments query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comments: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanComment(row rowScanner) (*models.Comment, error) {
	var c models.Comment
	err := row.Scan(
		&c.ID, &c.ApplicationID, &c.AuthorID, &c.Content, &c.IsPrivate,
		&c.IsInformationRequest, &c.ParentCommentID, &c.HasResponse,
		&c.IsEdited, &c.IsDeleted, &c.CreatedAt, &c.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ==========================
// Notifications
// ==========================

func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	query, args, err := psql().
		Insert(notificationsTable).
		Columns(notificationColumns...).
		Values(
			n.ID, n.RecipientID, n.ApplicationID, string(n.Type), n.Title, n.Message,
			n.ActionLink, n.IsRead, n.ReadAt, n.IsSent, n.SentAt,
			n.EmailSent, n.EmailSentAt, n.CreatedAt, n.ExpiresAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate notification insert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkNotificationSent(ctx context.Context, id string, emailSent bool, at time.Time) error {
	builder := psql().
		Update(notificationsTable).
		Set("is_sent", true).
		Set("sent_at", at)
	if emailSent {
		builder = builder.Set("email_sent", true).Set("email_sent_at", at)
	}
	query, args, err := builder.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate notification update query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id, recipientID string, at time.Time) error {
	query, args, err := psql().
		Update(notificationsTable).
		Set("is_read", true).
		Set("read_at", sq.Expr("COALESCE(read_at, ?)", at)).
		Where(sq.Eq{"id": id, "recipient_id": recipientID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate notification read query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, now time.Time) ([]*models.Notification, error) {
	where := sq.And{
		sq.Eq{"recipient_id": recipientID},
		sq.Or{sq.Eq{"expires_at": nil}, sq.Gt{"expires_at": now}},
	}
	if unreadOnly {
		where = append(where, sq.Eq{"is_read": false})
	}

	query, args, err := psql().
		Select(notificationColumns...).
		From(notificationsTable).
		Where(where).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate notifications query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Notification, 0)
	for rows.Next() {
		var (
			n     models.Notification
			ntype string
		)
		err := rows.Scan(
			&n.ID, &n.RecipientID, &n.ApplicationID, &ntype, &n.Title, &n.Message,
			&n.ActionLink, &n.IsRead, &n.ReadAt, &n.IsSent, &n.SentAt,
			&n.EmailSent, &n.EmailSentAt, &n.CreatedAt, &n.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = models.NotificationType(ntype)
		out = append(out, &n)
	}
	return out, rows.Err()
}

// ==========================
// Users
// ==========================

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	query, args, err := psql().
		Select(userColumns...).
		From(usersTable).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user query: %w", err)
	}

	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) ListUsersByRole(ctx context.Context, role models.Role, activeOnly bool) ([]*models.User, error) {
	where := sq.Eq{"role": string(role)}
	if activeOnly {
		where["is_active"] = true
	}
	query, args, err := psql().
		Select(userColumns...).
		From(usersTable).
		Where(where).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate users query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	defer rows.Close()

	out := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountActiveBoardMembers(ctx context.Context) (int, error) {
	query, args, err := psql().
		Select("COUNT(*)").
		From(usersTable).
		Where(sq.Eq{"role": string(models.RoleBoardMember), "is_active": true}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate board count query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count board members: %w", err)
	}
	return count, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u    models.User
		role string
	)
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &role, &u.IsActive, &u.SMSOptIn); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

var _ Store = (*PostgresStore)(nil)
