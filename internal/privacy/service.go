// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package privacy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/member"
	"github.com/tomtom215/inkwell/internal/models"
)

// Request types.
const (
	TypeAccess   = "access"
	TypeDeletion = "deletion"
)

// Request statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
)

var (
	ErrUnknownType      = errors.New("unknown privacy request type")
	ErrDuplicateRequest = errors.New("a request of this type is already pending")
	ErrRequestNotFound  = errors.New("privacy request not found")
	ErrNotPending       = errors.New("privacy request was already processed")
	ErrWrongType        = errors.New("privacy request has a different type")
)

// Request is a data access or deletion request of a member.
type Request struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Username    string     `json:"username,omitempty"`
	Type        string     `json:"request_type"`
	Status      string     `json:"status"`
	Note        string     `json:"note,omitempty"`
	Result      string     `json:"-"`
	ProcessedBy *int64     `json:"processed_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// Members is the part of the member service requests act on.
type Members interface {
	ExportUserData(ctx context.Context, userID int64) (*member.Export, error)
	RequestAccountDeletion(ctx context.Context, userID int64) (time.Time, error)
	CancelAccountDeletion(ctx context.Context, userID int64) error
	DeletionScheduledAt(ctx context.Context, userID int64) (time.Time, error)
}

// Accounts removes users.
type Accounts interface {
	DeleteUser(ctx context.Context, actorID, id int64, hard bool) error
}

// Service records and processes privacy requests.
type Service struct {
	db       *database.DB
	members  Members
	accounts Accounts
	hooks    *hooks.Registry
	now      func() time.Time
}

// New creates the service. registry may be nil.
func New(db *database.DB, members Members, accounts Accounts, registry *hooks.Registry) *Service {
	return &Service{db: db, members: members, accounts: accounts, hooks: registry, now: time.Now}
}

const selectRequest = `
	SELECT r.id, r.user_id, COALESCE(u.username, ''), r.request_type, r.status, COALESCE(r.note, ''),
		COALESCE(r.result, ''), r.processed_by, r.created_at, r.processed_at
	FROM privacy_requests r LEFT JOIN users u ON u.id = r.user_id`

type scanner interface{ Scan(dest ...any) error }

func scanRequest(row scanner) (*Request, error) {
	var (
		r         Request
		by        sql.NullInt64
		created   sql.NullTime
		processed sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.Username, &r.Type, &r.Status, &r.Note, &r.Result, &by, &created, &processed); err != nil {
		return nil, err
	}
	r.CreatedAt = created.Time
	if by.Valid {
		r.ProcessedBy = &by.Int64
	}
	if processed.Valid {
		r.ProcessedAt = &processed.Time
	}
	return &r, nil
}

func (s *Service) query(ctx context.Context, where string, args ...any) ([]*Request, error) {
	rows, err := s.db.Conn().QueryContext(ctx, selectRequest+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list privacy requests: %w", err)
	}
	defer database.CloseRows(rows)
	var out []*Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan privacy request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Request returns one request.
func (s *Service) Request(ctx context.Context, id int64) (*Request, error) {
	r, err := scanRequest(s.db.Conn().QueryRowContext(ctx, selectRequest+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load privacy request: %w", err)
	}
	return r, nil
}

// Requests lists requests with the given status ("" for all), newest
// first, with the total.
func (s *Service) Requests(ctx context.Context, status string, limit, offset int) ([]*Request, int64, error) {
	where, args := "", []any{}
	if status != "" {
		where, args = ` WHERE r.status = ?`, append(args, status)
	}
	var total int64
	if err := s.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM privacy_requests r`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count privacy requests: %w", err)
	}
	list, err := s.query(ctx, where+` ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	return list, total, err
}

// UserRequests lists the requests of one member, newest first.
func (s *Service) UserRequests(ctx context.Context, userID int64) ([]*Request, error) {
	return s.query(ctx, ` WHERE r.user_id = ? ORDER BY r.created_at DESC, r.id DESC`, userID)
}

// PendingCount counts unprocessed requests.
func (s *Service) PendingCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM privacy_requests WHERE status = ?`, StatusPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending privacy requests: %w", err)
	}
	return n, nil
}

// Submit records a request of userID. Only one pending request per type is
// allowed. A deletion request also schedules the account removal.
func (s *Service) Submit(ctx context.Context, userID int64, typ, note string) (*Request, error) {
	if typ != TypeAccess && typ != TypeDeletion {
		return nil, ErrUnknownType
	}
	var pending int64
	if err := s.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM privacy_requests WHERE user_id = ? AND request_type = ? AND status = ?`,
		userID, typ, StatusPending).Scan(&pending); err != nil {
		return nil, fmt.Errorf("failed to check pending requests: %w", err)
	}
	if pending > 0 {
		return nil, ErrDuplicateRequest
	}
	if typ == TypeDeletion {
		if _, err := s.members.RequestAccountDeletion(ctx, userID); err != nil {
			return nil, err
		}
	}
	var id int64
	err := s.db.Conn().QueryRowContext(ctx, `
		INSERT INTO privacy_requests (user_id, request_type, status, note, created_at) VALUES (?, ?, ?, ?, ?)
		RETURNING id`, userID, typ, StatusPending, note, s.now().UTC()).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to record privacy request: %w", err)
	}
	uid := userID
	if err := s.db.LogActivity(ctx, models.Activity{
		UserID: &uid, Action: "privacy_request_" + typ, EntityType: "privacy_request", EntityID: &id,
		Description: "Privacy request submitted: " + typ,
	}); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to log privacy request")
	}
	r, err := s.Request(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.hooks != nil {
		s.hooks.DoAction(ctx, hooks.PrivacyRequestSubmitted, r)
	}
	return r, nil
}

func (s *Service) pending(ctx context.Context, id int64, typ string) (*Request, error) {
	r, err := s.Request(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusPending {
		return nil, ErrNotPending
	}
	if typ != "" && r.Type != typ {
		return nil, ErrWrongType
	}
	return r, nil
}

func (s *Service) finish(ctx context.Context, r *Request, actorID int64, status, result, note string) (*Request, error) {
	var by any
	if actorID != 0 {
		by = actorID
	}
	_, err := s.db.Conn().ExecContext(ctx, `
		UPDATE privacy_requests SET status = ?, result = ?, note = COALESCE(NULLIF(?, ''), note), processed_by = ?, processed_at = ?
		WHERE id = ?`, status, result, note, by, s.now().UTC(), r.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update privacy request: %w", err)
	}
	done, err := s.Request(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if s.hooks != nil {
		s.hooks.DoAction(ctx, hooks.PrivacyRequestProcessed, done)
	}
	return done, nil
}

// CompleteAccess exports the member's data into the request result.
func (s *Service) CompleteAccess(ctx context.Context, actorID, id int64) (*Request, error) {
	r, err := s.pending(ctx, id, TypeAccess)
	if err != nil {
		return nil, err
	}
	export, err := s.members.ExportUserData(ctx, r.UserID)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(export)
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return s.finish(ctx, r, actorID, StatusCompleted, string(raw), "")
}

// CompleteDeletion removes the account now.
func (s *Service) CompleteDeletion(ctx context.Context, actorID, id int64) (*Request, error) {
	r, err := s.pending(ctx, id, TypeDeletion)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.DeleteUser(ctx, actorID, r.UserID, true); err != nil {
		return nil, err
	}
	return s.finish(ctx, r, actorID, StatusCompleted, "", "")
}

// Reject closes a request without acting on it. Rejecting a deletion
// reactivates the account.
func (s *Service) Reject(ctx context.Context, actorID, id int64, note string) (*Request, error) {
	r, err := s.pending(ctx, id, "")
	if err != nil {
		return nil, err
	}
	if r.Type == TypeDeletion {
		if err := s.members.CancelAccountDeletion(ctx, r.UserID); err != nil && !errors.Is(err, member.ErrNoDeletionPending) {
			return nil, err
		}
	}
	return s.finish(ctx, r, actorID, StatusRejected, "", note)
}

// Cancel withdraws a pending request of userID.
func (s *Service) Cancel(ctx context.Context, userID, id int64) error {
	r, err := s.pending(ctx, id, "")
	if err != nil {
		return err
	}
	if r.UserID != userID {
		return ErrRequestNotFound
	}
	_, err = s.Reject(ctx, 0, id, "Withdrawn by member")
	return err
}

// PurgeDueDeletions completes every pending deletion whose grace period
// has ended and returns the number of removed accounts.
func (s *Service) PurgeDueDeletions(ctx context.Context) (int64, error) {
	list, err := s.query(ctx, ` WHERE r.request_type = ? AND r.status = ? ORDER BY r.id`, TypeDeletion, StatusPending)
	if err != nil {
		return 0, err
	}
	now := s.now()
	var n int64
	for _, r := range list {
		at, err := s.members.DeletionScheduledAt(ctx, r.UserID)
		if err != nil {
			return n, err
		}
		if at.IsZero() || at.After(now) {
			continue
		}
		if _, err := s.CompleteDeletion(ctx, 0, r.ID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int64("user_id", r.UserID).Msg("Scheduled account deletion failed")
			continue
		}
		n++
	}
	return n, nil
}

// Export decodes the data stored on a completed access request. It
// returns nil for requests without a result.
func (r *Request) Export() (*member.Export, error) {
	if r.Result == "" {
		return nil, nil
	}
	var e member.Export
	if err := json.Unmarshal([]byte(r.Result), &e); err != nil {
		return nil, fmt.Errorf("failed to decode export: %w", err)
	}
	return &e, nil
}
