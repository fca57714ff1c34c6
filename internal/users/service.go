// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/security"
	"github.com/tomtom215/inkwell/internal/validation"
)

// CapabilityLister reports the capabilities of a role.
type CapabilityLister interface {
	Capabilities(role string) []string
}

// SessionRevoker ends every session of a user.
type SessionRevoker interface {
	DestroyUserSessions(ctx context.Context, userID int64) (int, error)
}

// Service is the admin user service.
type Service struct {
	db         *database.DB
	caps       CapabilityLister
	sessions   SessionRevoker
	bcryptCost int
	now        func() time.Time
}

// New creates the service. caps and sessions may be nil.
func New(db *database.DB, caps CapabilityLister, sessions SessionRevoker, bcryptCost int) *Service {
	return &Service{db: db, caps: caps, sessions: sessions, bcryptCost: bcryptCost, now: time.Now}
}

// CreateInput is a new account.
type CreateInput struct {
	Username    string `json:"username" validate:"required,min=3,max=60,username"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	DisplayName string `json:"display_name" validate:"max=100"`
	Role        string `json:"role" validate:"omitempty,role"`
	Status      string `json:"status" validate:"omitempty,user_status"`
	FirstName   string `json:"first_name" validate:"max=100"`
	LastName    string `json:"last_name" validate:"max=100"`
}

// UpdateInput changes the non-nil fields of an account.
type UpdateInput struct {
	Username    *string `json:"username" validate:"omitempty,min=3,max=60,username"`
	Email       *string `json:"email" validate:"omitempty,email,max=255"`
	Password    *string `json:"password" validate:"omitempty,min=8,max=128"`
	DisplayName *string `json:"display_name" validate:"omitempty,max=100"`
	Role        *string `json:"role" validate:"omitempty,role"`
	Status      *string `json:"status" validate:"omitempty,user_status"`
	FirstName   *string `json:"first_name" validate:"omitempty,max=100"`
	LastName    *string `json:"last_name" validate:"omitempty,max=100"`
}

// Detail is a user with its meta values.
type Detail struct {
	*models.User
	Meta map[string]string `json:"meta"`
}

// CreateUser validates and stores a new account. Role defaults to member
// and status to active.
func (s *Service) CreateUser(ctx context.Context, actorID int64, in CreateInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if ve := validation.ValidateStruct(in); ve != nil {
		return nil, ve
	}
	if err := s.ensureUnique(ctx, in.Username, in.Email, 0); err != nil {
		return nil, err
	}
	hash, err := security.HashPasswordCost(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Username:     security.Sanitize(in.Username, security.KindUsername),
		Email:        security.Sanitize(in.Email, security.KindEmail),
		PasswordHash: hash,
		DisplayName:  security.Sanitize(in.DisplayName, security.KindText),
		Role:         orDefault(in.Role, models.RoleMember),
		Status:       orDefault(in.Status, models.StatusActive),
	}
	if u.DisplayName == "" {
		u.DisplayName = u.Username
	}
	if _, err := s.db.InsertUser(ctx, u); err != nil {
		return nil, err
	}
	if err := s.setNames(ctx, u.ID, nonEmpty(in.FirstName), nonEmpty(in.LastName)); err != nil {
		return nil, err
	}
	s.log(ctx, actorID, "user_created", u.ID, "User "+u.Username+" created with role "+u.Role)
	return u, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (s *Service) ensureUnique(ctx context.Context, username, email string, excludeID int64) error {
	if username != "" {
		taken, err := s.db.UsernameExists(ctx, username, excludeID)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}
	}
	if email != "" {
		taken, err := s.db.EmailExists(ctx, email, excludeID)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}
	}
	return nil
}

// setNames stores the non-nil name parts as user meta.
func (s *Service) setNames(ctx context.Context, id int64, first, last *string) error {
	if first != nil {
		if err := s.db.SetUserMeta(ctx, id, "first_name", security.Sanitize(*first, security.KindText)); err != nil {
			return err
		}
	}
	if last != nil {
		if err := s.db.SetUserMeta(ctx, id, "last_name", security.Sanitize(*last, security.KindText)); err != nil {
			return err
		}
	}
	return nil
}

func nonEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// User loads a user with its meta values.
func (s *Service) User(ctx context.Context, id int64) (*Detail, error) {
	u, err := s.db.UserByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	meta, err := s.db.AllUserMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{User: u, Meta: meta}, nil
}

// UpdateUser applies in to user id. Demoting or deactivating the last
// active admin fails with ErrLastAdmin. Deactivation ends the user's
// sessions.
func (s *Service) UpdateUser(ctx context.Context, actorID, id int64, in UpdateInput) (*models.User, error) {
	if ve := validation.ValidateStruct(in); ve != nil {
		return nil, ve
	}
	u, err := s.db.UserByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	var (
		sets    []string
		args    []any
		changes []string
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
		changes = append(changes, col)
	}
	if in.Username != nil && *in.Username != u.Username {
		if err := s.ensureUnique(ctx, *in.Username, "", id); err != nil {
			return nil, err
		}
		u.Username = security.Sanitize(*in.Username, security.KindUsername)
		set("username", u.Username)
	}
	if in.Email != nil && *in.Email != u.Email {
		if err := s.ensureUnique(ctx, "", *in.Email, id); err != nil {
			return nil, err
		}
		u.Email = security.Sanitize(*in.Email, security.KindEmail)
		set("email", u.Email)
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := security.HashPasswordCost(*in.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		set("password", hash)
	}
	if in.DisplayName != nil {
		u.DisplayName = security.Sanitize(*in.DisplayName, security.KindText)
		set("display_name", u.DisplayName)
	}
	demote := in.Role != nil && *in.Role != u.Role && u.Role == models.RoleAdmin
	deactivate := in.Status != nil && *in.Status != models.StatusActive && u.Status == models.StatusActive
	if (demote || deactivate) && u.IsAdmin() && u.IsActive() {
		if err := s.ensureAnotherAdmin(ctx, id); err != nil {
			return nil, err
		}
	}
	if in.Role != nil && *in.Role != u.Role {
		u.Role = *in.Role
		set("role", u.Role)
	}
	if in.Status != nil && *in.Status != u.Status {
		u.Status = *in.Status
		set("status", u.Status)
	}

	if len(sets) > 0 {
		u.UpdatedAt = s.now().UTC()
		set("updated_at", u.UpdatedAt)
		args = append(args, id)
		if _, err := s.db.Conn().ExecContext(ctx,
			`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return nil, fmt.Errorf("failed to update user %d: %w", id, err)
		}
	}
	if err := s.setNames(ctx, id, in.FirstName, in.LastName); err != nil {
		return nil, err
	}
	if deactivate {
		s.revokeSessions(ctx, id)
	}
	s.log(ctx, actorID, "user_updated", id, "User "+u.Username+" updated: "+strings.Join(changes, ", "))
	return u, nil
}

// ensureAnotherAdmin fails when no active admin other than id exists.
func (s *Service) ensureAnotherAdmin(ctx context.Context, id int64) error {
	var n int64
	if err := s.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = ? AND status = ? AND id <> ?`,
		models.RoleAdmin, models.StatusActive, id).Scan(&n); err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	if n == 0 {
		return ErrLastAdmin
	}
	return nil
}

func (s *Service) revokeSessions(ctx context.Context, id int64) {
	if s.sessions == nil {
		return
	}
	if _, err := s.sessions.DestroyUserSessions(ctx, id); err != nil {
		s.log(ctx, 0, "session_revoke_failed", id, err.Error())
	}
}

// DeleteUser deactivates user id, or removes it with its meta and
// subscriptions when hard is set. Actors cannot delete themselves and the
// last active admin cannot be removed.
func (s *Service) DeleteUser(ctx context.Context, actorID, id int64, hard bool) error {
	if actorID != 0 && actorID == id {
		return ErrSelfAction
	}
	u, err := s.db.UserByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if u.IsAdmin() && u.IsActive() {
		if err := s.ensureAnotherAdmin(ctx, id); err != nil {
			return err
		}
	}
	s.revokeSessions(ctx, id)

	if !hard {
		if _, err := s.db.Conn().ExecContext(ctx, `UPDATE users SET status = ?, updated_at = ? WHERE id = ?`,
			models.StatusInactive, s.now().UTC(), id); err != nil {
			return fmt.Errorf("failed to deactivate user %d: %w", id, err)
		}
		s.log(ctx, actorID, "user_deactivated", id, "User "+u.Username+" deactivated")
		return nil
	}

	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, q := range []string{
		`DELETE FROM user_meta WHERE user_id = ?`,
		`DELETE FROM user_group_members WHERE user_id = ?`,
		`DELETE FROM user_subscriptions WHERE user_id = ?`,
		`DELETE FROM subscription_usage WHERE user_id = ?`,
		`DELETE FROM theme_customizations WHERE user_id = ?`,
		`DELETE FROM sessions WHERE user_id = ?`,
		`DELETE FROM users WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete user %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	s.log(ctx, actorID, "user_deleted", id, "User "+u.Username+" deleted permanently")
	return nil
}

// Query filters Users.
type Query struct {
	Search  string `json:"search"`
	Role    string `json:"role"`
	Status  string `json:"status"`
	OrderBy string `json:"orderby"`
	Order   string `json:"order"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
}

var sortable = map[string]bool{
	"id": true, "username": true, "email": true, "role": true, "status": true, "created_at": true, "last_login": true,
}

// Users lists users matching q and the total before paging. Limit defaults
// to 20; unknown sort columns fall back to created_at descending.
func (s *Service) Users(ctx context.Context, q Query) ([]*models.User, int64, error) {
	var (
		where []string
		args  []any
	)
	if q.Role != "" {
		where = append(where, "role = ?")
		args = append(args, q.Role)
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, q.Status)
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		where = append(where, "(username ILIKE ? OR email ILIKE ? OR display_name ILIKE ?)")
		like := "%" + term + "%"
		args = append(args, like, like, like)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	orderBy := q.OrderBy
	if !sortable[orderBy] {
		orderBy = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(q.Order, "asc") {
		order = "ASC"
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT `+database.UserColumns+` FROM users`+clause+` ORDER BY `+orderBy+` `+order+`, id `+order+` LIMIT ? OFFSET ?`,
		append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer database.CloseRows(rows)
	out := []*models.User{}
	for rows.Next() {
		u, err := database.ScanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (s *Service) log(ctx context.Context, actorID int64, action string, userID int64, desc string) {
	a := models.Activity{Action: action, EntityType: "user", EntityID: &userID, Description: desc}
	if actorID != 0 {
		a.UserID = &actorID
	}
	if err := s.db.LogActivity(ctx, a); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("action", action).Msg("Failed to log user activity")
	}
}
