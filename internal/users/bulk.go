// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package users

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tomtom215/inkwell/internal/models"
)

// Bulk actions.
const (
	ActionActivate   = "activate"
	ActionDeactivate = "deactivate"
	ActionDelete     = "delete"
	ActionHardDelete = "hard_delete"
	ActionChangeRole = "change_role"
)

// BulkResult counts per-user outcomes of BulkAction.
type BulkResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// BulkAction applies action to every id. Failures are collected per user;
// the actor's own account is always skipped.
func (s *Service) BulkAction(ctx context.Context, actorID int64, action string, ids []int64, role string) (BulkResult, error) {
	res := BulkResult{Errors: []string{}}
	if len(ids) == 0 {
		return res, ErrNothingToApply
	}
	var apply func(id int64) error
	switch action {
	case ActionActivate:
		apply = func(id int64) error {
			st := models.StatusActive
			_, err := s.UpdateUser(ctx, actorID, id, UpdateInput{Status: &st})
			return err
		}
	case ActionDeactivate:
		apply = func(id int64) error {
			st := models.StatusInactive
			_, err := s.UpdateUser(ctx, actorID, id, UpdateInput{Status: &st})
			return err
		}
	case ActionDelete:
		apply = func(id int64) error { return s.DeleteUser(ctx, actorID, id, false) }
	case ActionHardDelete:
		apply = func(id int64) error { return s.DeleteUser(ctx, actorID, id, true) }
	case ActionChangeRole:
		if !models.ValidRole(role) {
			return res, ErrRoleRequired
		}
		apply = func(id int64) error {
			_, err := s.UpdateUser(ctx, actorID, id, UpdateInput{Role: &role})
			return err
		}
	default:
		return res, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	for _, id := range ids {
		err := ErrSelfAction
		if id != actorID {
			err = apply(id)
		}
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, "user "+strconv.FormatInt(id, 10)+": "+err.Error())
			continue
		}
		res.Success++
	}
	s.log(ctx, actorID, "bulk_action", 0, fmt.Sprintf("Bulk %s: %d succeeded, %d failed", action, res.Success, res.Failed))
	return res, nil
}
