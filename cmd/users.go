package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/catalogd/internal/models"
	"github.com/desertthunder/catalogd/internal/shared"
	"github.com/desertthunder/catalogd/internal/ui"
	"github.com/urfave/cli/v3"
)

// UsersAdd creates a user.
func (r *Runner) UsersAdd(ctx context.Context, cmd *cli.Command) error {
	handle := strings.TrimSpace(cmd.StringArg("handle"))
	if handle == "" {
		return fmt.Errorf("%w: handle", shared.ErrMissingArgument)
	}

	db, err := r.openCatalog(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	user := models.NewUser(handle)
	if err := db.Users().Create(user); err != nil {
		return fmt.Errorf("failed to add user %s: %w", handle, err)
	}
	r.logger.Info("user created", "handle", user.Handle, "id", user.ID)

	if cmd.Bool("json") {
		return r.writeJSON(user, cmd.Bool("pretty"))
	}
	return r.writeSummary(ui.NewSummary(r.palette.OK("✓ User added")).
		Add("handle", user.Handle).
		Add("id", user.ID))
}

// UsersList prints every user.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openCatalog(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := db.Users().List()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(users, cmd.Bool("pretty"))
	}
	if len(users) == 0 {
		return r.writePlain("%s\n", r.palette.Help("no users"))
	}
	for _, user := range users {
		if err := r.writePlain("%-20s %s\n", user.Handle, r.palette.Help(user.ID)); err != nil {
			return err
		}
	}
	return nil
}

// NotificationsList prints a user's inbox, newest first, optionally marking the listed entries read.
func (r *Runner) NotificationsList(ctx context.Context, cmd *cli.Command) error {
	handle := strings.TrimSpace(cmd.StringArg("handle"))
	if handle == "" {
		return fmt.Errorf("%w: handle", shared.ErrMissingArgument)
	}

	db, err := r.openCatalog(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := db.Users().GetByHandle(handle)
	if err != nil {
		return err
	}

	notifications := db.Notifications()
	inbox, err := notifications.ListForUser(user.ID, cmd.Bool("unread"))
	if err != nil {
		return err
	}

	if cmd.Bool("mark-read") {
		for _, n := range inbox {
			if n.IsRead() {
				continue
			}
			if err := notifications.MarkRead(n.ID); err != nil {
				return err
			}
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(inbox, cmd.Bool("pretty"))
	}
	if len(inbox) == 0 {
		return r.writePlain("%s\n", r.palette.Help("inbox is empty"))
	}

	for _, n := range inbox {
		marker := r.palette.Warn("●")
		if n.IsRead() {
			marker = " "
		}
		title := n.Title
		if n.Kind == models.NotificationImportFailed {
			title = r.palette.Err(title)
		}
		if err := r.writePlain("%s %s  %s\n", marker, n.CreatedAt.Local().Format(time.DateTime), title); err != nil {
			return err
		}
		if n.Body != "" {
			r.writePlain("  %s\n", r.palette.Help(n.Body))
		}
	}
	return nil
}
