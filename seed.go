package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"boop/server/internal/models"
	"boop/server/internal/store"
	"boop/server/internal/utils"
)

type demoUser struct {
	uid, name, email, picture string
}

var demoUsers = []demoUser{
	{"user1", "Alice Johnson", "alice@example.com", "https://images.unsplash.com/photo-1494790108755-2616b612b786?w=150&h=150&fit=crop&crop=face"},
	{"user2", "Bob Smith", "bob@example.com", "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=150&h=150&fit=crop&crop=face"},
	{"user3", "Charlie Brown", "charlie@example.com", "https://images.unsplash.com/photo-1472099645785-5658abf4ff4e?w=150&h=150&fit=crop&crop=face"},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the demo users and a group holding all of them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close(context.WithoutCancel(ctx))

		groupID, err := seed(ctx, st)
		if err != nil {
			return err
		}
		if groupID != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "group code: %s\n", groupID)
		}
		return nil
	},
}

// seed creates missing demo users and, unless they are already grouped, a
// group with all of them. It returns the new group code or "".
func seed(ctx context.Context, st store.Store) (string, error) {
	members := make([]string, 0, len(demoUsers))
	for _, d := range demoUsers {
		members = append(members, d.uid)

		_, err := st.GetUser(ctx, d.uid)
		if err == nil {
			logger.Info("user already exists", "uid", d.uid, "name", d.name)
			continue
		}
		if !errors.Is(err, store.ErrUserNotFound) {
			return "", err
		}

		u := models.NewUser(d.uid, d.name, d.email)
		picture := d.picture
		u.ProfilePicture = &picture
		if err := st.UpsertUser(ctx, u); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", d.uid, err)
		}
		logger.Info("created user", "uid", d.uid, "name", d.name)
	}

	group := &models.Group{
		ID:      utils.GenerateGroupCode(),
		Name:    "Demo Friends",
		Members: members,
	}
	err := st.CreateGroup(ctx, group)
	if errors.Is(err, store.ErrAlreadyMember) {
		logger.Info("demo users are already grouped")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to create group: %w", err)
	}
	logger.Info("created group", "group", group.ID, "members", len(group.Members))
	return group.ID, nil
}
