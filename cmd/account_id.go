package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bnema/nearby-cli/internal/application"
	"github.com/bnema/nearby-cli/internal/domain"
)

// resolveNewAccountID picks the ID for account add. Empty or "0" assigns the next free number.
func resolveNewAccountID(ctx context.Context, accounts *application.AccountService, raw string) (domain.AccountID, error) {
	requested := strings.TrimSpace(raw)
	if requested == "" || requested == "0" {
		return nextAvailableAccountID(ctx, accounts)
	}

	if n, err := strconv.Atoi(requested); err == nil && n <= 0 {
		return "", fmt.Errorf("account must be a positive number or empty/0 for auto assignment")
	}

	return domain.AccountID(requested), nil
}

func nextAvailableAccountID(ctx context.Context, accounts *application.AccountService) (domain.AccountID, error) {
	existing, err := accounts.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list accounts for auto assignment: %w", err)
	}

	used := make(map[int]struct{}, len(existing))
	for _, account := range existing {
		n, err := strconv.Atoi(string(account.ID))
		if err != nil || n <= 0 {
			continue
		}
		used[n] = struct{}{}
	}

	for i := 1; ; i++ {
		if _, ok := used[i]; !ok {
			return domain.AccountID(strconv.Itoa(i)), nil
		}
	}
}

// selectAccountID resolves --account for commands acting on one account.
// Without the flag the only configured account is used.
func selectAccountID(ctx context.Context, accounts *application.AccountService, raw string) (domain.AccountID, error) {
	if requested := strings.TrimSpace(raw); requested != "" {
		return domain.AccountID(requested), nil
	}

	existing, err := accounts.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list accounts: %w", err)
	}
	switch len(existing) {
	case 0:
		return "", fmt.Errorf("no accounts configured, add one with `nearby account add`")
	case 1:
		return existing[0].ID, nil
	default:
		return "", fmt.Errorf("--account is required when %d accounts are configured", len(existing))
	}
}
