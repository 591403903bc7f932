package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/bnema/nearby-cli/internal/ports"
)

var ErrNoPassword = errors.New("no password stored for account")

// AccountService manages the local account registry and the secrets referenced from it.
type AccountService struct {
	repo  ports.AccountRepository
	store ports.SecretStore
}

func NewAccountService(repo ports.AccountRepository, store ports.SecretStore) *AccountService {
	return &AccountService{
		repo:  repo,
		store: store,
	}
}

func (s *AccountService) AddAccount(ctx context.Context, cmd AddAccountCommand) (domain.Account, error) {
	account, err := s.repo.GetByID(ctx, cmd.ID)
	isNew := false
	if err != nil {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return domain.Account{}, fmt.Errorf("get account by id: %w", err)
		}
		account = domain.Account{ID: cmd.ID}
		isNew = true
	}

	if name := strings.TrimSpace(cmd.Name); name != "" {
		account.Name = name
	}
	if username := strings.TrimSpace(cmd.Username); username != "" {
		account.Username = username
	}
	if thirdParty := strings.TrimSpace(cmd.ThirdPartyUserID); thirdParty != "" {
		account.ThirdPartyUserID = thirdParty
	}
	if cmd.Proxies != nil {
		proxies, err := domain.NormalizeProxyAddresses(cmd.Proxies)
		if err != nil {
			return domain.Account{}, fmt.Errorf("normalize proxies: %w", err)
		}
		account.Proxies = proxies
	}
	if cmd.Location != nil {
		if err := cmd.Location.Validate(); err != nil {
			return domain.Account{}, fmt.Errorf("validate location: %w", err)
		}
		location := *cmd.Location
		account.Location = &location
	}
	if err := account.Validate(); err != nil {
		return domain.Account{}, fmt.Errorf("validate account: %w", err)
	}

	if cmd.Password == "" {
		if err := s.repo.Save(ctx, account); err != nil {
			return domain.Account{}, fmt.Errorf("save account: %w", err)
		}
		return account, nil
	}

	secretKey := domain.PasswordSecretKey(account.ID)
	if err := s.store.Put(ctx, secretKey, cmd.Password); err != nil {
		return domain.Account{}, fmt.Errorf("store account password: %w", err)
	}
	account.PasswordRef = secretKey

	if err := s.repo.Save(ctx, account); err != nil {
		if isNew {
			if rollbackErr := s.store.Delete(ctx, secretKey); rollbackErr != nil {
				return domain.Account{}, fmt.Errorf("save account and rollback stored password: %w", errors.Join(err, rollbackErr))
			}
		}
		return domain.Account{}, fmt.Errorf("save account: %w", err)
	}

	return account, nil
}

func (s *AccountService) SetPassword(ctx context.Context, id domain.AccountID, password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get account by id: %w", err)
	}

	secretKey := domain.PasswordSecretKey(id)
	if err := s.store.Put(ctx, secretKey, password); err != nil {
		return fmt.Errorf("store account password: %w", err)
	}
	if account.PasswordRef == secretKey {
		return nil
	}

	account.PasswordRef = secretKey
	if err := s.repo.Save(ctx, account); err != nil {
		if rollbackErr := s.store.Delete(ctx, secretKey); rollbackErr != nil {
			return fmt.Errorf("save password ref and rollback stored password: %w", errors.Join(err, rollbackErr))
		}
		return fmt.Errorf("save password ref: %w", err)
	}
	return nil
}

func (s *AccountService) SetProxies(ctx context.Context, id domain.AccountID, proxies []string) ([]string, error) {
	normalized, err := domain.NormalizeProxyAddresses(proxies)
	if err != nil {
		return nil, fmt.Errorf("normalize proxies: %w", err)
	}

	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get account by id: %w", err)
	}
	account.Proxies = normalized

	if err := s.repo.Save(ctx, account); err != nil {
		return nil, fmt.Errorf("save account proxies: %w", err)
	}
	return normalized, nil
}

func (s *AccountService) SetLocation(ctx context.Context, id domain.AccountID, location domain.Location) error {
	if err := location.Validate(); err != nil {
		return fmt.Errorf("validate location: %w", err)
	}

	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get account by id: %w", err)
	}
	account.Location = &location

	if err := s.repo.Save(ctx, account); err != nil {
		return fmt.Errorf("save account location: %w", err)
	}
	return nil
}

func (s *AccountService) SetSessionRef(ctx context.Context, id domain.AccountID, ref string) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get account by id: %w", err)
	}
	if account.SessionRef == ref {
		return nil
	}
	account.SessionRef = ref

	if err := s.repo.Save(ctx, account); err != nil {
		return fmt.Errorf("save session ref: %w", err)
	}
	return nil
}

// RemoveAccount deletes the account and its secrets. The account is restored if a secret cannot be removed.
func (s *AccountService) RemoveAccount(ctx context.Context, id domain.AccountID) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get account by id: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	for _, secretRef := range uniqueSecretRefs(account.PasswordRef, account.SessionRef) {
		err := s.store.Delete(ctx, secretRef)
		if err == nil || errors.Is(err, domain.ErrSecretNotFound) {
			continue
		}
		if restoreErr := s.repo.Save(ctx, account); restoreErr != nil {
			return fmt.Errorf("delete account secret and restore account: %w", errors.Join(err, restoreErr))
		}
		return fmt.Errorf("delete account secret: %w", err)
	}

	return nil
}

func (s *AccountService) Get(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Account{}, fmt.Errorf("get account by id: %w", err)
	}
	return account, nil
}

func (s *AccountService) List(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// Credentials loads the login credentials of an account. Accounts with a third-party id may have no password.
func (s *AccountService) Credentials(ctx context.Context, id domain.AccountID) (domain.Credentials, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("get account by id: %w", err)
	}

	password := ""
	if account.PasswordRef != "" {
		password, err = s.store.Get(ctx, account.PasswordRef)
		if err != nil && !errors.Is(err, domain.ErrSecretNotFound) {
			return domain.Credentials{}, fmt.Errorf("load account password: %w", err)
		}
	}

	creds := account.Credentials(password)
	if creds.Password == "" && strings.TrimSpace(creds.ThirdPartyUserID) == "" {
		return domain.Credentials{}, fmt.Errorf("account %s: %w", id, ErrNoPassword)
	}
	return creds, nil
}

func uniqueSecretRefs(secretRefs ...string) []string {
	result := make([]string, 0, len(secretRefs))
	seen := make(map[string]struct{}, len(secretRefs))

	for _, secretRef := range secretRefs {
		if secretRef == "" {
			continue
		}
		if _, ok := seen[secretRef]; ok {
			continue
		}

		seen[secretRef] = struct{}{}
		result = append(result, secretRef)
	}

	return result
}
