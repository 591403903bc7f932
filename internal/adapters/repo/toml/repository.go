package toml

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/bnema/nearby-cli/internal/ports"
	"github.com/spf13/viper"
)

const (
	accountsPathKey  = "accounts.path"
	accountsFileName = "accounts.toml"
)

type Repository struct {
	accountsPath string
	mu           *sync.RWMutex
}

var _ ports.AccountRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	accountsPath, err := resolvePath(cfg.GetString(accountsPathKey), accountsFileName)
	if err != nil {
		return nil, err
	}

	return &Repository{accountsPath: accountsPath, mu: lockForPath(accountsPath)}, nil
}

func (r *Repository) Path() string {
	return r.accountsPath
}

func (r *Repository) Save(ctx context.Context, account domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := account.Validate(); err != nil {
		return fmt.Errorf("validate account: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toSchema(account)
	updated := false
	for i := range file.Accounts {
		if file.Accounts[i].ID == encoded.ID {
			file.Accounts[i] = encoded
			updated = true
			break
		}
	}
	if !updated {
		file.Accounts = append(file.Accounts, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return writeTOMLFile(r.accountsPath, file)
}

func (r *Repository) GetByID(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.Account{}, err
	}

	for _, entry := range file.Accounts {
		if entry.ID == string(id) {
			return fromSchema(entry), nil
		}
	}

	return domain.Account{}, domain.ErrAccountNotFound
}

func (r *Repository) List(ctx context.Context) ([]domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(file.Accounts))
	for _, entry := range file.Accounts {
		accounts = append(accounts, fromSchema(entry))
	}

	return accounts, nil
}

func (r *Repository) Delete(ctx context.Context, id domain.AccountID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	kept := file.Accounts[:0]
	found := false
	for _, entry := range file.Accounts {
		if entry.ID == string(id) {
			found = true
			continue
		}
		kept = append(kept, entry)
	}
	if !found {
		return domain.ErrAccountNotFound
	}
	file.Accounts = kept

	return writeTOMLFile(r.accountsPath, file)
}

func (r *Repository) readSchema() (accountsFileSchema, error) {
	var file accountsFileSchema
	if err := readTOMLFile(r.accountsPath, &file); err != nil {
		return accountsFileSchema{}, err
	}
	if err := file.validateVersion(); err != nil {
		return accountsFileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func toSchema(account domain.Account) accountSchema {
	encoded := accountSchema{
		ID:               string(account.ID),
		Name:             account.Name,
		Username:         account.Username,
		ThirdPartyUserID: account.ThirdPartyUserID,
		PasswordRef:      account.PasswordRef,
		SessionRef:       account.SessionRef,
		Proxies:          append([]string(nil), account.Proxies...),
	}
	if account.Location != nil {
		encoded.Location = &locationSchema{
			Latitude:  account.Location.Latitude,
			Longitude: account.Location.Longitude,
			City:      account.Location.City,
			Country:   account.Location.Country,
		}
	}
	return encoded
}

func fromSchema(entry accountSchema) domain.Account {
	account := domain.Account{
		ID:               domain.AccountID(entry.ID),
		Name:             entry.Name,
		Username:         entry.Username,
		ThirdPartyUserID: entry.ThirdPartyUserID,
		PasswordRef:      entry.PasswordRef,
		SessionRef:       entry.SessionRef,
	}
	if len(entry.Proxies) > 0 {
		account.Proxies = append([]string(nil), entry.Proxies...)
	}
	if entry.Location != nil {
		account.Location = &domain.Location{
			Latitude:  entry.Location.Latitude,
			Longitude: entry.Location.Longitude,
			City:      entry.Location.City,
			Country:   entry.Location.Country,
		}
	}
	return account
}
