package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/larry311012/ai-news-hub-sub002/domain/dto"
	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/domain/repository"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

// ICredentialUsecase manages the OAuth app registered for each platform.
type ICredentialUsecase interface {
	Save(ctx context.Context, platform model.Platform, req dto.SaveCredentialRequest, updatedBy string) (*dto.CredentialView, error)
	List(ctx context.Context) ([]dto.CredentialView, error)
	Delete(ctx context.Context, platform model.Platform) error
	// AppKeys returns the decrypted credential. model.ErrNotConfigured when none is stored,
	// model.ErrDecryption when the vault key changed since it was saved.
	AppKeys(ctx context.Context, platform model.Platform) (*model.AppKeys, error)
}

type CredentialUsecase struct {
	repo      repository.IAppCredential
	vault     repository.IVault
	providers map[model.Platform]model.ProviderSpec
	callback  func(model.Platform) string
}

func NewCredentialUsecase(repo repository.IAppCredential, vault repository.IVault, providers map[model.Platform]model.ProviderSpec, callback func(model.Platform) string) *CredentialUsecase {
	return &CredentialUsecase{repo: repo, vault: vault, providers: providers, callback: callback}
}

func (u *CredentialUsecase) Save(ctx context.Context, platform model.Platform, req dto.SaveCredentialRequest, updatedBy string) (*dto.CredentialView, error) {
	version := model.OAuthVersion(strings.TrimSpace(req.OAuthVersion))
	if !version.Valid() {
		return nil, fmt.Errorf("%w: oauth_version must be 1.0a or 2.0", model.ErrInvalidInput)
	}
	spec, ok := u.providers[platform]
	if !ok {
		return nil, model.WithPlatform(platform, model.ErrUnsupportedPlatform)
	}
	if _, err := spec.FlowFor(version); err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidInput, err.Error())
	}
	clientID, clientSecret := strings.TrimSpace(req.ClientID), strings.TrimSpace(req.ClientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: client_id and client_secret are required", model.ErrInvalidInput)
	}

	encID, err := u.vault.Encrypt(clientID)
	if err != nil {
		return nil, err
	}
	encSecret, err := u.vault.Encrypt(clientSecret)
	if err != nil {
		return nil, err
	}
	cred := &model.OAuthAppCredential{
		Platform:     platform,
		OAuthVersion: version,
		ClientID:     encID,
		ClientSecret: encSecret,
		CallbackURL:  strings.TrimSpace(req.CallbackURL),
		Scopes:       req.Scopes,
		UpdatedBy:    updatedBy,
	}
	if err := u.repo.Upsert(ctx, cred); err != nil {
		return nil, err
	}
	logger.Security().WithFields(map[string]interface{}{
		"platform":      platform,
		"oauth_version": version,
		"updated_by":    updatedBy,
	}).Info("OAuth app credential saved")

	view := u.view(*cred)
	return &view, nil
}

func (u *CredentialUsecase) List(ctx context.Context) ([]dto.CredentialView, error) {
	creds, err := u.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]dto.CredentialView, 0, len(creds))
	for _, c := range creds {
		views = append(views, u.view(c))
	}
	return views, nil
}

func (u *CredentialUsecase) Delete(ctx context.Context, platform model.Platform) error {
	if err := u.repo.Delete(ctx, platform); err != nil {
		return model.WithPlatform(platform, err)
	}
	logger.Security().WithField("platform", platform).Info("OAuth app credential deleted")
	return nil
}

func (u *CredentialUsecase) AppKeys(ctx context.Context, platform model.Platform) (*model.AppKeys, error) {
	cred, err := u.repo.Get(ctx, platform)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, model.WithPlatform(platform, model.ErrNotConfigured)
	}
	clientID, err := u.vault.Decrypt(cred.ClientID)
	if err != nil {
		return nil, u.decryptFailed(platform, err)
	}
	clientSecret, err := u.vault.Decrypt(cred.ClientSecret)
	if err != nil {
		return nil, u.decryptFailed(platform, err)
	}
	keys := &model.AppKeys{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		CallbackURL:  cred.CallbackURL,
		Scopes:       cred.Scopes,
		Version:      cred.OAuthVersion,
	}
	if keys.CallbackURL == "" && u.callback != nil {
		keys.CallbackURL = u.callback(platform)
	}
	if len(keys.Scopes) == 0 {
		keys.Scopes = u.providers[platform].DefaultScopes
	}
	return keys, nil
}

func (u *CredentialUsecase) decryptFailed(platform model.Platform, err error) error {
	logger.Security().WithField("platform", platform).Warn("Stored app credential could not be decrypted")
	if !errors.Is(err, model.ErrDecryption) {
		err = fmt.Errorf("%w: %v", model.ErrDecryption, err)
	}
	return model.WithPlatform(platform, err)
}

// view masks the decrypted values. Undecryptable rows are still listed with CredentialsLost set
// so the admin can re-enter them.
func (u *CredentialUsecase) view(c model.OAuthAppCredential) dto.CredentialView {
	v := dto.CredentialView{
		Platform:     string(c.Platform),
		OAuthVersion: string(c.OAuthVersion),
		CallbackURL:  c.CallbackURL,
		Scopes:       c.Scopes,
		UpdatedAt:    c.UpdatedAt,
		UpdatedBy:    c.UpdatedBy,
	}
	if v.CallbackURL == "" && u.callback != nil {
		v.CallbackURL = u.callback(c.Platform)
	}
	id, errID := u.vault.Decrypt(c.ClientID)
	secret, errSecret := u.vault.Decrypt(c.ClientSecret)
	if errID != nil || errSecret != nil {
		v.CredentialsLost = true
		return v
	}
	v.ClientIDMasked = u.vault.Mask(id)
	v.ClientSecretMasked = u.vault.Mask(secret)
	return v
}
