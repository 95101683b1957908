package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/larry311012/ai-news-hub-sub002/domain/dto"
	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/cache"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/persistence"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/security"
)

func newTestRepos(t *testing.T) *persistence.Repositories {
	t.Helper()
	db, err := persistence.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, persistence.EnsureSchema(context.Background(), db, persistence.DialectSQLite))
	return persistence.NewRepositories(db, persistence.DialectSQLite)
}

func newTestVault(t *testing.T) *security.Vault {
	t.Helper()
	key, err := security.GenerateKey()
	require.NoError(t, err)
	v, err := security.NewVaultFromConfig(key, "")
	require.NoError(t, err)
	return v
}

func callbackFor(p model.Platform) string { return "http://localhost:10001/callback/" + string(p) }

// harness wires the connection, credential and oauth use cases over real in-memory stores.
type harness struct {
	repos *persistence.Repositories
	vault *security.Vault
	conns *ConnectionUsecase
	creds *CredentialUsecase
	txs   *cache.TransactionStore
	kv    *cache.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repos := newTestRepos(t)
	vault := newTestVault(t)
	kv := cache.NewMemoryStore()
	return &harness{
		repos: repos,
		vault: vault,
		conns: NewConnectionUsecase(repos.Connections),
		creds: NewCredentialUsecase(repos.Credentials, vault, model.DefaultProviders(), callbackFor),
		txs:   cache.NewTransactionStore(kv),
		kv:    kv,
	}
}

func (h *harness) saveApp(t *testing.T, p model.Platform, version model.OAuthVersion) {
	t.Helper()
	_, err := h.creds.Save(context.Background(), p, dto.SaveCredentialRequest{
		OAuthVersion: string(version),
		ClientID:     "client-" + string(p),
		ClientSecret: "secret-" + string(p),
	}, "admin")
	require.NoError(t, err)
}

// connect stores a connected row with sealed tokens.
func (h *harness) connect(t *testing.T, userID string, p model.Platform, access string, expiresAt *time.Time) *model.SocialConnection {
	t.Helper()
	sealed, err := h.vault.Encrypt(access)
	require.NoError(t, err)
	conn, err := h.conns.Upsert(context.Background(), &model.SocialConnection{
		UserID:           userID,
		Platform:         p,
		Status:           model.StatusConnected,
		AccessToken:      sealed,
		TokenExpiresAt:   expiresAt,
		PlatformUserID:   "acct-" + string(p),
		PlatformUsername: "newsbot",
	})
	require.NoError(t, err)
	return conn
}

type MockPublisher struct {
	mock.Mock
	platform model.Platform
}

func (m *MockPublisher) Platform() model.Platform { return m.platform }

func (m *MockPublisher) Publish(ctx context.Context, creds model.PlatformCredentials, content model.PublishContent) (string, error) {
	args := m.Called(ctx, creds, content)
	return args.String(0), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	args := m.Called(ctx, topic, payload)
	return args.String(0), args.Error(1)
}

type MockContentGenerator struct {
	mock.Mock
}

func (m *MockContentGenerator) GenerateDraft(ctx context.Context, platform model.Platform, in model.ContentGenerationInput) (string, error) {
	args := m.Called(ctx, platform, in)
	return args.String(0), args.Error(1)
}

type MockImageGenerator struct {
	mock.Mock
}

func (m *MockImageGenerator) GenerateImage(ctx context.Context, in model.ImageGenerationInput) (*model.ImageGenerationResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ImageGenerationResult), args.Error(1)
}
