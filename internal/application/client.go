package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bnema/nearby-cli/internal/bulk"
	"github.com/bnema/nearby-cli/internal/dispatch"
	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/bnema/nearby-cli/internal/ports"
	"github.com/bnema/nearby-cli/internal/proxypool"
	"github.com/bnema/nearby-cli/internal/session"
)

const persistTimeout = 10 * time.Second

var ErrNoLocation = errors.New("account has no location")

type ClientConfig struct {
	Session         session.Config
	Pool            proxypool.Config
	Dispatch        dispatch.Config
	BulkConcurrency int
	BulkDeadline    time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Session:         session.DefaultConfig(),
		Pool:            proxypool.DefaultConfig(),
		Dispatch:        dispatch.DefaultConfig(),
		BulkConcurrency: 4,
		BulkDeadline:    5 * time.Minute,
	}
}

// Dependencies are the adapters a client is built from. Accounts, Sessions and ProxyState are optional.
type Dependencies struct {
	Auth       ports.Authenticator
	Transport  ports.Transport
	Accounts   *AccountService
	Sessions   *SessionStore
	ProxyState ports.ProxyStateRepository
	Clock      ports.Clock
	Logger     *slog.Logger

	DispatchMetrics *dispatch.Metrics
	BulkMetrics     *bulk.Metrics
}

// BulkOptions override the client's bulk defaults for one batch.
type BulkOptions struct {
	Concurrency int
	Deadline    time.Duration
	OnResult    func(domain.TargetID, domain.CallOutcome)
}

// Client is the caller-facing API of one account. It owns that account's session and proxy pool.
type Client struct {
	cfg        ClientConfig
	clock      ports.Clock
	logger     *slog.Logger
	accounts   *AccountService
	store      *SessionStore
	proxyState ports.ProxyStateRepository

	sessions    *session.Manager
	pool        *proxypool.Pool
	dispatcher  *dispatch.Dispatcher
	bulkMetrics *bulk.Metrics

	mu          sync.Mutex
	account     domain.Account
	lastSuccess time.Time
	lastFailure time.Time
	failure     string
}

func NewClient(ctx context.Context, account domain.Account, deps Dependencies, cfg ClientConfig) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if deps.Auth == nil || deps.Transport == nil {
		return nil, fmt.Errorf("new client for %s: authenticator and transport are required", account.ID)
	}
	clock := deps.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("account", string(account.ID))

	c := &Client{
		cfg:         cfg,
		clock:       clock,
		logger:      logger,
		accounts:    deps.Accounts,
		store:       deps.Sessions,
		proxyState:  deps.ProxyState,
		bulkMetrics: deps.BulkMetrics,
		account:     account,
	}

	pool, err := proxypool.New(cfg.Pool, clock, proxypool.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("new client for %s: %w", account.ID, err)
	}
	if err := pool.Configure(account.Proxies); err != nil {
		return nil, fmt.Errorf("new client for %s: %w", account.ID, err)
	}
	if c.proxyState != nil {
		states, err := c.proxyState.Load(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("new client for %s: load proxy state: %w", account.ID, err)
		}
		if restored := pool.Restore(states); restored > 0 {
			logger.Debug("restored proxy state", "endpoints", restored)
		}
	}
	c.pool = pool

	c.sessions = session.NewManager(deps.Auth, clock, cfg.Session,
		session.WithLogger(logger),
		session.WithListener(c.persistSession),
	)
	if err := c.restoreSession(ctx); err != nil {
		return nil, fmt.Errorf("new client for %s: %w", account.ID, err)
	}

	dispatchOpts := []dispatch.Option{dispatch.WithLogger(logger)}
	if deps.DispatchMetrics != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithMetrics(deps.DispatchMetrics))
	}
	c.dispatcher = dispatch.New(c.sessions, c.pool, deps.Transport, clock, cfg.Dispatch, dispatchOpts...)

	return c, nil
}

func (c *Client) restoreSession(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	stored, err := c.store.Load(ctx, c.account.ID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return err
	}

	var creds *domain.Credentials
	if c.accounts != nil {
		loaded, err := c.accounts.Credentials(ctx, c.account.ID)
		if err == nil {
			creds = &loaded
		}
	}
	c.sessions.Restore(stored, creds)
	c.logger.Debug("restored session", "state", c.sessions.State())
	return nil
}

// persistSession runs on every session transition, outside the manager's lock.
func (c *Client) persistSession(s domain.Session) {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := c.store.Save(ctx, c.account.ID, s); err != nil {
		c.logger.Warn("persist session failed", "state", s.State, "error", err)
		return
	}
	if c.accounts == nil {
		return
	}

	ref := domain.SessionSecretKey(c.account.ID)
	if s.State == domain.SessionLoggedOut {
		ref = ""
	}
	c.mu.Lock()
	unchanged := c.account.SessionRef == ref
	c.account.SessionRef = ref
	c.mu.Unlock()
	if unchanged {
		return
	}
	if err := c.accounts.SetSessionRef(ctx, c.account.ID, ref); err != nil {
		c.logger.Warn("save session ref failed", "error", err)
	}
}

func (c *Client) Account() domain.Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account
}

// Close persists endpoint health so cooldowns carry over to the next run.
func (c *Client) Close(ctx context.Context) error {
	if c.proxyState == nil {
		return nil
	}
	if err := c.proxyState.Save(ctx, c.account.ID, c.pool.Snapshot()); err != nil {
		return fmt.Errorf("save proxy state for %s: %w", c.account.ID, err)
	}
	return nil
}

func (c *Client) execute(ctx context.Context, idempotent bool, req domain.Request) domain.CallOutcome {
	outcome := c.dispatcher.Execute(ctx, domain.Call{Idempotent: idempotent, Request: req})
	c.observe(outcome)
	return outcome
}

func (c *Client) observe(outcome domain.CallOutcome) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if outcome.OK() {
		c.lastSuccess = now
		return
	}
	c.lastFailure = now
	c.failure = outcome.String()
}

func (c *Client) executeJSON(ctx context.Context, idempotent bool, method, path string, body any) error {
	req, err := jsonRequest(method, path, body)
	if err != nil {
		return err
	}
	if err := c.execute(ctx, idempotent, req).Err(); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}

// Session

func (c *Client) Login(ctx context.Context, creds domain.Credentials) (bool, string) {
	return c.sessions.Login(ctx, creds)
}

// LoginStored logs in with the credentials kept for the account.
func (c *Client) LoginStored(ctx context.Context) (bool, string) {
	if c.accounts == nil {
		return false, "no account store configured"
	}
	creds, err := c.accounts.Credentials(ctx, c.account.ID)
	if err != nil {
		return false, fmt.Sprintf("load credentials: %v", err)
	}
	return c.sessions.Login(ctx, creds)
}

func (c *Client) CheckLoginStatus() (bool, string) {
	return c.sessions.Status()
}

func (c *Client) RefreshAuthToken(ctx context.Context) error {
	if err := c.sessions.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh auth token: %w", err)
	}
	return nil
}

func (c *Client) Logout(ctx context.Context) bool {
	return c.sessions.Logout(ctx)
}

// ForgetSession drops the persisted session, including a recorded ban, without contacting the platform.
func (c *Client) ForgetSession(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	if err := c.store.Delete(ctx, c.account.ID); err != nil {
		return err
	}
	if c.accounts != nil {
		if err := c.accounts.SetSessionRef(ctx, c.account.ID, ""); err != nil {
			return fmt.Errorf("forget session: %w", err)
		}
	}
	return nil
}

func (c *Client) IsBanned() bool {
	return c.sessions.IsBanned()
}

func (c *Client) Session() domain.Session {
	return c.sessions.Snapshot()
}

// DetectShadowBan reports whether the account is missing from the nearby grid at its own location.
// It is informational and never changes the session state.
func (c *Client) DetectShadowBan(ctx context.Context) (bool, error) {
	if c.Account().Location == nil {
		return false, fmt.Errorf("detect shadow ban: %w", ErrNoLocation)
	}
	me, err := c.GetMyProfile(ctx)
	if err != nil {
		return false, fmt.Errorf("detect shadow ban: %w", err)
	}
	profiles, err := c.GetNearbyProfiles(ctx, NearbyQuery{})
	if err != nil {
		return false, fmt.Errorf("detect shadow ban: %w", err)
	}
	for _, profile := range profiles {
		if profile.ProfileID == me.ProfileID {
			return false, nil
		}
	}
	c.logger.Info("own profile missing from nearby grid", "profiles_seen", len(profiles))
	return true, nil
}

// Profile

func (c *Client) GetMyProfile(ctx context.Context) (domain.Profile, error) {
	return decodePayload[domain.Profile](c.execute(ctx, true, getRequest(pathMyProfile, nil)), "get my profile")
}

func (c *Client) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) error {
	if err := update.Validate(); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return c.executeJSON(ctx, true, http.MethodPut, pathMyProfile, update)
}

func (c *Client) GetProfileImages(ctx context.Context) ([]domain.ProfileImage, error) {
	envelope, err := decodePayload[imagesEnvelope](c.execute(ctx, true, getRequest(pathMyImages, nil)), "get profile images")
	return envelope.Images, err
}

func (c *Client) SetPrimaryImage(ctx context.Context, hash string) error {
	if hash == "" {
		return fmt.Errorf("set primary image: image hash is required")
	}
	return c.executeJSON(ctx, true, http.MethodPut, pathPrimaryImage, primaryImageBody{Hash: hash})
}

func (c *Client) UploadImage(ctx context.Context, image ImageUpload) (string, error) {
	outcome := c.execute(ctx, false, uploadRequest(image))
	response, err := decodePayload[uploadResponse](outcome, "upload image")
	if err != nil {
		return "", err
	}
	return response.Hash, nil
}

func uploadRequest(image ImageUpload) domain.Request {
	contentType := image.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(image.Data)
	}
	query := url.Values{}
	if image.Name != "" {
		query.Set("name", image.Name)
	}
	return domain.Request{
		Method:      http.MethodPost,
		Path:        pathMyImages,
		Query:       query,
		Body:        image.Data,
		ContentType: contentType,
	}
}

func (c *Client) DeleteImage(ctx context.Context, hash string) error {
	if hash == "" {
		return fmt.Errorf("delete image: image hash is required")
	}
	if err := c.execute(ctx, true, deleteRequest(imagePath(hash))).Err(); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

// Discovery

// SetLocation updates the platform location and records it on the account.
func (c *Client) SetLocation(ctx context.Context, location domain.Location) error {
	if err := location.Validate(); err != nil {
		return fmt.Errorf("set location: %w", err)
	}
	if err := c.executeJSON(ctx, true, http.MethodPut, pathMyLocation, location); err != nil {
		return fmt.Errorf("set location: %w", err)
	}

	c.mu.Lock()
	c.account.Location = &location
	c.mu.Unlock()
	if c.accounts != nil {
		if err := c.accounts.SetLocation(ctx, c.account.ID, location); err != nil {
			return fmt.Errorf("set location: %w", err)
		}
	}
	return nil
}

func (c *Client) GetNearbyProfiles(ctx context.Context, q NearbyQuery) ([]domain.NearbyProfile, error) {
	q = q.withDefaults()
	req := getRequest(pathNearby, nearbyQuery(q, c.Account().Location))
	envelope, err := decodePayload[nearbyEnvelope](c.execute(ctx, true, req), "get nearby profiles")
	if err != nil {
		return nil, err
	}
	if len(envelope.Profiles) > q.Limit {
		envelope.Profiles = envelope.Profiles[:q.Limit]
	}
	return envelope.Profiles, nil
}

func (c *Client) ViewProfile(ctx context.Context, id domain.ProfileID) (domain.Profile, error) {
	return decodePayload[domain.Profile](c.execute(ctx, true, getRequest(profilePath(id), nil)), "view profile")
}

func (c *Client) GetProfileViews(ctx context.Context) (domain.ProfileViews, error) {
	return decodePayload[domain.ProfileViews](c.execute(ctx, true, getRequest(pathMyViews, nil)), "get profile views")
}

// Messaging

func (c *Client) SendMessage(ctx context.Context, target domain.ProfileID, text string) error {
	req, err := sendMessageRequest(target, text)
	if err != nil {
		return err
	}
	if err := c.execute(ctx, false, req).Err(); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func sendMessageRequest(target domain.ProfileID, text string) (domain.Request, error) {
	if text == "" {
		return domain.Request{}, fmt.Errorf("send message: text is required")
	}
	return jsonRequest(http.MethodPost, pathMessages, sendMessageBody{TargetID: target, Text: text})
}

func (c *Client) GetMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("get messages: conversation id is required")
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	query := url.Values{"limit": []string{strconv.Itoa(limit)}}
	req := getRequest(conversationPath(conversationID, "messages"), query)
	envelope, err := decodePayload[messagesEnvelope](c.execute(ctx, true, req), "get messages")
	return envelope.Messages, err
}

func (c *Client) GetConversations(ctx context.Context) ([]domain.Conversation, error) {
	envelope, err := decodePayload[conversationsEnvelope](c.execute(ctx, true, getRequest(pathConversations, nil)), "get conversations")
	return envelope.Conversations, err
}

func (c *Client) SendTypingIndicator(ctx context.Context, target domain.ProfileID, typing bool) error {
	return c.executeJSON(ctx, true, http.MethodPost, pathTyping, typingBody{TargetID: target, Typing: typing})
}

func (c *Client) SendReadReceipt(ctx context.Context, conversationID, messageID string) error {
	if conversationID == "" || messageID == "" {
		return fmt.Errorf("send read receipt: conversation id and message id are required")
	}
	return c.executeJSON(ctx, true, http.MethodPost, conversationPath(conversationID, "read"), readReceiptBody{MessageID: messageID})
}

// Taps and favorites

func (c *Client) SendTap(ctx context.Context, target domain.ProfileID, tapType domain.TapType) error {
	if tapType == 0 {
		tapType = domain.TapFlame
	}
	return c.executeJSON(ctx, false, http.MethodPost, pathTaps, tapBody{TargetID: target, TapType: tapType})
}

func (c *Client) GetSentTaps(ctx context.Context) ([]domain.TapInteraction, error) {
	envelope, err := decodePayload[tapsEnvelope](c.execute(ctx, true, getRequest(pathSentTaps, nil)), "get sent taps")
	return envelope.Taps, err
}

func (c *Client) GetReceivedTaps(ctx context.Context) ([]domain.TapInteraction, error) {
	envelope, err := decodePayload[tapsEnvelope](c.execute(ctx, true, getRequest(pathReceivedTaps, nil)), "get received taps")
	return envelope.Taps, err
}

func (c *Client) AddToFavorites(ctx context.Context, id domain.ProfileID) error {
	req := domain.Request{Method: http.MethodPut, Path: favoritePath(id)}
	if err := c.execute(ctx, true, req).Err(); err != nil {
		return fmt.Errorf("add to favorites: %w", err)
	}
	return nil
}

func (c *Client) RemoveFromFavorites(ctx context.Context, id domain.ProfileID) error {
	if err := c.execute(ctx, true, deleteRequest(favoritePath(id))).Err(); err != nil {
		return fmt.Errorf("remove from favorites: %w", err)
	}
	return nil
}

// Bulk

// BulkSendMessages sends text to every recipient once. Repeated recipients are collapsed.
func (c *Client) BulkSendMessages(ctx context.Context, recipients []domain.ProfileID, text string, opts BulkOptions) (domain.BatchResult, error) {
	items := make([]domain.BatchItem, 0, len(recipients))
	seen := make(map[domain.ProfileID]struct{}, len(recipients))
	for _, recipient := range recipients {
		if _, ok := seen[recipient]; ok {
			continue
		}
		seen[recipient] = struct{}{}

		req, err := sendMessageRequest(recipient, text)
		if err != nil {
			return domain.BatchResult{}, fmt.Errorf("bulk send messages: %w", err)
		}
		items = append(items, domain.BatchItem{
			Target: domain.TargetID(strconv.FormatInt(int64(recipient), 10)),
			Call:   domain.Call{Request: req},
		})
	}
	return c.runBatch(ctx, items, opts)
}

// BulkUploadImages uploads every image once and labels outcomes with the image names.
func (c *Client) BulkUploadImages(ctx context.Context, images []ImageUpload, opts BulkOptions) (BulkReport, error) {
	items := make([]domain.BatchItem, 0, len(images))
	labels := make(map[domain.TargetID]string, len(images))
	for i, image := range images {
		target := domain.TargetID(fmt.Sprintf("image-%d", i+1))
		labels[target] = image.Name
		items = append(items, domain.BatchItem{
			Target: target,
			Call:   domain.Call{Request: uploadRequest(image)},
		})
	}

	result, err := c.runBatch(ctx, items, opts)
	if err != nil {
		return BulkReport{}, fmt.Errorf("bulk upload images: %w", err)
	}
	return BulkReport{Result: result, Labels: labels}, nil
}

func (c *Client) runBatch(ctx context.Context, items []domain.BatchItem, opts BulkOptions) (domain.BatchResult, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = c.cfg.BulkConcurrency
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = c.cfg.BulkDeadline
	}

	coordOpts := []bulk.Option{
		bulk.WithLogger(c.logger),
		bulk.WithResultHook(func(target domain.TargetID, outcome domain.CallOutcome) {
			c.observe(outcome)
			if opts.OnResult != nil {
				opts.OnResult(target, outcome)
			}
		}),
	}
	if c.bulkMetrics != nil {
		coordOpts = append(coordOpts, bulk.WithMetrics(c.bulkMetrics))
	}

	coordinator := bulk.New(c.dispatcher, c.sessions, c.clock, coordOpts...)
	return coordinator.Run(ctx, domain.OperationBatch{
		Items:       items,
		Concurrency: concurrency,
		Deadline:    deadline,
	})
}

// Proxies

// SetProxies replaces the endpoint list and records it on the account. Surviving endpoints keep their health.
func (c *Client) SetProxies(ctx context.Context, proxies []string) error {
	normalized, err := domain.NormalizeProxyAddresses(proxies)
	if err != nil {
		return fmt.Errorf("set proxies: %w", err)
	}
	if c.accounts != nil {
		if _, err := c.accounts.SetProxies(ctx, c.account.ID, normalized); err != nil {
			return fmt.Errorf("set proxies: %w", err)
		}
	}
	if err := c.pool.Configure(normalized); err != nil {
		return fmt.Errorf("set proxies: %w", err)
	}

	c.mu.Lock()
	c.account.Proxies = normalized
	c.mu.Unlock()
	return nil
}

// GetCurrentProxy returns the endpoint of the last selection. The bool is false before any call.
func (c *Client) GetCurrentProxy() (domain.ProxyEndpoint, bool) {
	return c.pool.Current()
}

func (c *Client) RotateProxy() bool {
	return c.pool.Rotate()
}

func (c *Client) GetProxyStats() domain.ProxyStats {
	return c.pool.Stats()
}

// Status and settings

func (c *Client) ConnectionStatus() domain.ConnectionStatus {
	snapshot := c.sessions.Snapshot()
	status := domain.ConnectionStatus{
		SessionState:   snapshot.State,
		SessionExpires: snapshot.ExpiresAt,
	}
	if current, ok := c.pool.Current(); ok {
		status.CurrentProxy = domain.RedactProxyAddress(current.Address)
	}

	c.mu.Lock()
	status.LastSuccessAt = c.lastSuccess
	status.LastFailureAt = c.lastFailure
	status.LastFailure = c.failure
	c.mu.Unlock()
	return status
}

func (c *Client) Status() AccountStatus {
	ok, message := c.sessions.Status()
	return AccountStatus{
		Account:    c.Account(),
		LoggedIn:   ok,
		Message:    message,
		Session:    c.sessions.Snapshot(),
		Connection: c.ConnectionStatus(),
		Proxies:    c.pool.Stats(),
	}
}

func (c *Client) GetUserSettings(ctx context.Context) (domain.UserSettings, error) {
	return decodePayload[domain.UserSettings](c.execute(ctx, true, getRequest(pathMySettings, nil)), "get user settings")
}

func (c *Client) UpdateUserSettings(ctx context.Context, update domain.SettingsUpdate) error {
	if err := update.Validate(); err != nil {
		return fmt.Errorf("update user settings: %w", err)
	}
	return c.executeJSON(ctx, true, http.MethodPut, pathMySettings, update)
}

func (c *Client) GetRewardedChats(ctx context.Context) (domain.RewardedChats, error) {
	return decodePayload[domain.RewardedChats](c.execute(ctx, true, getRequest(pathRewardedChats, nil)), "get rewarded chats")
}
