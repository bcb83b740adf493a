package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rosegold/market-service/internal/auth"
	"rosegold/market-service/internal/chat"
	"rosegold/market-service/internal/models"
	"rosegold/market-service/internal/service"
	"rosegold/market-service/internal/storage"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type stubChatService struct {
	unread []models.UnreadMarker
	names  map[int64]string
}

func (s *stubChatService) SendMessage(_ context.Context, _, _ int64, _ string) (*models.EnrichedMessage, error) {
	return nil, nil
}

func (s *stubChatService) ListUnread(_ context.Context, _ int64) ([]models.UnreadMarker, error) {
	return s.unread, nil
}

func (s *stubChatService) ClearUnread(_ context.Context, _, _ int64) (int64, error) {
	return int64(len(s.unread)), nil
}

func (s *stubChatService) GetHistory(_ context.Context, _, _ int64) ([]models.EnrichedMessage, error) {
	return nil, nil
}

func (s *stubChatService) LatestPerThread(_ context.Context, _ int64) ([]models.ThreadPreview, error) {
	return nil, nil
}

func (s *stubChatService) ResolveDisplayName(_ context.Context, accountID int64) (string, error) {
	return s.names[accountID], nil
}

type stubItemService struct {
	items   map[int64][]models.Item
	deleted []int64
}

func (s *stubItemService) PostItem(_ context.Context, _ *models.Item) error { return nil }

func (s *stubItemService) GetItem(_ context.Context, _ int64) (*models.Item, error) {
	return nil, nil
}

func (s *stubItemService) GetItemsForAccount(_ context.Context, accountID int64) ([]models.Item, error) {
	return s.items[accountID], nil
}

func (s *stubItemService) EditItem(_ context.Context, _ int64, _ *models.Item) error { return nil }

func (s *stubItemService) EditCategories(_ context.Context, _, _ int64, _ []int64) error {
	return nil
}

func (s *stubItemService) DeleteItems(_ context.Context, _ int64, itemIDs []int64) (int64, error) {
	s.deleted = append(s.deleted, itemIDs...)
	return int64(len(itemIDs)), nil
}

func (s *stubItemService) MarkPickedUp(_ context.Context, _, _ int64) error { return nil }

type stubAccountService struct {
	accounts map[int64]*models.Account
	deleted  []int64
}

func (s *stubAccountService) Register(_ context.Context, _ service.Registration, _ string) error {
	return nil
}

func (s *stubAccountService) ConfirmAccount(_ context.Context, _, _ string) (*models.Account, error) {
	return nil, nil
}

func (s *stubAccountService) Login(_ context.Context, _, _ string) (*service.LoginResult, error) {
	return nil, nil
}

func (s *stubAccountService) Refresh(_ context.Context, _ string) (string, error) { return "", nil }

func (s *stubAccountService) UsernameAvailable(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (s *stubAccountService) ChangeUsername(_ context.Context, _, _ string) error { return nil }

func (s *stubAccountService) ChangeAvatar(_ context.Context, _ int64, _ string) error { return nil }

func (s *stubAccountService) GetAccount(_ context.Context, accountID int64) (*models.Account, error) {
	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, service.ErrNotFound
	}
	return acct, nil
}

func (s *stubAccountService) DeleteAccount(_ context.Context, accountID int64) error {
	s.deleted = append(s.deleted, accountID)
	return nil
}

func (s *stubAccountService) ReportUser(_ context.Context, _, _ int64, _ string) error { return nil }

func (s *stubAccountService) RegisterDevice(_ context.Context, _ int64, _ string) error { return nil }

func (s *stubAccountService) EmailSupport(_ context.Context, _, _, _ string) error { return nil }

func (s *stubAccountService) ForgotPassword(_ context.Context, _ string) error { return nil }

func (s *stubAccountService) CheckResetCode(_ context.Context, _, _ string) error { return nil }

func (s *stubAccountService) ResetPassword(_ context.Context, _, _, _ string) error { return nil }

func testServer(t *testing.T) (*Server, *auth.TokenManager) {
	t.Helper()
	srv, tokens, _ := testServerWithStubs(t)
	return srv, tokens
}

func testServerWithStubs(t *testing.T) (*Server, *auth.TokenManager, *storage.ImageStore) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	tokens := auth.NewTokenManager("access", "refresh", time.Hour, 7*time.Hour)
	images := storage.NewImageStore(t.TempDir())

	srv := New(Deps{
		Accounts: &stubAccountService{
			accounts: map[int64]*models.Account{
				1: {ID: 1, Username: "alice", Address: "12 Rose St", Zipcode: "97201"},
			},
		},
		Items: &stubItemService{
			items: map[int64][]models.Item{
				1: {{ID: 5, AccountID: 1, Name: "lamp", Categories: []int64{2, 7}}},
			},
		},
		Chat: &stubChatService{
			unread: []models.UnreadMarker{{MessageID: 9, SenderID: 1, RecipientID: 2}},
			names:  map[int64]string{1: "alice"},
		},
		Registry:    chat.NewRegistry(),
		Tokens:      tokens,
		Images:      images,
		PushTimeout: time.Second,
		SendBuffer:  4,
		Logger:      logger,
	})
	return srv, tokens, images
}

func TestRequireAuth_RejectsMissingOrBadToken(t *testing.T) {
	req := require.New(t)
	srv, _ := testServer(t)

	for _, header := range []string{"", "Bearer ", "Bearer garbage", "garbage"} {
		r := httptest.NewRequest(http.MethodGet, "/chat-handler/get-unread-messages", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		resp, err := srv.App().Test(r)
		req.NoError(err)
		req.Equal(http.StatusForbidden, resp.StatusCode)
	}
}

func TestRequireAuth_AcceptsValidToken(t *testing.T) {
	req := require.New(t)
	srv, tokens := testServer(t)

	access, _, err := tokens.GenerateTokens(2, "bob")
	req.NoError(err)

	r := httptest.NewRequest(http.MethodGet, "/chat-handler/get-unread-messages", nil)
	r.Header.Set("Authorization", "Bearer "+access)

	resp, err := srv.App().Test(r)
	req.NoError(err)
	req.Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		Data []models.UnreadMarker `json:"data"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Len(body.Data, 1)
	req.Equal(int64(9), body.Data[0].MessageID)
}

func TestItemsForAccount_ListsAnotherSellersItems(t *testing.T) {
	req := require.New(t)
	srv, tokens, _ := testServerWithStubs(t)

	// Bob browses Alice's listings.
	access, _, err := tokens.GenerateTokens(2, "bob")
	req.NoError(err)

	r := httptest.NewRequest(http.MethodGet, "/users/items?accountId=1", nil)
	r.Header.Set("Authorization", "Bearer "+access)

	resp, err := srv.App().Test(r)
	req.NoError(err)
	req.Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		Data []models.Item `json:"data"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Len(body.Data, 1)
	req.Equal("lamp", body.Data[0].Name)
	req.Equal([]int64{2, 7}, body.Data[0].Categories)

	r = httptest.NewRequest(http.MethodGet, "/users/items", nil)
	r.Header.Set("Authorization", "Bearer "+access)

	resp, err = srv.App().Test(r)
	req.NoError(err)
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestAddressDetails(t *testing.T) {
	req := require.New(t)
	srv, tokens, _ := testServerWithStubs(t)

	access, _, err := tokens.GenerateTokens(2, "bob")
	req.NoError(err)

	r := httptest.NewRequest(http.MethodGet, "/users/address-details?accountId=1", nil)
	r.Header.Set("Authorization", "Bearer "+access)

	resp, err := srv.App().Test(r)
	req.NoError(err)
	req.Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			Address string `json:"address"`
			Zipcode string `json:"zipcode"`
		} `json:"data"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Equal("12 Rose St", body.Data.Address)
	req.Equal("97201", body.Data.Zipcode)

	r = httptest.NewRequest(http.MethodGet, "/users/address-details?accountId=99", nil)
	r.Header.Set("Authorization", "Bearer "+access)

	resp, err = srv.App().Test(r)
	req.NoError(err)
	req.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestDeleteUser_RemovesStoredImages(t *testing.T) {
	req := require.New(t)
	srv, tokens, images := testServerWithStubs(t)

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	_, err := images.SaveAvatar("alice", jpeg)
	req.NoError(err)
	_, err = images.SaveItemImage("alice", "lamp", jpeg)
	req.NoError(err)

	access, _, err := tokens.GenerateTokens(1, "alice")
	req.NoError(err)

	r := httptest.NewRequest(http.MethodDelete, "/users/delete-user", nil)
	r.Header.Set("Authorization", "Bearer "+access)

	resp, err := srv.App().Test(r)
	req.NoError(err)
	req.Equal(http.StatusOK, resp.StatusCode)

	paths, err := images.ItemImagePaths("alice", "lamp")
	req.NoError(err)
	req.Empty(paths)
}

func TestDeleteItem_SingleItemRoute(t *testing.T) {
	req := require.New(t)
	srv, tokens, images := testServerWithStubs(t)

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	_, err := images.SaveItemImage("alice", "lamp", jpeg)
	req.NoError(err)

	access, _, err := tokens.GenerateTokens(1, "alice")
	req.NoError(err)

	r := httptest.NewRequest(http.MethodDelete, "/item-handler/delete-item?itemId=5&itemName=lamp", nil)
	r.Header.Set("Authorization", "Bearer "+access)

	resp, err := srv.App().Test(r)
	req.NoError(err)
	req.Equal(http.StatusOK, resp.StatusCode)

	paths, err := images.ItemImagePaths("alice", "lamp")
	req.NoError(err)
	req.Empty(paths)
}

func TestGetUsername_RequiresNumericID(t *testing.T) {
	req := require.New(t)
	srv, tokens := testServer(t)

	access, _, err := tokens.GenerateTokens(2, "bob")
	req.NoError(err)

	r := httptest.NewRequest(http.MethodGet, "/chat-handler/get-username?accountId=abc", nil)
	r.Header.Set("Authorization", "Bearer "+access)

	resp, err := srv.App().Test(r)
	req.NoError(err)
	req.Equal(http.StatusBadRequest, resp.StatusCode)

	r = httptest.NewRequest(http.MethodGet, "/chat-handler/get-username?accountId=1", nil)
	r.Header.Set("Authorization", "Bearer "+access)

	resp, err = srv.App().Test(r)
	req.NoError(err)
	req.Equal(http.StatusOK, resp.StatusCode)
}
