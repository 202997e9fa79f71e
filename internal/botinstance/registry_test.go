package botinstance

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/Deduh/foodbot-back/internal/domain"
	"github.com/Deduh/foodbot-back/internal/store"
	"github.com/Deduh/foodbot-back/internal/telegram"
	"github.com/Deduh/foodbot-back/internal/vault"
)

type fakeGateway struct {
	getMeErr      error
	noHandle      bool
	setWebhookErr error
	deleteErr     error

	webhookURL   string
	droppedQueue bool
	deleteCalls  int
}

func (f *fakeGateway) GetMe(_ context.Context, token string) (*telegram.BotInfo, error) {
	if f.getMeErr != nil {
		return nil, f.getMeErr
	}
	if f.noHandle {
		return &telegram.BotInfo{ID: 42, IsBot: true}, nil
	}
	return &telegram.BotInfo{ID: 42, Username: "pizza_hub_bot", IsBot: true}, nil
}

func (f *fakeGateway) SetWebhook(_ context.Context, _, url string) error {
	if f.setWebhookErr != nil {
		return f.setWebhookErr
	}
	f.webhookURL = url
	return nil
}

func (f *fakeGateway) DeleteWebhook(_ context.Context, _ string, dropPending bool) error {
	f.deleteCalls++
	f.droppedQueue = dropPending
	return f.deleteErr
}

type fakeInstanceStore struct {
	rows      map[string]*store.BotInstance
	createErr error
	deleted   []string
}

func newFakeInstanceStore() *fakeInstanceStore {
	return &fakeInstanceStore{rows: map[string]*store.BotInstance{}}
}

func (f *fakeInstanceStore) Create(_ context.Context, p store.CreateBotInstanceParams) (*store.BotInstance, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	b := &store.BotInstance{
		ID:             "inst-1",
		RestaurantID:   p.RestaurantID,
		EncryptedToken: p.EncryptedToken,
		BotUsername:    p.BotUsername,
	}
	f.rows[b.ID] = b
	return b, nil
}

func (f *fakeInstanceStore) Get(_ context.Context, id string) (*store.BotInstance, error) {
	if b, ok := f.rows[id]; ok {
		return b, nil
	}
	return nil, domain.NotFoundf("bot instance %s", id)
}

func (f *fakeInstanceStore) GetByRestaurant(_ context.Context, restaurantID string) (*store.BotInstance, error) {
	for _, b := range f.rows {
		if b.RestaurantID == restaurantID {
			return b, nil
		}
	}
	return nil, domain.NotFoundf("bot instance for restaurant %s", restaurantID)
}

func (f *fakeInstanceStore) SetFlags(_ context.Context, id string, active, webhookSet bool) (*store.BotInstance, error) {
	b, ok := f.rows[id]
	if !ok {
		return nil, domain.NotFoundf("bot instance %s", id)
	}
	b.IsActive = active
	b.IsWebhookSet = webhookSet
	return b, nil
}

func (f *fakeInstanceStore) Delete(_ context.Context, id string) error {
	if _, ok := f.rows[id]; !ok {
		return domain.NotFoundf("bot instance %s", id)
	}
	delete(f.rows, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeRestaurants struct{ known map[string]bool }

func (f *fakeRestaurants) Get(_ context.Context, id string) (*store.Restaurant, error) {
	if f.known[id] {
		return &store.Restaurant{ID: id, IsActive: true}, nil
	}
	return nil, domain.NotFoundf("restaurant %s", id)
}

func testVault(t *testing.T) *vault.Vault {
	t.Helper()
	key, _ := hex.DecodeString(strings.Repeat("ab", 32))
	v, err := vault.New(key)
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}
	return v
}

type fakeWorkers struct {
	started []string
	stopped []string
}

func (f *fakeWorkers) StartWorker(_ context.Context, inst store.BotInstance) error {
	f.started = append(f.started, inst.ID)
	return nil
}

func (f *fakeWorkers) StopWorker(instanceID string) error {
	f.stopped = append(f.stopped, instanceID)
	return nil
}

func testRegistry(t *testing.T, gw *fakeGateway) (*Registry, *fakeInstanceStore, *fakeWorkers) {
	t.Helper()
	instances := newFakeInstanceStore()
	restaurants := &fakeRestaurants{known: map[string]bool{"r1": true}}
	workers := &fakeWorkers{}
	return NewRegistry(gw, testVault(t), instances, restaurants, workers, "https://bots.example.com/"), instances, workers
}

const token = "7000000001:AAEexampletokenexampletokenexample"

func TestProvisionHappyPath(t *testing.T) {
	gw := &fakeGateway{}
	reg, instances, _ := testRegistry(t, gw)

	res, err := reg.Provision(context.Background(), "r1", token)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if !res.WebhookSet || res.Warning != "" {
		t.Errorf("result = %+v, want full success", res)
	}
	if res.Instance.BotUsername != "pizza_hub_bot" {
		t.Errorf("username = %s", res.Instance.BotUsername)
	}
	if !res.Instance.IsActive || !res.Instance.IsWebhookSet {
		t.Errorf("flags not set: %+v", res.Instance)
	}
	if want := "https://bots.example.com/webhook/inst-1"; gw.webhookURL != want {
		t.Errorf("webhook url = %s, want %s", gw.webhookURL, want)
	}

	row := instances.rows["inst-1"]
	if row.EncryptedToken == token {
		t.Error("token stored in plaintext")
	}
	if strings.Contains(row.EncryptedToken, token) {
		t.Error("plaintext token embedded in stored credential")
	}
}

func TestProvisionRejectedTokenNeverPersists(t *testing.T) {
	gw := &fakeGateway{getMeErr: &domain.ProviderError{Method: "getMe", Code: 401, Description: "Unauthorized"}}
	reg, instances, _ := testRegistry(t, gw)

	_, err := reg.Provision(context.Background(), "r1", "bad-token")
	if !errors.Is(err, domain.ErrInvalidCredential) {
		t.Errorf("err = %v, want ErrInvalidCredential", err)
	}
	if len(instances.rows) != 0 {
		t.Error("rejected credential must not be stored")
	}
}

func TestProvisionWithoutHandleIsRejected(t *testing.T) {
	gw := &fakeGateway{noHandle: true}
	reg, instances, workers := testRegistry(t, gw)

	_, err := reg.Provision(context.Background(), "r1", token)
	if !errors.Is(err, domain.ErrInvalidCredential) {
		t.Errorf("err = %v, want ErrInvalidCredential", err)
	}
	if len(instances.rows) != 0 {
		t.Error("handle-less credential must not be stored")
	}
	if len(workers.started) != 0 {
		t.Error("no worker expected for a rejected credential")
	}
}

func TestProvisionUnknownRestaurant(t *testing.T) {
	gw := &fakeGateway{}
	reg, instances, _ := testRegistry(t, gw)

	_, err := reg.Provision(context.Background(), "nope", token)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if len(instances.rows) != 0 {
		t.Error("no row expected")
	}
}

func TestProvisionWebhookFailureIsPartialSuccess(t *testing.T) {
	gw := &fakeGateway{setWebhookErr: &domain.ProviderError{Method: "setWebhook", Description: "bad webhook: HTTPS url must be provided"}}
	reg, instances, _ := testRegistry(t, gw)

	res, err := reg.Provision(context.Background(), "r1", token)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if res.WebhookSet {
		t.Error("WebhookSet should be false")
	}
	if res.Warning == "" {
		t.Error("partial success must carry a warning")
	}
	row := instances.rows["inst-1"]
	if row == nil {
		t.Fatal("row must be kept on webhook failure")
	}
	if row.IsActive || row.IsWebhookSet {
		t.Errorf("flags must stay false: %+v", row)
	}
}

func TestProvisionDuplicateSurfacesConflict(t *testing.T) {
	gw := &fakeGateway{}
	reg, instances, _ := testRegistry(t, gw)
	instances.createErr = domain.Conflictf("restaurant r1 already has a bot")

	_, err := reg.Provision(context.Background(), "r1", token)
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestProvisionBringsWorkerUp(t *testing.T) {
	gw := &fakeGateway{}
	reg, _, workers := testRegistry(t, gw)

	if _, err := reg.Provision(context.Background(), "r1", token); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if len(workers.started) != 1 || workers.started[0] != "inst-1" {
		t.Errorf("started workers = %v, want [inst-1]", workers.started)
	}
}

func TestProvisionPartialSuccessStartsNoWorker(t *testing.T) {
	gw := &fakeGateway{setWebhookErr: &domain.ProviderError{Method: "setWebhook", Description: "bad webhook"}}
	reg, _, workers := testRegistry(t, gw)

	if _, err := reg.Provision(context.Background(), "r1", token); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if len(workers.started) != 0 {
		t.Errorf("started workers = %v, want none for an unregistered webhook", workers.started)
	}
}

func TestRemoveDropsWebhookAndRow(t *testing.T) {
	gw := &fakeGateway{}
	reg, instances, workers := testRegistry(t, gw)
	if _, err := reg.Provision(context.Background(), "r1", token); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	if err := reg.Remove(context.Background(), "inst-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if gw.deleteCalls != 1 || !gw.droppedQueue {
		t.Errorf("deleteWebhook calls=%d dropPending=%v", gw.deleteCalls, gw.droppedQueue)
	}
	if len(instances.rows) != 0 {
		t.Error("row not deleted")
	}
	if len(workers.stopped) != 1 || workers.stopped[0] != "inst-1" {
		t.Errorf("stopped workers = %v, want [inst-1]", workers.stopped)
	}
}

func TestRemoveSurvivesWebhookTeardownFailure(t *testing.T) {
	gw := &fakeGateway{}
	reg, instances, _ := testRegistry(t, gw)
	if _, err := reg.Provision(context.Background(), "r1", token); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	gw.deleteErr = &domain.ProviderError{Method: "deleteWebhook", Code: 401, Description: "Unauthorized"}

	if err := reg.Remove(context.Background(), "inst-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(instances.rows) != 0 {
		t.Error("dead token must still be removable")
	}
}

func TestRemoveSurvivesCorruptCredential(t *testing.T) {
	gw := &fakeGateway{}
	reg, instances, _ := testRegistry(t, gw)
	if _, err := reg.Provision(context.Background(), "r1", token); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	instances.rows["inst-1"].EncryptedToken = "not:real:ciphertext"

	if err := reg.Remove(context.Background(), "inst-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if gw.deleteCalls != 0 {
		t.Error("no webhook call expected without a usable token")
	}
	if len(instances.rows) != 0 {
		t.Error("row not deleted")
	}
}

func TestGetViewsCarryNoCredential(t *testing.T) {
	gw := &fakeGateway{}
	reg, _, _ := testRegistry(t, gw)
	if _, err := reg.Provision(context.Background(), "r1", token); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	byID, err := reg.Get(context.Background(), "inst-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	byRestaurant, err := reg.GetByRestaurant(context.Background(), "r1")
	if err != nil {
		t.Fatalf("GetByRestaurant: %v", err)
	}
	if byID.ID != byRestaurant.ID {
		t.Errorf("views disagree: %s vs %s", byID.ID, byRestaurant.ID)
	}
}
