package notify

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/Deduh/foodbot-back/internal/domain"
	"github.com/Deduh/foodbot-back/internal/store"
	"github.com/Deduh/foodbot-back/internal/telegram"
)

type fakeInstances struct{ byRestaurant map[string]*store.BotInstance }

func (f *fakeInstances) GetByRestaurant(_ context.Context, restaurantID string) (*store.BotInstance, error) {
	if b, ok := f.byRestaurant[restaurantID]; ok {
		return b, nil
	}
	return nil, domain.NotFoundf("bot instance for restaurant %s", restaurantID)
}

type fakeOwners struct {
	owners map[string][]store.User
	err    error
}

func (f *fakeOwners) Owners(_ context.Context, restaurantID string) ([]store.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.owners[restaurantID], nil
}

type sentMessage struct {
	token string
	req   telegram.SendMessageRequest
}

type fakeSender struct {
	sent    []sentMessage
	failFor map[int64]error
}

func (f *fakeSender) SendMessage(_ context.Context, token string, req telegram.SendMessageRequest) (*telegram.Message, error) {
	if err, ok := f.failFor[req.ChatID]; ok {
		return nil, err
	}
	f.sent = append(f.sent, sentMessage{token: token, req: req})
	return &telegram.Message{MessageID: len(f.sent)}, nil
}

type passVault struct{}

func (passVault) Decrypt(stored string) (string, error) {
	return strings.TrimPrefix(stored, "enc:"), nil
}

type fakeRunner struct{ running map[string]bool }

func (f *fakeRunner) Running(id string) bool { return f.running[id] }

func owner(id string, chatID int64) store.User {
	u := store.User{ID: id, Role: store.RoleRestaurantOwner}
	if chatID != 0 {
		u.TelegramChatID = sql.NullInt64{Int64: chatID, Valid: true}
	}
	return u
}

func testOrder() store.Order {
	return store.Order{
		ID:           "6f1c9f2a-0d3b-4a3f-9a1e-2b8c7d6e5f40",
		RestaurantID: "r1",
		Status:       store.StatusPending,
		TotalPrice:   2750,
		CustomerName: sql.NullString{String: "Joe (call first!)", Valid: true},
	}
}

func testDispatcher(owners *fakeOwners, sender *fakeSender) *Dispatcher {
	instances := &fakeInstances{byRestaurant: map[string]*store.BotInstance{
		"r1": {ID: "inst-1", RestaurantID: "r1", EncryptedToken: "enc:tok-1", IsActive: true},
	}}
	runner := &fakeRunner{running: map[string]bool{"inst-1": true}}
	return NewDispatcher(instances, owners, sender, passVault{}, runner, nil)
}

func TestNotifyAlertsEveryReachableOwner(t *testing.T) {
	owners := &fakeOwners{owners: map[string][]store.User{
		"r1": {owner("u1", 11), owner("u2", 0), owner("u3", 33)},
	}}
	sender := &fakeSender{}
	d := testDispatcher(owners, sender)

	d.Notify(context.Background(), testOrder())

	if len(sender.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sender.sent))
	}
	for _, m := range sender.sent {
		if m.token != "tok-1" {
			t.Errorf("token = %s", m.token)
		}
		if m.req.ParseMode != "MarkdownV2" {
			t.Errorf("parse mode = %s", m.req.ParseMode)
		}
	}
	if sender.sent[0].req.ChatID != 11 || sender.sent[1].req.ChatID != 33 {
		t.Errorf("chat ids = %d, %d", sender.sent[0].req.ChatID, sender.sent[1].req.ChatID)
	}
}

func TestNotifyEscapesCustomerFields(t *testing.T) {
	owners := &fakeOwners{owners: map[string][]store.User{"r1": {owner("u1", 11)}}}
	sender := &fakeSender{}
	d := testDispatcher(owners, sender)

	d.Notify(context.Background(), testOrder())

	text := sender.sent[0].req.Text
	if !strings.Contains(text, `Joe \(call first\!\)`) {
		t.Errorf("customer name not escaped: %q", text)
	}
	if !strings.Contains(text, `27\.50`) {
		t.Errorf("total missing or unescaped: %q", text)
	}
}

func TestNotifyButtonsCarryOrderID(t *testing.T) {
	owners := &fakeOwners{owners: map[string][]store.User{"r1": {owner("u1", 11)}}}
	sender := &fakeSender{}
	d := testDispatcher(owners, sender)
	order := testOrder()

	d.Notify(context.Background(), order)

	markup := sender.sent[0].req.ReplyMarkup
	if markup == nil || len(markup.InlineKeyboard) != 1 || len(markup.InlineKeyboard[0]) != 2 {
		t.Fatalf("markup = %+v", markup)
	}
	accept := markup.InlineKeyboard[0][0]
	decline := markup.InlineKeyboard[0][1]
	if accept.CallbackData != "\forder_accept|"+order.ID {
		t.Errorf("accept data = %q", accept.CallbackData)
	}
	if decline.CallbackData != "\forder_decline|"+order.ID {
		t.Errorf("decline data = %q", decline.CallbackData)
	}
}

func TestNotifyOneFailureDoesNotBlockOthers(t *testing.T) {
	owners := &fakeOwners{owners: map[string][]store.User{
		"r1": {owner("u1", 11), owner("u2", 22)},
	}}
	sender := &fakeSender{failFor: map[int64]error{
		11: &domain.ProviderError{Method: "sendMessage", Code: 403, Description: "bot was blocked by the user"},
	}}
	d := testDispatcher(owners, sender)

	d.Notify(context.Background(), testOrder())

	if len(sender.sent) != 1 || sender.sent[0].req.ChatID != 22 {
		t.Fatalf("sent = %+v", sender.sent)
	}
}

func TestNotifySkipsWhenNoInstance(t *testing.T) {
	owners := &fakeOwners{owners: map[string][]store.User{"r1": {owner("u1", 11)}}}
	sender := &fakeSender{}
	d := testDispatcher(owners, sender)

	order := testOrder()
	order.RestaurantID = "r-without-bot"
	d.Notify(context.Background(), order)

	if len(sender.sent) != 0 {
		t.Errorf("sent = %+v, want none", sender.sent)
	}
}

func TestNotifySkipsUnsupervisedInstance(t *testing.T) {
	owners := &fakeOwners{owners: map[string][]store.User{"r1": {owner("u1", 11)}}}
	sender := &fakeSender{}
	instances := &fakeInstances{byRestaurant: map[string]*store.BotInstance{
		"r1": {ID: "inst-1", RestaurantID: "r1", EncryptedToken: "enc:tok-1"},
	}}
	runner := &fakeRunner{running: map[string]bool{}}
	d := NewDispatcher(instances, owners, sender, passVault{}, runner, nil)

	d.Notify(context.Background(), testOrder())

	if len(sender.sent) != 0 {
		t.Errorf("sent = %+v, want none", sender.sent)
	}
}
