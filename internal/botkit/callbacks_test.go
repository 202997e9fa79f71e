package botkit

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func cbContext(t *testing.T, data string) tele.Context {
	t.Helper()
	bot := &tele.Bot{}
	return bot.NewContext(tele.Update{Callback: &tele.Callback{Data: data}})
}

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		name    string
		data    string
		unique  string
		payload string
	}{
		{"with payload", "\forder_accept|6f1c9f2a-0d3b-4a3f-9a1e-2b8c7d6e5f40", "order_accept", "6f1c9f2a-0d3b-4a3f-9a1e-2b8c7d6e5f40"},
		{"no payload", "\fmenu_main", "menu_main", ""},
		{"empty payload", "\fmenu_main|", "menu_main", ""},
		{"payload with separator", "\fpick|a|b", "pick", "a|b"},
		{"no prefix", "raw|x", "raw", "x"},
		{"empty", "", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			unique, payload := ParseCallbackData(&tele.Callback{Data: tc.data})
			if unique != tc.unique || payload != tc.payload {
				t.Errorf("got (%q, %q), want (%q, %q)", unique, payload, tc.unique, tc.payload)
			}
		})
	}
}

func TestParseCallbackDataNil(t *testing.T) {
	unique, payload := ParseCallbackData(nil)
	if unique != "" || payload != "" {
		t.Errorf("got (%q, %q), want empty", unique, payload)
	}
}

func TestPayloadID(t *testing.T) {
	c := cbContext(t, "\forder_accept|6f1c9f2a-0d3b-4a3f-9a1e-2b8c7d6e5f40")
	id, err := PayloadID(c)
	if err != nil {
		t.Fatalf("PayloadID: %v", err)
	}
	if id != "6f1c9f2a-0d3b-4a3f-9a1e-2b8c7d6e5f40" {
		t.Errorf("id = %s", id)
	}
}

func TestPayloadIDRejectsGarbage(t *testing.T) {
	for _, data := range []string{
		"\forder_accept|1 OR 1=1",
		"\forder_accept|",
		"\forder_accept|not-a-uuid",
	} {
		if _, err := PayloadID(cbContext(t, data)); err == nil {
			t.Errorf("payload %q accepted, want error", data)
		}
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	got := EscapeMarkdownV2("Joe's Pizza (best!) v2.0 a_b")
	want := `Joe's Pizza \(best\!\) v2\.0 a\_b`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRegistryDuplicateCallbackRejected(t *testing.T) {
	reg := NewRegistry()
	h := func(tele.Context) error { return nil }
	if err := reg.RegisterCallback("order_accept", h); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := reg.RegisterCallback("order_accept", h); err == nil {
		t.Error("duplicate registration must fail")
	}
	if got := reg.ListCallbacks(); len(got) != 1 {
		t.Errorf("callbacks = %v", got)
	}
}

func TestRegistryListCommandsFiltersHidden(t *testing.T) {
	reg := NewRegistry()
	h := func(tele.Context) error { return nil }
	reg.RegisterCommand("/start", Command{Handler: h, Description: "Open the menu"})
	reg.RegisterCommand("/whoami", Command{Handler: h, Description: "Show identity", Hidden: true})
	reg.RegisterCommand("/users", Command{Handler: h, Description: "Manage users", AdminOnly: true})

	visible := reg.ListCommands(true)
	if len(visible) != 1 || visible[0].Text != "/start" {
		t.Errorf("visible = %+v", visible)
	}
	if all := reg.ListCommands(false); len(all) != 3 {
		t.Errorf("all = %+v", all)
	}
}
