package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Deduh/foodbot-back/internal/domain"
	"github.com/Deduh/foodbot-back/internal/store"
	tele "gopkg.in/telebot.v4"
)

type plainVault struct{}

func (plainVault) Decrypt(stored string) (string, error) {
	if stored == "corrupt" {
		return "", domain.ErrCrypto
	}
	return stored, nil
}

type fakeLister struct{ instances []store.BotInstance }

func (f *fakeLister) ListActive(_ context.Context) ([]store.BotInstance, error) {
	return f.instances, nil
}

func offlineBot(_ string, poller tele.Poller) (*tele.Bot, error) {
	return tele.NewBot(tele.Settings{Offline: true, Poller: poller})
}

func instance(id, restaurantID string) store.BotInstance {
	return store.BotInstance{
		ID:             id,
		RestaurantID:   restaurantID,
		EncryptedToken: "token-" + id,
		IsActive:       true,
		IsWebhookSet:   true,
	}
}

func textUpdate(id int, text string) tele.Update {
	return tele.Update{
		ID: id,
		Message: &tele.Message{
			ID:     id,
			Text:   text,
			Chat:   &tele.Chat{ID: 100},
			Sender: &tele.User{ID: 200},
		},
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestDispatchReachesWorkerHandler(t *testing.T) {
	got := make(chan string, 1)
	sup := New(Options{
		Vault:  plainVault{},
		Policy: RestartPolicy{MaxRestarts: 1, BaseDelay: time.Millisecond},
		NewBot: offlineBot,
		Wire: func(bot *tele.Bot, _ store.BotInstance) {
			bot.Handle(tele.OnText, func(c tele.Context) error {
				got <- c.Text()
				return nil
			})
		},
	})
	defer sup.Shutdown()

	if err := sup.StartWorker(context.Background(), instance("i1", "r1")); err != nil {
		t.Fatalf("StartWorker: %v", err)
	}
	if err := sup.Dispatch("i1", textUpdate(1, "hello")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	select {
	case text := <-got:
		if text != "hello" {
			t.Errorf("text = %q", text)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("update never reached the handler")
	}
}

func TestDispatchUnknownInstance(t *testing.T) {
	sup := New(Options{Vault: plainVault{}, NewBot: offlineBot})
	defer sup.Shutdown()

	err := sup.Dispatch("ghost", textUpdate(1, "hi"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStoppingOneWorkerLeavesSiblingsRunning(t *testing.T) {
	got := make(chan string, 4)
	sup := New(Options{
		Vault:  plainVault{},
		Policy: RestartPolicy{MaxRestarts: 1, BaseDelay: time.Millisecond},
		NewBot: offlineBot,
		Wire: func(bot *tele.Bot, inst store.BotInstance) {
			bot.Handle(tele.OnText, func(c tele.Context) error {
				got <- inst.ID + ":" + c.Text()
				return nil
			})
		},
	})
	defer sup.Shutdown()

	for _, inst := range []store.BotInstance{instance("i1", "r1"), instance("i2", "r2")} {
		if err := sup.StartWorker(context.Background(), inst); err != nil {
			t.Fatalf("StartWorker %s: %v", inst.ID, err)
		}
	}

	if err := sup.StopWorker("i1"); err != nil {
		t.Fatalf("StopWorker: %v", err)
	}
	if err := sup.Dispatch("i1", textUpdate(1, "hi")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("dispatch to stopped worker: %v, want ErrNotFound", err)
	}

	if err := sup.Dispatch("i2", textUpdate(2, "ping")); err != nil {
		t.Fatalf("Dispatch i2: %v", err)
	}
	select {
	case msg := <-got:
		if msg != "i2:ping" {
			t.Errorf("msg = %q", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("sibling worker stopped processing")
	}
}

func TestWorkerRestartsAfterTransientFailure(t *testing.T) {
	var builds atomic.Int32
	sup := New(Options{
		Vault:  plainVault{},
		Policy: RestartPolicy{MaxRestarts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond},
		NewBot: func(token string, poller tele.Poller) (*tele.Bot, error) {
			if builds.Add(1) <= 2 {
				return nil, fmt.Errorf("transient provider outage")
			}
			return offlineBot(token, poller)
		},
	})
	defer sup.Shutdown()

	if err := sup.StartWorker(context.Background(), instance("i1", "r1")); err != nil {
		t.Fatalf("StartWorker: %v", err)
	}
	waitFor(t, func() bool { return builds.Load() >= 3 }, "bot never rebuilt")
	waitFor(t, func() bool { return sup.Running("i1") }, "worker not running after recovery")
}

func TestWorkerGivesUpAfterRestartBudget(t *testing.T) {
	sup := New(Options{
		Vault:  plainVault{},
		Policy: RestartPolicy{MaxRestarts: 2, BaseDelay: time.Millisecond},
		NewBot: func(string, tele.Poller) (*tele.Bot, error) {
			return nil, fmt.Errorf("hard failure")
		},
	})
	defer sup.Shutdown()

	if err := sup.StartWorker(context.Background(), instance("i1", "r1")); err != nil {
		t.Fatalf("StartWorker: %v", err)
	}
	waitFor(t, func() bool { return sup.WorkerCount() == 0 }, "worker never left the table")
	if sup.Running("i1") {
		t.Error("worker still reported running")
	}
}

func TestDuplicateWorkerRejected(t *testing.T) {
	sup := New(Options{Vault: plainVault{}, NewBot: offlineBot, Policy: RestartPolicy{MaxRestarts: 1, BaseDelay: time.Millisecond}})
	defer sup.Shutdown()

	if err := sup.StartWorker(context.Background(), instance("i1", "r1")); err != nil {
		t.Fatalf("StartWorker: %v", err)
	}
	if err := sup.StartWorker(context.Background(), instance("i1", "r1")); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestStartSkipsUnrecoverableCredentials(t *testing.T) {
	bad := instance("i-bad", "r2")
	bad.EncryptedToken = "corrupt"
	lister := &fakeLister{instances: []store.BotInstance{instance("i1", "r1"), bad}}

	sup := New(Options{
		Instances: lister,
		Vault:     plainVault{},
		Policy:    RestartPolicy{MaxRestarts: 1, BaseDelay: time.Millisecond},
		NewBot:    offlineBot,
	})
	defer sup.Shutdown()

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !sup.Running("i1") || sup.Running("i-bad") {
		t.Errorf("workers: i1=%v i-bad=%v", sup.Running("i1"), sup.Running("i-bad"))
	}
}

func TestRestartPolicyDelay(t *testing.T) {
	p := RestartPolicy{BaseDelay: 500 * time.Millisecond, MaxDelay: 3 * time.Second}
	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		3 * time.Second,
		3 * time.Second,
	}
	for n, w := range want {
		if got := p.Delay(n); got != w {
			t.Errorf("Delay(%d) = %v, want %v", n, got, w)
		}
	}
}
