package supervisor

import (
	tele "gopkg.in/telebot.v4"
)

// feedPoller is a tele.Poller fed by the webhook server instead of the
// provider. Updates pushed into its channel are handed to the bot's
// dispatch loop unchanged.
type feedPoller struct {
	updates chan tele.Update
}

func newFeedPoller(buffer int) *feedPoller {
	return &feedPoller{updates: make(chan tele.Update, buffer)}
}

func (p *feedPoller) Poll(_ *tele.Bot, dest chan tele.Update, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case u := <-p.updates:
			select {
			case dest <- u:
			case <-stop:
				return
			}
		}
	}
}
