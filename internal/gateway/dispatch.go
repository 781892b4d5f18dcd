package gateway

import (
	"context"
	"fmt"

	"tush00nka/bbbab_chatsync/internal/model"
	"tush00nka/bbbab_chatsync/internal/service"
)

type OKResponse struct {
	OK bool `json:"ok"`
}

type ForwardResponse struct {
	Messages []*model.Message `json:"messages"`
}

type Dispatcher struct {
	chats    service.ChatService
	messages service.MessageService
	ledger   service.LedgerService
}

func NewDispatcher(chats service.ChatService, messages service.MessageService, ledger service.LedgerService) *Dispatcher {
	return &Dispatcher{chats: chats, messages: messages, ledger: ledger}
}

// Dispatch runs one action for an authenticated, rate-limited caller.
// Every action is a single persist-or-fail unit.
func (d *Dispatcher) Dispatch(ctx context.Context, userID uint, action Action) (any, error) {
	if userID == 0 {
		return nil, service.ErrUnauthorized
	}

	switch a := action.(type) {
	case Send:
		return d.messages.Send(ctx, userID, service.SendInput{
			ChatID:    a.ChatID,
			Content:   a.Content,
			MediaURL:  a.MediaURL,
			MediaType: a.MediaType,
			ReplyToID: a.ReplyTo,
			ClientID:  a.ClientID,
		})
	case Edit:
		return d.messages.Edit(ctx, userID, a.MessageID, a.Content)
	case Delete:
		return ok(d.messages.Delete(ctx, userID, a.MessageID, a.DeleteFor))
	case React:
		return d.ledger.React(ctx, userID, a.MessageID, a.ReactionType)
	case Unreact:
		return ok(d.ledger.Unreact(ctx, userID, a.MessageID))
	case Star:
		return ok(d.ledger.Star(ctx, userID, a.MessageID))
	case Unstar:
		return ok(d.ledger.Unstar(ctx, userID, a.MessageID))
	case Forward:
		msgs, err := d.messages.Forward(ctx, userID, a.MessageID, a.ToChatIDs)
		if err != nil {
			return nil, err
		}
		return ForwardResponse{Messages: msgs}, nil
	case MarkRead:
		return ok(d.ledger.MarkRead(ctx, userID, a.MessageID))
	case ListChats:
		return d.chats.ListChats(ctx, userID)
	case FetchMessages:
		return d.messages.Fetch(ctx, userID, a.ChatID)
	default:
		return nil, fmt.Errorf("gateway: unhandled action %T", action)
	}
}

func ok(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return OKResponse{OK: true}, nil
}
