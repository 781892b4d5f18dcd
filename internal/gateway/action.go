// Package gateway turns a request on the multiplexed chat endpoint into one
// strongly typed action and runs it against the chat services.
package gateway

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"tush00nka/bbbab_chatsync/internal/service"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	ActionSend          = "send"
	ActionEdit          = "edit"
	ActionDelete        = "delete"
	ActionReact         = "react"
	ActionUnreact       = "unreact"
	ActionStar          = "star"
	ActionUnstar        = "unstar"
	ActionForward       = "forward"
	ActionMarkRead      = "mark_read"
	ActionListChats     = "list_chats"
	ActionFetchMessages = "fetch_messages"
)

// Action is implemented only by the payload types in this package.
type Action interface {
	Name() string
	sealed()
}

type Send struct {
	ChatID    uint    `json:"chat_id" validate:"required"`
	Content   *string `json:"content" validate:"omitempty,max=5000"`
	MediaURL  *string `json:"media_url" validate:"omitempty,url"`
	MediaType *string `json:"media_type" validate:"required_with=MediaURL,omitempty,oneof=image video audio file"`
	ReplyTo   *uint   `json:"reply_to" validate:"omitempty,gt=0"`
	ClientID  *string `json:"client_id" validate:"omitempty,max=64"`
}

type Edit struct {
	MessageID uint   `json:"messageId" validate:"required"`
	Content   string `json:"content" validate:"required,min=1,max=5000"`
}

type Delete struct {
	MessageID uint   `json:"messageId" validate:"required"`
	DeleteFor string `json:"deleteFor" validate:"required,oneof=me everyone"`
}

type React struct {
	MessageID    uint   `json:"messageId" validate:"required"`
	ReactionType string `json:"reactionType" validate:"required,min=1,max=50"`
}

type Unreact struct {
	MessageID uint `json:"messageId" validate:"required"`
}

type Star struct {
	MessageID uint `json:"messageId" validate:"required"`
}

type Unstar struct {
	MessageID uint `json:"messageId" validate:"required"`
}

type Forward struct {
	MessageID uint   `json:"messageId" validate:"required"`
	ToChatIDs []uint `json:"toChatIds" validate:"required,min=1,max=50,dive,gt=0"`
}

type MarkRead struct {
	MessageID uint `json:"messageId" validate:"required"`
}

type ListChats struct{}

type FetchMessages struct {
	ChatID uint `json:"chat_id" validate:"required"`
}

func (Send) Name() string          { return ActionSend }
func (Edit) Name() string          { return ActionEdit }
func (Delete) Name() string        { return ActionDelete }
func (React) Name() string         { return ActionReact }
func (Unreact) Name() string       { return ActionUnreact }
func (Star) Name() string          { return ActionStar }
func (Unstar) Name() string        { return ActionUnstar }
func (Forward) Name() string       { return ActionForward }
func (MarkRead) Name() string      { return ActionMarkRead }
func (ListChats) Name() string     { return ActionListChats }
func (FetchMessages) Name() string { return ActionFetchMessages }

func (Send) sealed()          {}
func (Edit) sealed()          {}
func (Delete) sealed()        {}
func (React) sealed()         {}
func (Unreact) sealed()       {}
func (Star) sealed()          {}
func (Unstar) sealed()        {}
func (Forward) sealed()       {}
func (MarkRead) sealed()      {}
func (ListChats) sealed()     {}
func (FetchMessages) sealed() {}

var decoders = map[string]func([]byte) (Action, error){
	ActionSend:          decodeAs[Send],
	ActionEdit:          decodeAs[Edit],
	ActionDelete:        decodeAs[Delete],
	ActionReact:         decodeAs[React],
	ActionUnreact:       decodeAs[Unreact],
	ActionStar:          decodeAs[Star],
	ActionUnstar:        decodeAs[Unstar],
	ActionForward:       decodeAs[Forward],
	ActionMarkRead:      decodeAs[MarkRead],
	ActionListChats:     decodeAs[ListChats],
	ActionFetchMessages: decodeAs[FetchMessages],
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func decodeAs[T Action](body []byte) (Action, error) {
	var a T
	if err := json.Unmarshal(body, &a); err != nil {
		return nil, err
	}
	return a, nil
}

// Decode reads the action discriminator, decodes the matching payload and
// validates it. All failures are Validation errors.
func Decode(body []byte) (Action, error) {
	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, service.Errorf(service.KindValidation, "invalid request format")
	}

	decode, ok := decoders[envelope.Action]
	if !ok {
		if envelope.Action == "" {
			return nil, service.Errorf(service.KindValidation, "action is required")
		}
		return nil, service.Errorf(service.KindValidation, "unknown action %q", envelope.Action)
	}

	action, err := decode(body)
	if err != nil {
		return nil, service.Errorf(service.KindValidation, "invalid %s payload", envelope.Action)
	}

	if err := validate.Struct(action); err != nil {
		return nil, service.Errorf(service.KindValidation, "%s", describe(err))
	}

	return action, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
