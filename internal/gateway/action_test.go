package gateway

import (
	"strings"
	"testing"

	"tush00nka/bbbab_chatsync/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeVariants(t *testing.T) {
	tests := []struct {
		body string
		want Action
	}{
		{`{"action":"send","chat_id":1,"content":"hi"}`, Send{ChatID: 1, Content: ptr("hi")}},
		{`{"action":"edit","messageId":2,"content":"x"}`, Edit{MessageID: 2, Content: "x"}},
		{`{"action":"delete","messageId":2,"deleteFor":"me"}`, Delete{MessageID: 2, DeleteFor: "me"}},
		{`{"action":"react","messageId":2,"reactionType":"👍"}`, React{MessageID: 2, ReactionType: "👍"}},
		{`{"action":"unreact","messageId":2}`, Unreact{MessageID: 2}},
		{`{"action":"star","messageId":2}`, Star{MessageID: 2}},
		{`{"action":"unstar","messageId":2}`, Unstar{MessageID: 2}},
		{`{"action":"forward","messageId":2,"toChatIds":[3,4]}`, Forward{MessageID: 2, ToChatIDs: []uint{3, 4}}},
		{`{"action":"mark_read","messageId":2}`, MarkRead{MessageID: 2}},
		{`{"action":"list_chats"}`, ListChats{}},
		{`{"action":"fetch_messages","chat_id":5}`, FetchMessages{ChatID: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.want.Name(), func(t *testing.T) {
			got, err := Decode([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `nope`},
		{"missing action", `{"chat_id":1}`},
		{"unknown action", `{"action":"pin","messageId":1}`},
		{"send without chat", `{"action":"send","content":"hi"}`},
		{"send too long", `{"action":"send","chat_id":1,"content":"` + strings.Repeat("a", 5001) + `"}`},
		{"send bad url", `{"action":"send","chat_id":1,"media_url":"not a url","media_type":"image"}`},
		{"send media without type", `{"action":"send","chat_id":1,"media_url":"https://cdn.example.com/a.png"}`},
		{"edit empty", `{"action":"edit","messageId":1,"content":""}`},
		{"delete without mode", `{"action":"delete","messageId":1}`},
		{"delete bad mode", `{"action":"delete","messageId":1,"deleteFor":"all"}`},
		{"react too long", `{"action":"react","messageId":1,"reactionType":"` + strings.Repeat("x", 51) + `"}`},
		{"forward empty", `{"action":"forward","messageId":1,"toChatIds":[]}`},
		{"forward zero id", `{"action":"forward","messageId":1,"toChatIds":[0]}`},
		{"wrong type", `{"action":"mark_read","messageId":"abc"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			require.Error(t, err)
			assert.Equal(t, service.KindValidation, service.KindOf(err))
		})
	}
}

func TestDecodeReportsJSONFieldNames(t *testing.T) {
	_, err := Decode([]byte(`{"action":"delete","messageId":1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deleteFor")
}

func TestSendAcceptsMediaOnly(t *testing.T) {
	a, err := Decode([]byte(`{"action":"send","chat_id":1,"media_url":"https://cdn.example.com/a.png","media_type":"image"}`))
	require.NoError(t, err)
	assert.Equal(t, "image", *a.(Send).MediaType)
}

func ptr[T any](v T) *T { return &v }
