package protocol

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCodec_Decode_Valid_Frames(t *testing.T) {
	req := require.New(t)
	codec := NewCodec(32, 100)
	id := chat.NewSessionID()

	tests := []struct {
		raw      string
		expected chat.Command
	}{
		{`{"type":"claim-name","requestedName":"  alice "}`, chat.ClaimNameCommand{SessionID: id, RequestedName: "alice"}},
		{`{"type":"chat-message","text":"hello"}`, chat.PostMessageCommand{SessionID: id, Text: "hello"}},
		{`{"type":"typing"}`, chat.TypingCommand{SessionID: id}},
		{`{"type":"stop-typing"}`, chat.StopTypingCommand{SessionID: id}},
		{`{"type":"leave"}`, chat.DisconnectCommand{SessionID: id}},
	}
	for _, tt := range tests {
		frame, err := codec.Decode([]byte(tt.raw))
		req.NoError(err, tt.raw)
		req.Equal(tt.expected, frame.Command(id), tt.raw)
	}
}

func TestCodec_Decode_Invalid_Frames(t *testing.T) {
	req := require.New(t)
	codec := NewCodec(5, 10)

	tests := []struct {
		raw      string
		expected error
		code     string
	}{
		{`not json`, errors.ErrInvalidPayload, "malformed-frame"},
		{`{"type":"dance"}`, errors.ErrUnknownEvent, "unknown-event"},
		{`{}`, errors.ErrUnknownEvent, "unknown-event"},
		{`{"type":"claim-name"}`, errors.ErrInvalidPayload, "malformed-frame"},
		{`{"type":"claim-name","requestedName":"   "}`, errors.ErrInvalidPayload, "malformed-frame"},
		{`{"type":"claim-name","requestedName":"abcdef"}`, errors.ErrInvalidPayload, "malformed-frame"},
		{`{"type":"chat-message"}`, errors.ErrInvalidPayload, "malformed-frame"},
		{`{"type":"chat-message","text":"  "}`, errors.ErrInvalidPayload, "malformed-frame"},
		{`{"type":"chat-message","text":"` + strings.Repeat("x", 11) + `"}`, errors.ErrContentTooLong, "content-too-long"},
	}
	for _, tt := range tests {
		_, err := codec.Decode([]byte(tt.raw))
		req.ErrorIs(err, tt.expected, tt.raw)
		req.ErrorIs(err, errors.ErrMalformedFrame, tt.raw)
		req.Equal(tt.code, errors.Code(err), tt.raw)
	}
}

func TestCodec_Length_Limits_Count_Characters(t *testing.T) {
	req := require.New(t)
	codec := NewCodec(5, 3)

	// Given multi-byte names and texts at the limit
	_, err := codec.Decode([]byte(`{"type":"claim-name","requestedName":"élodi"}`))
	req.NoError(err)
	_, err = codec.Decode([]byte(`{"type":"chat-message","text":"ééé"}`))
	req.NoError(err)
}

func TestEncode_Frames(t *testing.T) {
	req := require.New(t)
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		evt      event.DomainEvent
		expected string
	}{
		{event.NameAssigned{AssignedName: "alice1", RequestedName: "alice"},
			`{"type":"name-assigned","assignedName":"alice1","requestedName":"alice"}`},
		{event.FromMessage(chat.JoinNotice("alice", at)),
			`{"type":"chat-message","senderName":"System","text":"alice has joined the chat","timestamp":"2025-03-14T09:26:53Z","system":true}`},
		{event.MessagePosted{SenderName: "bob", Text: "hi", At: at},
			`{"type":"chat-message","senderName":"bob","text":"hi","timestamp":"2025-03-14T09:26:53Z"}`},
		{event.UserTyping{Name: "bob"}, `{"type":"typing","name":"bob"}`},
		{event.UserStoppedTyping{Name: "bob"}, `{"type":"stop-typing","name":"bob"}`},
		{event.ProtocolError{Code: "not-named", Reason: "claim a name first"},
			`{"type":"error","code":"not-named","reason":"claim a name first"}`},
	}
	for _, tt := range tests {
		data, err := Encode(tt.evt)
		req.NoError(err)
		req.JSONEq(tt.expected, string(data))

		decoded, err := DecodeOutbound(data)
		req.NoError(err)
		req.Equal(tt.evt, decoded)
	}
}

func TestStruct_Conversion(t *testing.T) {
	req := require.New(t)
	codec := NewCodec(32, 100)

	// Given a client frame carried in a protobuf struct
	s, err := EncodeInboundStruct(InboundFrame{Type: ClaimNameType, RequestedName: "alice"})
	req.NoError(err)
	req.Equal("claim-name", s.Fields["type"].GetStringValue())

	// When the server decodes it
	frame, err := codec.DecodeStruct(s)

	// Then it is the same frame
	req.NoError(err)
	req.Equal(InboundFrame{Type: ClaimNameType, RequestedName: "alice"}, frame)

	// And events survive the round trip back to the client
	out, err := EncodeStruct(event.UserTyping{Name: "alice"})
	req.NoError(err)
	evt, err := DecodeOutboundStruct(out)
	req.NoError(err)
	req.Equal(event.UserTyping{Name: "alice"}, evt)
}

func TestDecodeOutbound_Unknown_Type(t *testing.T) {
	req := require.New(t)

	_, err := DecodeOutbound([]byte(`{"type":"bogus"}`))

	req.ErrorIs(err, errors.ErrUnknownEvent)
}
