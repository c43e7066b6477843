// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package protocol defines the frames exchanged with editor clients.
//
// Text frames carry the authentication handshake. Binary frames start with a
// varuint message type followed by a type-specific payload:
//
//	sync:            varuint syncType, varbytes body
//	awareness:       varbytes awarenessUpdate
//	auth:            ignored by the server
//	query-awareness: no payload
package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/inkwell/internal/crdt"
)

// MessageType is the leading discriminator of a binary frame.
type MessageType uint64

const (
	MessageSync           MessageType = 0
	MessageAwareness      MessageType = 1
	MessageAuth           MessageType = 2
	MessageQueryAwareness MessageType = 3
)

func (t MessageType) String() string {
	switch t {
	case MessageSync:
		return "sync"
	case MessageAwareness:
		return "awareness"
	case MessageAuth:
		return "auth"
	case MessageQueryAwareness:
		return "query_awareness"
	default:
		return "unknown"
	}
}

// SyncType distinguishes the sync sub-messages.
type SyncType uint64

const (
	// SyncStep1 carries the sender's state vector.
	SyncStep1 SyncType = 0
	// SyncStep2 carries the updates the receiver of step 1 was missing.
	SyncStep2 SyncType = 1
	// SyncUpdate carries an incremental update.
	SyncUpdate SyncType = 2
)

func (t SyncType) String() string {
	switch t {
	case SyncStep1:
		return "step1"
	case SyncStep2:
		return "step2"
	case SyncUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// WebSocket close codes sent by the server.
const (
	ClosePolicyViolation = 1008
	CloseMessageTooBig   = 1009
	CloseInvalidToken    = 4001
	CloseForbidden       = 4003
	CloseInternalError   = 4500
)

// FrameAuthenticated is the text frame acknowledging a successful handshake.
const FrameAuthenticated = "authenticated"

const deniedPrefix = "access-denied:"

// DenyReason is the reason carried by an access-denied frame.
type DenyReason string

const (
	ReasonInvalidToken DenyReason = "invalid-token"
	ReasonForbidden    DenyReason = "forbidden"
	ReasonError        DenyReason = "error"
)

// Frame returns the access-denied text frame for the reason.
func (r DenyReason) Frame() string {
	return deniedPrefix + string(r)
}

// CloseCode returns the close code sent after the denial frame.
func (r DenyReason) CloseCode() int {
	switch r {
	case ReasonInvalidToken:
		return CloseInvalidToken
	case ReasonForbidden:
		return CloseForbidden
	default:
		return CloseInternalError
	}
}

// ParseDenied extracts the reason from an access-denied frame.
func ParseDenied(frame string) (DenyReason, bool) {
	reason, ok := strings.CutPrefix(frame, deniedPrefix)
	if !ok {
		return "", false
	}
	return DenyReason(reason), true
}

var (
	// ErrUnknownMessage is returned for a message or sync type the server does not handle.
	ErrUnknownMessage = errors.New("unknown message type")
	// ErrMalformedMessage is returned when a frame cannot be decoded.
	ErrMalformedMessage = errors.New("malformed message")
)

// Message is a decoded binary frame. SyncType is only meaningful for
// MessageSync. Payload aliases the frame it was decoded from.
type Message struct {
	Type     MessageType
	SyncType SyncType
	Payload  []byte
}

// Decode parses a binary frame.
func Decode(frame []byte) (Message, error) {
	d := crdt.NewDecoder(frame)
	raw, err := d.ReadVarUint()
	if err != nil {
		return Message{}, fmt.Errorf("%w: message type: %v", ErrMalformedMessage, err)
	}
	msg := Message{Type: MessageType(raw)}

	switch msg.Type {
	case MessageSync:
		sub, err := d.ReadVarUint()
		if err != nil {
			return Message{}, fmt.Errorf("%w: sync type: %v", ErrMalformedMessage, err)
		}
		msg.SyncType = SyncType(sub)
		if msg.SyncType > SyncUpdate {
			return Message{}, fmt.Errorf("%w: sync type %d", ErrUnknownMessage, sub)
		}
		if msg.Payload, err = d.ReadVarBytes(); err != nil {
			return Message{}, fmt.Errorf("%w: sync body: %v", ErrMalformedMessage, err)
		}
	case MessageAwareness:
		if msg.Payload, err = d.ReadVarBytes(); err != nil {
			return Message{}, fmt.Errorf("%w: awareness body: %v", ErrMalformedMessage, err)
		}
	case MessageAuth, MessageQueryAwareness:
		msg.Payload = d.Rest()
	default:
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownMessage, raw)
	}
	return msg, nil
}

// EncodeSync builds a sync frame.
func EncodeSync(t SyncType, body []byte) []byte {
	enc := crdt.NewEncoder(len(body) + 8)
	enc.WriteVarUint(uint64(MessageSync))
	enc.WriteVarUint(uint64(t))
	enc.WriteVarBytes(body)
	return enc.Bytes()
}

// EncodeAwareness builds an awareness frame around an encoded awareness update.
func EncodeAwareness(update []byte) []byte {
	enc := crdt.NewEncoder(len(update) + 8)
	enc.WriteVarUint(uint64(MessageAwareness))
	enc.WriteVarBytes(update)
	return enc.Bytes()
}

// EncodeQueryAwareness builds a query-awareness frame.
func EncodeQueryAwareness() []byte {
	enc := crdt.NewEncoder(1)
	enc.WriteVarUint(uint64(MessageQueryAwareness))
	return enc.Bytes()
}
