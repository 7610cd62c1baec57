// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package session drives a device's participation in secret
// conversations: the propose/accept/decline consent handshake and the
// encrypt/decrypt message pipeline around it.
package session

import (
	"github.com/efchatnet/secretconv/backend/models"
)

// ConsentState is the lifecycle position of a secret conversation as
// seen from one member's device. It is observed, never stored: the state
// is fully determined by which member records carry a public key, so
// there is no status flag to fall out of sync.
type ConsentState int

const (
	// StateNotSecret: the conversation is not end-to-end encrypted.
	StateNotSecret ConsentState = iota

	// StatePending: the creator holds a key, the invitee does not yet.
	// The cipher must not be used; the UI gates input on this.
	StatePending

	// StateEstablished: both members hold public keys; the shared secret
	// is derivable on both devices.
	StateEstablished

	// StateDeclined: the peer's membership is gone (rejected or left).
	// Prior ciphertext stays undecryptable for anyone lacking the
	// departed key; that is forward secrecy, not a defect.
	StateDeclined
)

func (s ConsentState) String() string {
	switch s {
	case StateNotSecret:
		return "not_secret"
	case StatePending:
		return "pending"
	case StateEstablished:
		return "established"
	case StateDeclined:
		return "declined"
	}
	return "unknown"
}

// ConsentStateOf derives the consent state of conv from selfID's point
// of view.
func ConsentStateOf(conv *models.Conversation, selfID string) ConsentState {
	if !conv.IsSecret() {
		return StateNotSecret
	}
	peer := conv.Peer(selfID)
	if peer == nil {
		return StateDeclined
	}
	if peer.HasAccepted() && conv.Member(selfID).HasAccepted() {
		return StateEstablished
	}
	return StatePending
}
