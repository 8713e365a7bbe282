package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message types exchanged over the websocket.
const (
	TypeJoinRequest         = "JOIN_REQUEST"
	TypeJoinAck             = "JOIN_ACK"
	TypePlayerJoined        = "PLAYER_JOINED"
	TypePlayerLeft          = "PLAYER_LEFT"
	TypePlayerReady         = "PLAYER_READY"
	TypeReady               = "READY"
	TypeLeave               = "LEAVE"
	TypeStart               = "START"
	TypeClaimAttempt        = "CLAIM_ATTEMPT"
	TypeClaimResult         = "CLAIM_RESULT"
	TypeClaimRejected       = "CLAIM_REJECTED"
	TypePowerUpActivate     = "POWERUP_ACTIVATE"
	TypePowerUpDenied       = "POWERUP_DENIED"
	TypePowerUpGranted      = "POWERUP_GRANTED"
	TypePowerUpEffectStart  = "POWERUP_EFFECT_START"
	TypePowerUpEffectEnd    = "POWERUP_EFFECT_END"
	TypeTimeUpdate          = "TIME_UPDATE"
	TypeMatchOver           = "MATCH_OVER"
	TypeLeaderboardRequest  = "LEADERBOARD_REQUEST"
	TypeLeaderboard         = "LEADERBOARD"
	TypeAchievementUnlocked = "ACHIEVEMENT_UNLOCKED"
	TypeError               = "ERROR"
	TypePing                = "PING"
	TypePong                = "PONG"
)

// Rejection and denial reasons.
const (
	ReasonNotActive      = "not_active"
	ReasonNotInMatch     = "not_in_match"
	ReasonOutOfRange     = "out_of_range"
	ReasonAlreadyClaimed = "already_claimed"
	ReasonNotTarget      = "not_target"
	ReasonBlocked        = "blocked"
	ReasonPriority       = "priority_window"
	ReasonNoCharges      = "no_charges"
	ReasonCooldown       = "cooldown"
	ReasonPriorityHeld   = "priority_held"
	ReasonUnknownPowerUp = "unknown_powerup"
)

// Match end reasons.
const (
	EndAllClaimed = "all_claimed"
	EndTimeUp     = "time_up"
	EndAbandoned  = "abandoned"
	EndShutdown   = "server_shutdown"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Inbound is a client message whose payload is decoded per type.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var ErrMalformed = errors.New("malformed message")

// Decode parses a raw frame into an Inbound envelope.
func Decode(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if in.Type == "" {
		return Inbound{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return in, nil
}

// Bind decodes the payload into v. An absent payload leaves v untouched.
func (in Inbound) Bind(v interface{}) error {
	if len(in.Payload) == 0 || string(in.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(in.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, in.Type, err)
	}
	return nil
}

func New(messageType string, payload interface{}) Message {
	return Message{Type: messageType, Payload: payload}
}

func Error(message string) Message {
	return New(TypeError, ErrorPayload{Message: message})
}
