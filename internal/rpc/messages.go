package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/campusfuel/healthos-engine/internal/engine"
	"github.com/campusfuel/healthos-engine/internal/profile"
	"github.com/campusfuel/healthos-engine/internal/rank"
	"github.com/campusfuel/healthos-engine/internal/signals"
	"github.com/campusfuel/healthos-engine/internal/update"
)

// #region messages
// Messages travel as google.protobuf.Struct; these types fix their shape.
// Signals are sent as lists so their order survives the trip.

// ExtractRequest asks for the signals in a piece of feedback.
type ExtractRequest struct {
	Text string `json:"text"`
}

// ExtractReply lists extracted signals in extraction order.
type ExtractReply struct {
	Signals []signals.Signal `json:"signals"`
}

// FeedbackRequest submits feedback for a user. A zero learning rate selects
// the server default.
type FeedbackRequest struct {
	UserID       string  `json:"user_id"`
	Text         string  `json:"text"`
	LearningRate float64 `json:"learning_rate,omitempty"`
}

// FeedbackReply reports the decision and the weights now in effect.
type FeedbackReply struct {
	UserID    string             `json:"user_id"`
	Signals   []signals.Signal   `json:"signals"`
	Decision  update.Decision    `json:"decision"`
	Weights   map[string]float64 `json:"weights"`
	VersionID string             `json:"version_id,omitempty"`
	Metrics   update.Metrics     `json:"metrics"`
}

// RankRequest ranks a user's active protocols against their goals.
type RankRequest struct {
	UserID string             `json:"user_id"`
	Active map[string]float64 `json:"active"`
	Goals  []string           `json:"goals,omitempty"`
}

// RankReply holds protocols in descending score order.
type RankReply struct {
	Ranked []rank.Ranked `json:"ranked"`
}

// WeightsRequest loads a user's current weights.
type WeightsRequest struct {
	UserID string `json:"user_id"`
}

// WeightsReply carries a complete weight map.
type WeightsReply struct {
	UserID  string             `json:"user_id"`
	Weights map[string]float64 `json:"weights"`
}

// RecommendRequest runs the full profile recommendation for a user.
type RecommendRequest struct {
	UserID  string          `json:"user_id"`
	Profile profile.Profile `json:"profile"`
}

// RecommendReply is the engine's recommendation as sent on the wire.
type RecommendReply = engine.Recommendation

// #endregion messages

// #region conversion
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

func feedbackReply(o engine.Outcome) FeedbackReply {
	return FeedbackReply{
		UserID:    o.UserID,
		Signals:   o.Signals.All(),
		Decision:  o.Decision,
		Weights:   o.Weights,
		VersionID: o.VersionID,
		Metrics:   o.Metrics,
	}
}
// #endregion conversion
