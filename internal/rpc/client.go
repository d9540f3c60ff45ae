package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/campusfuel/healthos-engine/internal/profile"
	"github.com/campusfuel/healthos-engine/internal/rank"
	"github.com/campusfuel/healthos-engine/internal/signals"
	"github.com/campusfuel/healthos-engine/internal/state"
)

// #region client-struct
// Client calls a remote ProtocolEngine.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}
// #endregion client-struct

// #region constructor
// NewClient connects to a ProtocolEngine server.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an existing connection.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}
// #endregion constructor

// #region close
// Close shuts down the connection if the client owns one.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion close

// #region calls
// Extract asks the server to read signals from text.
func (c *Client) Extract(ctx context.Context, text string) (signals.Set, error) {
	var out ExtractReply
	if err := c.invoke(ctx, "Extract", ExtractRequest{Text: text}, &out); err != nil {
		return signals.Set{}, err
	}
	return signals.NewSet(out.Signals...), nil
}

// SubmitFeedback applies text to the user's weights. lr 0 selects the
// server's configured learning rate.
func (c *Client) SubmitFeedback(ctx context.Context, userID, text string, lr float64) (FeedbackReply, error) {
	var out FeedbackReply
	err := c.invoke(ctx, "SubmitFeedback", FeedbackRequest{UserID: userID, Text: text, LearningRate: lr}, &out)
	return out, err
}

// Rank orders active protocols with the user's learned weights.
func (c *Client) Rank(ctx context.Context, userID string, active map[string]float64, goals []string) ([]rank.Ranked, error) {
	var out RankReply
	if err := c.invoke(ctx, "Rank", RankRequest{UserID: userID, Active: active, Goals: goals}, &out); err != nil {
		return nil, err
	}
	return out.Ranked, nil
}

// LoadWeights returns the user's current weights.
func (c *Client) LoadWeights(ctx context.Context, userID string) (state.Weights, error) {
	var out WeightsReply
	if err := c.invoke(ctx, "LoadWeights", WeightsRequest{UserID: userID}, &out); err != nil {
		return nil, err
	}
	return out.Weights, nil
}

// Recommend builds a plan from a questionnaire.
func (c *Client) Recommend(ctx context.Context, userID string, p profile.Profile) (RecommendReply, error) {
	var out RecommendReply
	err := c.invoke(ctx, "Recommend", RecommendRequest{UserID: userID, Profile: p}, &out)
	return out, err
}

func (c *Client) invoke(ctx context.Context, method string, req, out any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, resp); err != nil {
		return fmt.Errorf("%s rpc: %w", method, err)
	}
	return fromStruct(resp, out)
}
// #endregion calls
