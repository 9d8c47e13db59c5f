package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"shalyse/internal/domain"
)

// Client calls the shalyse.Simulation service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for the server at addr using an insecure transport.
// Extra options (e.g. a context dialer in tests) are appended.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Simulate runs scenario against ticker on the server.
func (c *Client) Simulate(ctx context.Context, ticker string, scenario domain.Scenario) (*SimulateReply, error) {
	req, err := toStruct(SimulateRequest{Ticker: ticker, Scenario: scenario})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, simulateMethod, req, out); err != nil {
		return nil, err
	}
	var reply SimulateReply
	if err := fromStruct(out, &reply); err != nil {
		return nil, fmt.Errorf("decoding reply: %w", err)
	}
	return &reply, nil
}

// GetInstrument returns the metadata of ticker.
func (c *Client) GetInstrument(ctx context.Context, ticker string) (*InstrumentReply, error) {
	req, err := structpb.NewStruct(map[string]any{"ticker": ticker})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, getInstrumentMethod, req, out); err != nil {
		return nil, err
	}
	var reply InstrumentReply
	if err := fromStruct(out, &reply); err != nil {
		return nil, fmt.Errorf("decoding reply: %w", err)
	}
	return &reply, nil
}
