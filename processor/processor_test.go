package processor

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akme/indexer/cid"
	"github.com/akme/indexer/errors"
	"github.com/akme/indexer/gateway"
)

// fakeRequester records the last request and returns a canned reply
type fakeRequester struct {
	subject string
	data    []byte
	reply   []byte
	err     error
}

func (f *fakeRequester) Request(_ context.Context, subject string, data []byte) ([]byte, error) {
	f.subject = subject
	f.data = data
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(nil, Config{}, nil)
	require.Error(t, err, "nil requester must be rejected")

	c, err := NewClient(&fakeRequester{}, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPaidSubject, c.paidSubject)
	assert.Equal(t, DefaultFreeSubject, c.freeSubject)

	c, err = NewClient(&fakeRequester{}, Config{
		PaidSubject: "custom.paid",
		FreeSubject: "custom.free",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "custom.paid", c.paidSubject)
	assert.Equal(t, "custom.free", c.freeSubject)
}

func TestAddPaidQuery_Envelope(t *testing.T) {
	query := []byte("{ pools { id } }")
	requestCID := cid.Hash(query)

	req := &fakeRequester{reply: []byte(`{"result":{"data":{"pools":[]}}}`)}
	c, err := NewClient(req, Config{}, nil)
	require.NoError(t, err)

	result, err := c.AddPaidQuery(context.Background(), gateway.PaidQuery{
		SubgraphID: "subgraph-1",
		PaymentID:  "pay-42",
		Query:      query,
		RequestCID: requestCID,
	})
	require.NoError(t, err)
	assert.Equal(t, 200, result.StatusCode())
	assert.JSONEq(t, `{"data":{"pools":[]}}`, string(result.Result))

	assert.Equal(t, DefaultPaidSubject, req.subject)

	var env queryEnvelope
	require.NoError(t, json.Unmarshal(req.data, &env))
	assert.Equal(t, "subgraph-1", env.SubgraphID)
	assert.Equal(t, "pay-42", env.PaymentID)
	assert.Empty(t, env.StateChannelID)
	assert.Equal(t, query, env.Query)
	assert.Equal(t, requestCID.String(), env.RequestCID)
}

func TestAddFreeQuery_Envelope(t *testing.T) {
	query := []byte("{ tokens { id } }")

	req := &fakeRequester{reply: []byte(`{"result":{"data":[]}}`)}
	c, err := NewClient(req, Config{}, nil)
	require.NoError(t, err)

	result, err := c.AddFreeQuery(context.Background(), gateway.FreeQuery{
		SubgraphID:     "subgraph-1",
		StateChannelID: "sc-1",
		Query:          query,
		RequestCID:     cid.Hash(query),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[]}`, string(result.Result))

	assert.Equal(t, DefaultFreeSubject, req.subject)

	var env queryEnvelope
	require.NoError(t, json.Unmarshal(req.data, &env))
	assert.Equal(t, "sc-1", env.StateChannelID)
	assert.Empty(t, env.PaymentID)
}

func TestDispatch_ReplyStatusPassthrough(t *testing.T) {
	req := &fakeRequester{reply: []byte(`{"status":206,"result":{"data":null}}`)}
	c, err := NewClient(req, Config{}, nil)
	require.NoError(t, err)

	result, err := c.AddPaidQuery(context.Background(), gateway.PaidQuery{Query: []byte("{}")})
	require.NoError(t, err)
	assert.Equal(t, 206, result.StatusCode())
}

func TestDispatch_ProcessorError(t *testing.T) {
	tests := []struct {
		name           string
		reply          string
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:           "error with status",
			reply:          `{"error":{"status":429,"message":"rate limited"}}`,
			expectedStatus: 429,
			expectedMsg:    "rate limited",
		},
		{
			name:           "error without status defaults to 500",
			reply:          `{"error":{"message":"execution failed"}}`,
			expectedStatus: 500,
			expectedMsg:    "execution failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(&fakeRequester{reply: []byte(tt.reply)}, Config{}, nil)
			require.NoError(t, err)

			_, err = c.AddFreeQuery(context.Background(), gateway.FreeQuery{Query: []byte("{}")})
			require.Error(t, err)

			var pe *gateway.ProcessingError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.expectedStatus, pe.StatusCode())
			assert.Equal(t, tt.expectedMsg, pe.Message)
		})
	}
}

func TestDispatch_TransportFailure(t *testing.T) {
	c, err := NewClient(&fakeRequester{err: fmt.Errorf("connection refused")}, Config{}, nil)
	require.NoError(t, err)

	_, err = c.AddPaidQuery(context.Background(), gateway.PaidQuery{Query: []byte("{}")})
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))

	var pe *gateway.ProcessingError
	assert.False(t, stderrors.As(err, &pe), "transport failures carry no protocol status")
}

func TestDispatch_MalformedReply(t *testing.T) {
	c, err := NewClient(&fakeRequester{reply: []byte("not json")}, Config{}, nil)
	require.NoError(t, err)

	_, err = c.AddPaidQuery(context.Background(), gateway.PaidQuery{Query: []byte("{}")})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
