package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/olyamironova/deferswap/internal/adapter/in_memory"
	"github.com/olyamironova/deferswap/internal/core"
	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	ledger = common.HexToAddress("0x00000000000000000000000000000000000000e5")
	alice  = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func newClient(t *testing.T) *grpc.ClientConn {
	t.Helper()
	bank := in_memory.NewBank(ledger)
	bank.Mint("ETH", alice, decimal.NewFromInt(100))
	registry := in_memory.NewRegistry(
		domain.Token{Symbol: "ETH", Decimals: 18},
		domain.Token{Symbol: "USDT", Decimals: 6, Contract: common.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec7")},
	)
	eng := core.NewEngine(core.Config{Ledger: ledger}, in_memory.NewMemoryRepo(), bank, registry)

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(eng, zap.NewNop().Sugar())
	g := grpc.NewServer(grpc.UnaryInterceptor(srv.logCalls))
	srv.Register(g)
	go func() { _ = g.Serve(lis) }()
	t.Cleanup(g.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func invoke(t *testing.T, conn *grpc.ClientConn, caller common.Address, method string, req map[string]any) (*structpb.Struct, error) {
	t.Helper()
	in, err := structpb.NewStruct(req)
	require.NoError(t, err)
	ctx := context.Background()
	if caller != (common.Address{}) {
		ctx = metadata.AppendToOutgoingContext(ctx, AccountKey, caller.Hex())
	}
	out := &structpb.Struct{}
	err = conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out)
	return out, err
}

func TestCreateAndCancel(t *testing.T) {
	conn := newClient(t)

	out, err := invoke(t, conn, alice, "CreateOrder", map[string]any{
		"base_symbol": "ETH", "quote_symbol": "USDT", "side": "SELL",
		"base_amount": "10", "quote_amount": "32000", "value": "10",
	})
	require.NoError(t, err)
	order := out.Fields["order"].GetStructValue()
	assert.Equal(t, float64(1), order.Fields["id"].GetNumberValue())
	assert.Equal(t, "OPEN", order.Fields["status"].GetStringValue())

	_, err = invoke(t, conn, bob, "CancelOrder", map[string]any{"order_id": 1})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	out, err = invoke(t, conn, alice, "CancelOrder", map[string]any{"order_id": 1})
	require.NoError(t, err)
	records := out.Fields["records"].GetListValue().GetValues()
	require.Len(t, records, 1)
	assert.Equal(t, "CANCELLED", records[0].GetStructValue().Fields["kind"].GetStringValue())

	out, err = invoke(t, conn, common.Address{}, "GetOrder", map[string]any{"order_id": 1})
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", out.Fields["order"].GetStructValue().Fields["status"].GetStringValue())
}

func TestErrors(t *testing.T) {
	conn := newClient(t)

	_, err := invoke(t, conn, common.Address{}, "CreateOrder", map[string]any{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = invoke(t, conn, alice, "CreateOrder", map[string]any{"side": "LONG"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = invoke(t, conn, common.Address{}, "GetOrder", map[string]any{"order_id": 42})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = invoke(t, conn, bob, "Merge", map[string]any{"order_id": 42, "candidates": []any{}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = invoke(t, conn, bob, "CreateOrder", map[string]any{
		"base_symbol": "ETH", "quote_symbol": "USDT", "side": "SELL",
		"base_amount": "1", "quote_amount": "3000", "value": "1",
	})
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestGetSettings(t *testing.T) {
	conn := newClient(t)
	out, err := invoke(t, conn, common.Address{}, "GetSettings", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, ledger.Hex(), out.Fields["ledger"].GetStringValue())
}
