package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/olivoil/onewordstory/internal/contract"
	"github.com/olivoil/onewordstory/internal/failure"
	"github.com/olivoil/onewordstory/internal/wallet"
)

// Provider is a JSON-RPC wallet endpoint. It answers wallet requests and
// serves chain reads through the embedded ethclient.
type Provider struct {
	*ethclient.Client
	endpoint string
}

var _ contract.Conn = (*Provider)(nil)

// Request implements wallet.Provider.
func (p *Provider) Request(ctx context.Context, result any, method string, params ...any) error {
	return p.Client.Client().CallContext(ctx, result, method, params...)
}

// Endpoint returns the URL or socket path the provider was dialed with.
func (p *Provider) Endpoint() string { return p.endpoint }

// Dial connects to the wallet provider. An empty endpoint, a missing IPC
// socket or a transport failure all mean no provider is present.
func Dial(ctx context.Context, endpoint string) (contract.Conn, error) {
	if endpoint == "" {
		return nil, failure.Wrap(failure.CodeProviderUnavailable,
			"Make sure you have a wallet provider configured!", wallet.ErrNoProvider)
	}
	if !isRemote(endpoint) {
		if _, err := os.Stat(endpoint); err != nil {
			return nil, failure.Wrap(failure.CodeProviderUnavailable,
				"Make sure you have a wallet provider running!", fmt.Errorf("ipc socket: %w", err))
		}
	}
	c, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, failure.Wrap(failure.CodeProviderUnavailable,
			"Make sure you have a wallet provider running!", err)
	}
	return &Provider{Client: ethclient.NewClient(c), endpoint: endpoint}, nil
}

// closeConn closes conns that own a transport.
func closeConn(conn contract.Conn) {
	if c, ok := conn.(interface{ Close() }); ok {
		c.Close()
	}
}

func isRemote(endpoint string) bool {
	return strings.Contains(endpoint, "://")
}

// ErrNotIPC is returned by NewWatcher for endpoints that are not sockets.
var ErrNotIPC = errors.New("provider endpoint is not an IPC socket")
