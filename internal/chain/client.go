package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps go-ethereum RPC with the token reads custody reconciliation needs.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	mu       sync.RWMutex
	decimals map[common.Address]uint8
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return newClient(rpcClient), nil
}

func newClient(rpcClient *rpc.Client) *Client {
	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		decimals:  make(map[common.Address]uint8),
	}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// BalanceOf returns token.balanceOf(owner) at blockNumber, or at the latest block when nil.
func (c *Client) BalanceOf(ctx context.Context, token, owner common.Address, blockNumber *big.Int) (*big.Int, error) {
	values, err := c.call(ctx, token, "balanceOf", blockNumber, owner)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("balanceOf return size %d", len(values))
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf unexpected type %T", values[0])
	}
	return bal, nil
}

// Decimals returns token.decimals(), cached per token.
func (c *Client) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	c.mu.RLock()
	decimals, ok := c.decimals[token]
	c.mu.RUnlock()
	if ok {
		return decimals, nil
	}

	values, err := c.call(ctx, token, "decimals", nil)
	if err != nil {
		return 0, err
	}
	decimals, ok = values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals unexpected type %T", values[0])
	}

	c.mu.Lock()
	c.decimals[token] = decimals
	c.mu.Unlock()
	return decimals, nil
}

func (c *Client) call(ctx context.Context, token common.Address, method string, blockNumber *big.Int, args ...interface{}) ([]interface{}, error) {
	parsed, err := erc20ABIInstance()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &token, Data: data}
	resp, err := c.ethClient.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned nothing", method)
	}
	return values, nil
}
