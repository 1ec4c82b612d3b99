package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/weisyn/blockchain-request-go/types"
	"github.com/weisyn/blockchain-request-go/utils"
)

const uniqueViolation = "23505"

const requestsSchema = `
CREATE TABLE IF NOT EXISTS verifiable_requests (
	id                       UUID PRIMARY KEY,
	project_id               UUID NOT NULL,
	kind                     TEXT NOT NULL,
	chain_id                 BIGINT NOT NULL,
	redirect_url             TEXT NOT NULL,
	message_to_sign          TEXT,
	store_indefinitely       BOOLEAN NOT NULL DEFAULT FALSE,
	requested_wallet_address TEXT,
	actual_wallet_address    TEXT,
	signed_message           TEXT,
	token_address            TEXT,
	amount                   TEXT,
	recipient_address        TEXT,
	block_number             BIGINT,
	deployment_id            UUID,
	contract_address         TEXT,
	function_name            TEXT,
	call_data                TEXT,
	eth_value                TEXT,
	tx_hash                  TEXT,
	tx_caller                TEXT,
	arbitrary_data           JSONB,
	created_at               TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS verifiable_requests_project_idx ON verifiable_requests (project_id, created_at);
`

const requestColumns = "id, project_id, kind, chain_id, redirect_url, message_to_sign, store_indefinitely, " +
	"requested_wallet_address, actual_wallet_address, signed_message, token_address, amount, " +
	"recipient_address, block_number, deployment_id, contract_address, function_name, call_data, eth_value, " +
	"tx_hash, tx_caller, arbitrary_data, created_at"

// PostgresRequestStore 基于 PostgreSQL 的 RequestStore
type PostgresRequestStore struct {
	db *sql.DB
}

var _ RequestStore = &PostgresRequestStore{}

// NewPostgresRequestStore 包装已打开的连接池
func NewPostgresRequestStore(db *sql.DB) *PostgresRequestStore {
	return &PostgresRequestStore{db: db}
}

// OpenPostgresRequestStore 按 DSN 打开连接并确认可达
func OpenPostgresRequestStore(ctx context.Context, dsn string) (*PostgresRequestStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return NewPostgresRequestStore(db), nil
}

// EnsureSchema 创建表和索引（幂等）
func (s *PostgresRequestStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, requestsSchema); err != nil {
		return fmt.Errorf("failed to create request schema: %w", err)
	}
	return nil
}

// Close 关闭连接池
func (s *PostgresRequestStore) Close() error {
	return s.db.Close()
}

// GetByID 按 ID 查询
func (s *PostgresRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*types.VerifiableRequest, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM verifiable_requests WHERE id = $1", id)

	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request %s: %w", id, err)
	}
	return req, nil
}

// Store 插入新请求
func (s *PostgresRequestStore) Store(ctx context.Context, req *types.VerifiableRequest) error {
	var (
		tokenAddress, amount, recipient sql.NullString
		blockNumber                     sql.NullInt64
	)
	if e := req.Erc20; e != nil {
		tokenAddress = nullAddress(e.TokenAddress)
		recipient = nullAddress(e.RecipientAddress)
		if e.Amount != "" {
			amount = sql.NullString{String: e.Amount, Valid: true}
		}
		if e.BlockNumber != nil {
			blockNumber = sql.NullInt64{Int64: int64(*e.BlockNumber), Valid: true}
		}
	}
	var (
		deploymentID                                      uuid.NullUUID
		contractAddress, functionName, callData, ethValue sql.NullString
	)
	if f := req.FunctionCall; f != nil {
		if f.DeploymentID != nil {
			deploymentID = uuid.NullUUID{UUID: *f.DeploymentID, Valid: true}
		}
		contractAddress = nullAddress(&f.ContractAddress)
		functionName = sql.NullString{String: f.FunctionName, Valid: true}
		callData = sql.NullString{String: hexutil.Encode(f.CallData), Valid: true}
		if f.EthValue != nil {
			ethValue = sql.NullString{String: f.EthValue.String(), Valid: true}
		}
	}
	var txHash, txCaller sql.NullString
	if req.Tx != nil {
		txHash = sql.NullString{String: req.Tx.TxHash.Hex(), Valid: true}
		txCaller = nullAddress(&req.Tx.Caller)
	}
	var message sql.NullString
	if req.MessageToSignOverride != nil {
		message = sql.NullString{String: *req.MessageToSignOverride, Valid: true}
	}
	var signed sql.NullString
	if req.SignedMessage != nil {
		signed = sql.NullString{String: req.SignedMessage.String(), Valid: true}
	}
	var arbitrary []byte
	if len(req.ArbitraryData) > 0 {
		arbitrary = req.ArbitraryData
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO verifiable_requests ("+requestColumns+") "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)",
		req.ID, req.ProjectID, string(req.Kind), int64(req.ChainID), req.RedirectURL, message,
		req.StoreIndefinitely, nullAddress(req.RequestedWalletAddress), nullAddress(req.ActualWalletAddress),
		signed, tokenAddress, amount, recipient, blockNumber, deploymentID, contractAddress, functionName,
		callData, ethValue, txHash, txCaller, arbitrary, req.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrRequestExists
		}
		return fmt.Errorf("failed to store request %s: %w", req.ID, err)
	}
	return nil
}

// Delete 删除请求
func (s *PostgresRequestStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM verifiable_requests WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete request %s: %w", id, err)
	}
	return affected(res)
}

// SetSignerAndSignature 条件更新，已签名或不存在的行不受影响
func (s *PostgresRequestStore) SetSignerAndSignature(ctx context.Context, id uuid.UUID, signer common.Address, signed types.SignedMessage) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE verifiable_requests SET actual_wallet_address = $2, signed_message = $3 "+
			"WHERE id = $1 AND signed_message IS NULL",
		id, utils.LowercaseHex(signer), signed.String())
	if err != nil {
		return false, fmt.Errorf("failed to attach signature to request %s: %w", id, err)
	}
	return affected(res)
}

// SetTxInfo 条件更新，已附加交易或不存在的行不受影响
func (s *PostgresRequestStore) SetTxInfo(ctx context.Context, id uuid.UUID, txHash common.Hash, caller common.Address) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE verifiable_requests SET tx_hash = $2, tx_caller = $3 WHERE id = $1 AND tx_hash IS NULL",
		id, txHash.Hex(), utils.LowercaseHex(caller))
	if err != nil {
		return false, fmt.Errorf("failed to attach tx info to request %s: %w", id, err)
	}
	return affected(res)
}

// GetAllByProject 项目下全部请求
func (s *PostgresRequestStore) GetAllByProject(ctx context.Context, projectID uuid.UUID, kind *types.RequestKind) ([]*types.VerifiableRequest, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if kind == nil {
		rows, err = s.db.QueryContext(ctx,
			"SELECT "+requestColumns+" FROM verifiable_requests WHERE project_id = $1 ORDER BY created_at, id",
			projectID)
	} else {
		rows, err = s.db.QueryContext(ctx,
			"SELECT "+requestColumns+" FROM verifiable_requests WHERE project_id = $1 AND kind = $2 ORDER BY created_at, id",
			projectID, string(*kind))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list requests for project %s: %w", projectID, err)
	}
	defer rows.Close()

	result := []*types.VerifiableRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list requests for project %s: %w", projectID, err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*types.VerifiableRequest, error) {
	var (
		req                                               types.VerifiableRequest
		kind                                              string
		chainID                                           int64
		message, requested, actual, signed                sql.NullString
		tokenAddress, amount, recipient                   sql.NullString
		blockNumber                                       sql.NullInt64
		deploymentID                                      uuid.NullUUID
		contractAddress, functionName, callData, ethValue sql.NullString
		txHash, txCaller                                  sql.NullString
		arbitrary                                         []byte
	)
	err := row.Scan(&req.ID, &req.ProjectID, &kind, &chainID, &req.RedirectURL, &message,
		&req.StoreIndefinitely, &requested, &actual, &signed, &tokenAddress, &amount,
		&recipient, &blockNumber, &deploymentID, &contractAddress, &functionName, &callData, &ethValue,
		&txHash, &txCaller, &arbitrary, &req.CreatedAt)
	if err != nil {
		return nil, err
	}

	req.Kind = types.RequestKind(kind)
	req.ChainID = types.ChainID(chainID)
	if message.Valid {
		req.MessageToSignOverride = &message.String
	}
	if req.RequestedWalletAddress, err = scanAddress(requested); err != nil {
		return nil, err
	}
	if req.ActualWalletAddress, err = scanAddress(actual); err != nil {
		return nil, err
	}
	if signed.Valid {
		sm := types.SignedMessage(signed.String)
		req.SignedMessage = &sm
	}
	if req.Kind == types.RequestKindErc20Balance || req.Kind == types.RequestKindErc20Send {
		e := &types.Erc20Details{Amount: amount.String}
		if e.TokenAddress, err = scanAddress(tokenAddress); err != nil {
			return nil, err
		}
		if e.RecipientAddress, err = scanAddress(recipient); err != nil {
			return nil, err
		}
		if blockNumber.Valid {
			n := uint64(blockNumber.Int64)
			e.BlockNumber = &n
		}
		req.Erc20 = e
	}
	if req.Kind == types.RequestKindFunctionCall {
		if req.FunctionCall, err = scanFunctionCall(deploymentID, contractAddress, functionName, callData, ethValue); err != nil {
			return nil, err
		}
	}
	if txHash.Valid {
		caller, err := scanAddress(txCaller)
		if err != nil {
			return nil, err
		}
		req.Tx = &types.TxDetails{TxHash: common.HexToHash(txHash.String)}
		if caller != nil {
			req.Tx.Caller = *caller
		}
	}
	if len(arbitrary) > 0 {
		req.ArbitraryData = arbitrary
	}
	return &req, nil
}

func scanFunctionCall(deploymentID uuid.NullUUID, contract, name, data, value sql.NullString) (*types.FunctionCallDetails, error) {
	f := &types.FunctionCallDetails{FunctionName: name.String}
	if deploymentID.Valid {
		id := deploymentID.UUID
		f.DeploymentID = &id
	}
	addr, err := scanAddress(contract)
	if err != nil {
		return nil, err
	}
	if addr != nil {
		f.ContractAddress = *addr
	}
	if data.Valid {
		if f.CallData, err = hexutil.Decode(data.String); err != nil {
			return nil, fmt.Errorf("stored call data: %w", err)
		}
	}
	if value.Valid {
		v, ok := new(big.Int).SetString(value.String, 10)
		if !ok {
			return nil, fmt.Errorf("stored eth value %q is not a decimal", value.String)
		}
		f.EthValue = v
	}
	return f, nil
}

func nullAddress(addr *common.Address) sql.NullString {
	if addr == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: utils.LowercaseHex(*addr), Valid: true}
}

func scanAddress(s sql.NullString) (*common.Address, error) {
	if !s.Valid {
		return nil, nil
	}
	addr, err := utils.ParseAddress(s.String)
	if err != nil {
		return nil, fmt.Errorf("stored address %q: %w", s.String, err)
	}
	return &addr, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
