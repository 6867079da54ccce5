package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"github.com/pact-foundation/pactengine/internal/generators"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/matchingrules"
	"github.com/pact-foundation/pactengine/internal/types"
)

// timeLayout is fixed width so sqlite text timestamps order correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Timestamp scans both native timestamps and sqlite text timestamps.
type Timestamp struct {
	time.Time
}

// Scan implements sql.Scanner.
func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into a timestamp", src)
}

func (t *Timestamp) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}

// Value implements driver.Valuer.
func (t Timestamp) Value() (driver.Value, error) {
	return t.UTC().Format(timeLayout), nil
}

// timeArg renders a time as a query argument for the driver.
func timeArg(driverName string, t time.Time) any {
	if driverName == DriverSQLite {
		return t.UTC().Format(timeLayout)
	}
	return t.UTC()
}

// Contract is a stored set of matching rules and generators. The payloads
// are the wire JSON of SpecVersion.
type Contract struct {
	ID            types.ContractID `db:"contract_id"`
	Name          string           `db:"name"`
	SpecVersion   string           `db:"spec_version"`
	MatchingRules string           `db:"matching_rules"`
	Generators    string           `db:"generators"`
	CreatedAt     Timestamp        `db:"created_at"`
	UpdatedAt     Timestamp        `db:"updated_at"`
}

// Rules decodes the stored matching rules.
func (c *Contract) Rules() (*matchingrules.MatchingRules, error) {
	doc, err := jsondoc.ParseString(c.MatchingRules)
	if err != nil {
		return nil, fmt.Errorf("contract %s has invalid matching rules: %w", c.Name, err)
	}
	if obj, ok := doc.(map[string]any); !ok || len(obj) == 0 {
		return matchingrules.NewMatchingRules(), nil
	}
	return matchingrules.FromJSON(doc), nil
}

// GeneratorSet decodes the stored generators.
func (c *Contract) GeneratorSet() (*generators.Generators, error) {
	doc, err := jsondoc.ParseString(c.Generators)
	if err != nil {
		return nil, fmt.Errorf("contract %s has invalid generators: %w", c.Name, err)
	}
	obj, _ := doc.(map[string]any)
	return generators.FromJSON(obj), nil
}

// Verification is the recorded outcome of executing a plan for a contract.
type Verification struct {
	ID         types.VerificationID `db:"verification_id"`
	ContractID types.ContractID     `db:"contract_id"`
	PlanName   string               `db:"plan_name"`
	OK         bool                 `db:"ok"`
	Summary    string               `db:"summary"`
	Errors     string               `db:"errors"`
	RecordedAt Timestamp            `db:"recorded_at"`
}

// ErrorList decodes the recorded mismatch messages.
func (v *Verification) ErrorList() []string {
	var out []string
	_ = json.Unmarshal([]byte(v.Errors), &out)
	return out
}

// VerificationResult is what a caller records for a contract.
type VerificationResult struct {
	PlanName string
	OK       bool
	Summary  string
	Errors   []string
}

// OpObserver is told about every store operation.
type OpObserver interface {
	RecordStoreOp(operation string, err error)
}

// ContractStore persists contracts and verification results.
type ContractStore struct {
	db       *sqlx.DB
	queries  *Queries
	logger   *slog.Logger
	observer OpObserver
	now      func() time.Time
}

// NewContractStore returns a store over a migrated database.
func NewContractStore(db *sqlx.DB, logger *slog.Logger) (*ContractStore, error) {
	queries, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContractStore{db: db, queries: queries, logger: logger, now: time.Now}, nil
}

// WithObserver reports store operations to o.
func (s *ContractStore) WithObserver(o OpObserver) *ContractStore {
	s.observer = o
	return s
}

func (s *ContractStore) record(op string, err error) error {
	if s.observer != nil {
		s.observer.RecordStoreOp(op, err)
	}
	if err != nil {
		s.logger.Debug("store operation failed", "operation", op, "error", err)
	}
	return err
}

// PutContract stores the rules and generators under name, replacing any
// contract of the same name. The id of an existing contract is kept.
func (s *ContractStore) PutContract(ctx context.Context, name string, spec types.SpecVersion, rules *matchingrules.MatchingRules, gens *generators.Generators) (types.ContractID, error) {
	id, err := s.putContract(ctx, name, spec, rules, gens)
	return id, s.record("put_contract", err)
}

func (s *ContractStore) putContract(ctx context.Context, name string, spec types.SpecVersion, rules *matchingrules.MatchingRules, gens *generators.Generators) (types.ContractID, error) {
	if name == "" {
		return "", fmt.Errorf("contract name must not be empty")
	}
	if rules == nil {
		rules = matchingrules.NewMatchingRules()
	}
	rulesJSON, err := json.Marshal(rules.ToMap(spec))
	if err != nil {
		return "", fmt.Errorf("failed to encode matching rules: %w", err)
	}

	gensJSON := []byte("{}")
	if gens != nil && !gens.IsEmpty() {
		doc, err := gens.ToMap(spec)
		if err != nil {
			return "", fmt.Errorf("failed to encode generators: %w", err)
		}
		if gensJSON, err = json.Marshal(doc); err != nil {
			return "", fmt.Errorf("failed to encode generators: %w", err)
		}
	}

	now := timeArg(s.db.DriverName(), s.now())
	_, err = s.queries.Exec(ctx, "upsert-contract",
		string(types.NewContractID()), name, spec.String(), string(rulesJSON), string(gensJSON), now, now)
	if err != nil {
		return "", fmt.Errorf("failed to store contract %s: %w", name, err)
	}

	var c Contract
	if err := s.queries.Get(ctx, "get-contract-by-name", &c, name); err != nil {
		return "", fmt.Errorf("failed to read back contract %s: %w", name, err)
	}
	s.logger.Info("stored contract", "contract_id", c.ID, "name", name, "spec", spec.String())
	return c.ID, nil
}

// GetContract returns the contract with the given id.
func (s *ContractStore) GetContract(ctx context.Context, id types.ContractID) (*Contract, error) {
	var c Contract
	err := notFound(s.queries.Get(ctx, "get-contract", &c, string(id)), "contract", string(id))
	if err != nil {
		return nil, s.record("get_contract", err)
	}
	return &c, s.record("get_contract", nil)
}

// GetContractByName returns the contract stored under name.
func (s *ContractStore) GetContractByName(ctx context.Context, name string) (*Contract, error) {
	var c Contract
	err := notFound(s.queries.Get(ctx, "get-contract-by-name", &c, name), "contract", name)
	if err != nil {
		return nil, s.record("get_contract", err)
	}
	return &c, s.record("get_contract", nil)
}

// ListContracts returns every contract ordered by name.
func (s *ContractStore) ListContracts(ctx context.Context) ([]Contract, error) {
	var out []Contract
	if err := s.queries.Select(ctx, "list-contracts", &out); err != nil {
		return nil, s.record("list_contracts", fmt.Errorf("failed to list contracts: %w", err))
	}
	return out, s.record("list_contracts", nil)
}

// DeleteContract removes a contract and its verification history.
func (s *ContractStore) DeleteContract(ctx context.Context, id types.ContractID) error {
	return s.record("delete_contract", s.inTx(ctx, func(q *Queries) error {
		if _, err := q.Exec(ctx, "delete-verifications-for-contract", string(id)); err != nil {
			return fmt.Errorf("failed to delete verifications: %w", err)
		}
		res, err := q.Exec(ctx, "delete-contract", string(id))
		if err != nil {
			return fmt.Errorf("failed to delete contract: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("contract %s: %w", id, types.ErrNotFound)
		}
		return nil
	}))
}

// RecordVerification stores the outcome of a verification for a contract.
func (s *ContractStore) RecordVerification(ctx context.Context, contractID types.ContractID, result VerificationResult) (types.VerificationID, error) {
	id, err := s.recordVerification(ctx, contractID, result)
	return id, s.record("record_verification", err)
}

func (s *ContractStore) recordVerification(ctx context.Context, contractID types.ContractID, result VerificationResult) (types.VerificationID, error) {
	var c Contract
	if err := notFound(s.queries.Get(ctx, "get-contract", &c, string(contractID)), "contract", string(contractID)); err != nil {
		return "", err
	}

	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return "", fmt.Errorf("failed to encode errors: %w", err)
	}

	id := types.NewVerificationID()
	_, err = s.queries.Exec(ctx, "insert-verification",
		string(id), string(contractID), result.PlanName, result.OK, result.Summary, string(errsJSON),
		timeArg(s.db.DriverName(), s.now()))
	if err != nil {
		return "", fmt.Errorf("failed to record verification: %w", err)
	}
	return id, nil
}

// ListVerifications returns the newest verifications of a contract.
func (s *ContractStore) ListVerifications(ctx context.Context, contractID types.ContractID, limit int) ([]Verification, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []Verification
	if err := s.queries.Select(ctx, "list-verifications", &out, string(contractID), limit); err != nil {
		return nil, s.record("list_verifications", fmt.Errorf("failed to list verifications: %w", err))
	}
	return out, s.record("list_verifications", nil)
}

// PruneVerifications deletes verifications recorded before the cutoff and
// returns how many were removed.
func (s *ContractStore) PruneVerifications(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.queries.Exec(ctx, "prune-verifications", timeArg(s.db.DriverName(), before))
	if err != nil {
		return 0, s.record("prune_verifications", fmt.Errorf("failed to prune verifications: %w", err))
	}
	n, _ := res.RowsAffected()
	s.logger.Info("pruned verifications", "before", before.UTC().Format(time.RFC3339), "count", n)
	return n, s.record("prune_verifications", nil)
}

func (s *ContractStore) inTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(s.queries.With(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func notFound(err error, what, key string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, key, types.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s %s: %w", what, key, err)
	}
	return nil
}
