package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultStream is the stream all engine and gateway entries go to. The
// chain machinery supports arbitrary streams, but a single global stream
// keeps verification a single linear walk.
const DefaultStream = "acs"

// AuditConfig tunes the appender.
type AuditConfig struct {
	// Signer is recorded on every entry. Typically the node identity.
	Signer string

	// WriteTimeout bounds each durable insert. An append already in
	// flight is not abandoned when the caller's context is canceled; the
	// entry must land or the decision must fail.
	WriteTimeout time.Duration
}

// ApplyDefaults fills unset fields.
func (c *AuditConfig) ApplyDefaults() {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
}

// Audit appends hash-chained entries to an AuditStore.
//
// Appends within one stream are serialized by a per-stream mutex, so seq
// numbers are dense and each entry's PrevHash is the hash of the entry
// before it. This relies on a single appender process per store; the ACS
// runs one writer per node and one store per node.
type Audit struct {
	store  AuditStore
	cfg    AuditConfig
	logger *slog.Logger

	mu      sync.Mutex
	streams map[string]*streamTail
}

// streamTail caches the last appended link of one stream. Guarded by its
// own mutex so independent streams do not contend.
type streamTail struct {
	mu     sync.Mutex
	loaded bool
	seq    int64
	hash   string
}

// NewAudit creates an appender over the store.
func NewAudit(store AuditStore, cfg AuditConfig, logger *slog.Logger) *Audit {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Audit{
		store:   store,
		cfg:     cfg,
		logger:  logger.With("component", "audit"),
		streams: make(map[string]*streamTail),
	}
}

func (a *Audit) tail(stream string) *streamTail {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.streams[stream]
	if !ok {
		t = &streamTail{}
		a.streams[stream] = t
	}
	return t
}

// Append assigns the entry its ID, seq, prev hash and hash, then durably
// inserts it. On success the entry is fully populated and its ID is
// returned. On failure nothing is cached and the stream tail is unchanged,
// so a retry re-reads the tail from the store.
func (a *Audit) Append(ctx context.Context, e *AuditEntry) (string, error) {
	if e.Stream == "" {
		e.Stream = DefaultStream
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Signer == "" {
		e.Signer = a.cfg.Signer
	}

	t := a.tail(e.Stream)
	t.mu.Lock()
	defer t.mu.Unlock()

	// The write must not be abandoned mid-flight when the request that
	// triggered it is canceled, otherwise the decision and the ledger
	// could disagree.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.WriteTimeout)
	defer cancel()

	if !t.loaded {
		last, err := a.store.Tail(wctx, e.Stream)
		if err != nil {
			return "", &AppendError{Stream: e.Stream, Cause: err}
		}
		if last != nil {
			t.seq = last.Seq
			t.hash = last.Hash
		}
		t.loaded = true
	}

	e.Seq = t.seq + 1
	e.PrevHash = t.hash
	hash, err := ComputeHash(e)
	if err != nil {
		return "", &AppendError{Stream: e.Stream, Cause: err}
	}
	e.Hash = hash

	if err := a.store.Append(wctx, e); err != nil {
		// The insert may or may not have landed; force a tail re-read
		// on the next append rather than guessing.
		t.loaded = false
		return "", &AppendError{Stream: e.Stream, Cause: err}
	}

	t.seq = e.Seq
	t.hash = e.Hash

	a.logger.Debug("audit entry appended",
		"stream", e.Stream,
		"seq", e.Seq,
		"kind", e.Kind,
		"rule_id", e.RuleID)
	return e.ID, nil
}

// VerifyResult reports the outcome of a chain walk.
type VerifyResult struct {
	Stream  string
	Entries int
	OK      bool
	// Broken is set when OK is false and identifies the first bad link.
	Broken *ChainError
}

// verifyBatchSize bounds how many entries one List call pulls.
const verifyBatchSize = 500

// VerifyChain walks the whole stream in seq order, recomputing every hash
// and checking seq density and prev-hash linkage. Any mutation, insertion
// or deletion after an entry was written makes that entry or a later one
// fail verification.
func (a *Audit) VerifyChain(ctx context.Context, stream string) (*VerifyResult, error) {
	if stream == "" {
		stream = DefaultStream
	}
	res := &VerifyResult{Stream: stream, OK: true}

	var (
		prevHash string
		nextSeq  int64 = 1
	)
	for {
		batch, err := a.store.List(ctx, stream, nextSeq, verifyBatchSize)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return res, nil
		}
		for _, e := range batch {
			if e.Seq != nextSeq {
				res.OK = false
				res.Broken = &ChainError{Stream: stream, Seq: e.Seq, Reason: "sequence gap"}
				return res, nil
			}
			if e.PrevHash != prevHash {
				res.OK = false
				res.Broken = &ChainError{Stream: stream, Seq: e.Seq, Reason: "prev hash mismatch"}
				return res, nil
			}
			want, err := ComputeHash(e)
			if err != nil {
				return nil, err
			}
			if e.Hash != want {
				res.OK = false
				res.Broken = &ChainError{Stream: stream, Seq: e.Seq, Reason: "hash mismatch"}
				return res, nil
			}
			res.Entries++
			prevHash = e.Hash
			nextSeq = e.Seq + 1
		}
	}
}
