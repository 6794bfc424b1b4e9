package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/grantpilot/grantpilot/internal/domain"
)

// MockUUIDGenerator returns a fixed sequence of IDs, then falls back to
// generated ones. Lets tests assert on specific identifiers.
type MockUUIDGenerator struct {
	mu   sync.Mutex
	ids  []string
	next int
}

func NewMockUUIDGenerator(ids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{ids: ids}
}

func (g *MockUUIDGenerator) NewString() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next < len(g.ids) {
		id := g.ids[g.next]
		g.next++
		return id
	}
	g.next++
	return fmt.Sprintf("generated-id-%d", g.next)
}

// memApprovalRepo is an in-memory ApprovalRepositoryInterface with the same
// semantics as the SQL implementation: idempotent creation on origin request
// ID and compare-and-set decisions.
type memApprovalRepo struct {
	mu       sync.Mutex
	byID     map[string]*domain.ApprovalRequest
	byOrigin map[string]string
}

func newMemApprovalRepo() *memApprovalRepo {
	return &memApprovalRepo{
		byID:     make(map[string]*domain.ApprovalRequest),
		byOrigin: make(map[string]string),
	}
}

func (r *memApprovalRepo) Create(ctx context.Context, a *domain.ApprovalRequest) (*domain.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existingID, ok := r.byOrigin[a.OriginRequestID]; ok {
		clone := *r.byID[existingID]
		return &clone, nil
	}

	clone := *a
	r.byID[a.ID] = &clone
	r.byOrigin[a.OriginRequestID] = a.ID
	result := clone
	return &result, nil
}

func (r *memApprovalRepo) GetByID(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrApprovalNotFound
	}
	clone := *stored
	return &clone, nil
}

func (r *memApprovalRepo) GetByOriginRequestID(ctx context.Context, originRequestID string) (*domain.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byOrigin[originRequestID]
	if !ok {
		return nil, domain.ErrApprovalNotFound
	}
	clone := *r.byID[id]
	return &clone, nil
}

func (r *memApprovalRepo) Decide(ctx context.Context, id string, status domain.ApprovalStatus, actor, notes string, decidedAt time.Time) (*domain.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrApprovalNotFound
	}
	if stored.Status != domain.ApprovalStatusPending {
		return nil, domain.ErrApprovalAlreadyDecided
	}

	stored.Status = status
	stored.DecidedAt = &decidedAt
	stored.DecidedBy = actor
	stored.DecisionNotes = notes

	clone := *stored
	return &clone, nil
}

func (r *memApprovalRepo) ListPending(ctx context.Context, ownerScope string) ([]*domain.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []*domain.ApprovalRequest
	for _, stored := range r.byID {
		if stored.OwnerScope != ownerScope || stored.Status != domain.ApprovalStatusPending {
			continue
		}
		clone := *stored
		pending = append(pending, &clone)
	}

	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].ID < pending[j].ID
	})

	return pending, nil
}

// memGrantRepo is an in-memory GrantRepositoryInterface.
type memGrantRepo struct {
	mu   sync.Mutex
	byID map[string]*domain.AccessGrant
	now  func() time.Time
}

func newMemGrantRepo() *memGrantRepo {
	return &memGrantRepo{
		byID: make(map[string]*domain.AccessGrant),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *memGrantRepo) Create(ctx context.Context, g *domain.AccessGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *g
	r.byID[g.ID] = &clone
	return nil
}

func (r *memGrantRepo) GetByID(ctx context.Context, id string) (*domain.AccessGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrGrantNotFound
	}
	clone := *stored
	return &clone, nil
}

func (r *memGrantRepo) Revoke(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return false, domain.ErrGrantNotFound
	}
	if !stored.Active(r.now()) {
		return false, nil
	}
	stored.Revoked = true
	return true, nil
}

// memAuditRepo records appended audit entries in order.
type memAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
}

func newMemAuditRepo() *memAuditRepo {
	return &memAuditRepo{}
}

func (r *memAuditRepo) Append(ctx context.Context, e *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *e
	r.entries = append(r.entries, &clone)
	return nil
}

func (r *memAuditRepo) actions() []domain.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()

	actions := make([]domain.AuditAction, len(r.entries))
	for i, e := range r.entries {
		actions[i] = e.Action
	}
	return actions
}

func (r *memAuditRepo) countAction(action domain.AuditAction) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, e := range r.entries {
		if e.Action == action {
			count++
		}
	}
	return count
}

// memChunkWriteRepo records created chunks and deletions.
type memChunkWriteRepo struct {
	mu     sync.Mutex
	chunks []*domain.KnowledgeChunk
}

func newMemChunkWriteRepo() *memChunkWriteRepo {
	return &memChunkWriteRepo{}
}

func (r *memChunkWriteRepo) Create(ctx context.Context, c *domain.KnowledgeChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *c
	r.chunks = append(r.chunks, &clone)
	return nil
}

func (r *memChunkWriteRepo) DeleteBySourceDocument(ctx context.Context, ownerScope, sourceDocumentID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []*domain.KnowledgeChunk
	var deleted int64
	for _, c := range r.chunks {
		if c.OwnerScope == ownerScope && c.SourceDocumentID == sourceDocumentID {
			deleted++
			continue
		}
		kept = append(kept, c)
	}
	r.chunks = kept
	return deleted, nil
}

// memEmbeddingJobRepo records queued embedding jobs.
type memEmbeddingJobRepo struct {
	mu   sync.Mutex
	jobs []*domain.EmbeddingJob
}

func newMemEmbeddingJobRepo() *memEmbeddingJobRepo {
	return &memEmbeddingJobRepo{}
}

func (r *memEmbeddingJobRepo) Create(ctx context.Context, job *domain.EmbeddingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *job
	r.jobs = append(r.jobs, &clone)
	return nil
}

// fakeTxRepos bundles the in-memory repositories behind TxRepositories.
type fakeTxRepos struct {
	approvals     *memApprovalRepo
	grants        *memGrantRepo
	audit         *memAuditRepo
	chunks        *memChunkWriteRepo
	embeddingJobs *memEmbeddingJobRepo
}

func newFakeTxRepos() *fakeTxRepos {
	return &fakeTxRepos{
		approvals:     newMemApprovalRepo(),
		grants:        newMemGrantRepo(),
		audit:         newMemAuditRepo(),
		chunks:        newMemChunkWriteRepo(),
		embeddingJobs: newMemEmbeddingJobRepo(),
	}
}

func (f *fakeTxRepos) Approvals() ApprovalRepositoryInterface           { return f.approvals }
func (f *fakeTxRepos) Grants() GrantRepositoryInterface                 { return f.grants }
func (f *fakeTxRepos) Audit() AuditRepositoryInterface                  { return f.audit }
func (f *fakeTxRepos) Chunks() ChunkWriteRepositoryInterface            { return f.chunks }
func (f *fakeTxRepos) EmbeddingJobs() EmbeddingJobWriteRepositoryInterface {
	return f.embeddingJobs
}

// fakeTxRunner runs the transaction function against the shared in-memory
// repositories. There is no rollback; tests that need failure paths inject
// erroring repositories instead.
type fakeTxRunner struct {
	repos *fakeTxRepos
}

func newFakeTxRunner(repos *fakeTxRepos) *fakeTxRunner {
	return &fakeTxRunner{repos: repos}
}

func (r *fakeTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	return fn(r.repos)
}

// stubChunkSearchRepo returns canned results for both search paths.
type stubChunkSearchRepo struct {
	semantic    []domain.RetrievedChunk
	semanticErr error
	lexical     []domain.RetrievedChunk
	lexicalErr  error

	lastScope domain.RetrievalScope
}

func (r *stubChunkSearchRepo) SearchSemantic(ctx context.Context, scope domain.RetrievalScope, embedding []float32, topK int) ([]domain.RetrievedChunk, error) {
	r.lastScope = scope
	return r.semantic, r.semanticErr
}

func (r *stubChunkSearchRepo) SearchLexical(ctx context.Context, scope domain.RetrievalScope, queryText string, topK int) ([]domain.RetrievedChunk, error) {
	r.lastScope = scope
	return r.lexical, r.lexicalErr
}

// stubEmbeddingClient returns a fixed embedding or error.
type stubEmbeddingClient struct {
	embedding []float32
	err       error
}

func (c *stubEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.embedding, nil
}

// stubGenerationClient returns responses in sequence. When the responses
// run out it repeats the last one. A nil generate function uses the
// sequence; otherwise generate overrides everything.
type stubGenerationClient struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	generate  func(ctx context.Context, req GenerationRequest) (string, error)
}

func (c *stubGenerationClient) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	c.mu.Lock()
	call := c.calls
	c.calls++
	c.mu.Unlock()

	if c.generate != nil {
		return c.generate(ctx, req)
	}
	if c.err != nil {
		return "", c.err
	}
	if len(c.responses) == 0 {
		return "", domain.ErrGenerationFailed
	}
	if call >= len(c.responses) {
		call = len(c.responses) - 1
	}
	return c.responses[call], nil
}

func (c *stubGenerationClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
