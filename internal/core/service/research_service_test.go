package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/taxentia/taxentia-api/internal/core/domain"
	"github.com/taxentia/taxentia-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubQueryRepo struct {
	byID      map[string]*domain.TaxQuery
	order     []*domain.TaxQuery // newest first
	createErr error
	nextID    int
}

func newStubQueryRepo() *stubQueryRepo {
	return &stubQueryRepo{byID: make(map[string]*domain.TaxQuery)}
}

func (r *stubQueryRepo) Create(_ context.Context, q *domain.TaxQuery) (*domain.TaxQuery, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	clone := *q
	r.nextID++
	clone.ID = fmt.Sprintf("query-%d", r.nextID)
	if clone.ConfidenceColor == "" {
		clone.ConfidenceColor = domain.ColorRed
	}
	r.byID[clone.ID] = &clone
	r.order = append([]*domain.TaxQuery{&clone}, r.order...)
	return &clone, nil
}

func (r *stubQueryRepo) FindByID(_ context.Context, id string) (*domain.TaxQuery, error) {
	q, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrQueryNotFound
	}
	clone := *q
	return &clone, nil
}

func (r *stubQueryRepo) ListByUser(_ context.Context, userID string) ([]*domain.TaxQuery, error) {
	out := []*domain.TaxQuery{}
	for _, q := range r.order {
		if q.UserID == userID {
			clone := *q
			out = append(out, &clone)
		}
	}
	return out, nil
}

type stubRetriever struct {
	authorities []domain.Authority
	ids         []string
	err         error
	calls       int
	lastLimit   int
}

func (r *stubRetriever) Retrieve(_ context.Context, _ string, limit int) ([]domain.Authority, []string, error) {
	r.calls++
	r.lastLimit = limit
	if r.err != nil {
		return nil, nil, r.err
	}
	return r.authorities, r.ids, nil
}

type stubAnalysis struct {
	response        *domain.TaxResponse
	calls           int
	lastQuestion    string
	lastAuthorities []domain.Authority
}

func (a *stubAnalysis) Generate(_ context.Context, question string, authorities []domain.Authority) *domain.TaxResponse {
	a.calls++
	a.lastQuestion = question
	a.lastAuthorities = authorities
	return a.response
}

type stubQuota struct {
	err       error
	calls     int
	lastUser  string
	lastLimit int
}

func (q *stubQuota) Consume(_ context.Context, userID string, limit int) error {
	q.calls++
	q.lastUser = userID
	q.lastLimit = limit
	return q.err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func seedUser(repo *stubUserRepo, id, tier string) *domain.User {
	u := &domain.User{ID: id, Email: id + "@example.com", Tier: tier}
	repo.byID[id] = u
	repo.byEmail[u.Email] = u
	return u
}

func analysisResponse(score int) *domain.TaxResponse {
	return &domain.TaxResponse{
		Conclusion: "Start-up expenditures are deductible up to $5,000 under section 195(b).",
		Authorities: []domain.CitedAuthority{
			{SourceType: domain.SourceIRC, Citation: "IRC § 195"},
		},
		Analysis: []domain.AnalysisStep{
			{Step: 1, Text: "Section 195(b) permits the election.", AuthorityRefs: []int{0}},
		},
		ScopeAssumptions: []string{},
		Confidence:       domain.Confidence{Score: score, Color: domain.ColorForScore(score)},
		Disclaimer:       domain.Disclaimer,
	}
}

func newTestResearch(queries *stubQueryRepo, users *stubUserRepo, retriever *stubRetriever, analysis *stubAnalysis, quota *stubQuota, topK int) ports.ResearchService {
	var keeper QuotaKeeper
	if quota != nil {
		keeper = quota
	}
	return NewResearchService(queries, users, retriever, analysis, keeper, topK, discardLogger)
}

// ---------------------------------------------------------------------------
// Submit tests
// ---------------------------------------------------------------------------

func TestResearchService_Submit_Success(t *testing.T) {
	queries := newStubQueryRepo()
	users := newStubUserRepo()
	seedUser(users, "user-1", domain.TierTrial)
	retriever := &stubRetriever{
		authorities: startupAuthorities(),
		ids:         []string{"irc-IRC-195-chunk-0", "regs-Treas-Reg-1-195-1-chunk-0"},
	}
	analysis := &stubAnalysis{response: analysisResponse(90)}
	quota := &stubQuota{}
	svc := newTestResearch(queries, users, retriever, analysis, quota, 0)

	created, err := svc.Submit(context.Background(), "user-1", "  Can I deduct start-up costs?  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created.ID == "" {
		t.Error("expected an assigned query id")
	}
	if created.Query != "Can I deduct start-up costs?" {
		t.Errorf("question not trimmed: %q", created.Query)
	}
	if quota.calls != 1 || quota.lastUser != "user-1" || quota.lastLimit != 10 {
		t.Errorf("quota called with user=%q limit=%d (calls=%d)", quota.lastUser, quota.lastLimit, quota.calls)
	}
	if retriever.lastLimit != DefaultTopK {
		t.Errorf("expected retrieval limit %d, got %d", DefaultTopK, retriever.lastLimit)
	}
	if analysis.calls != 1 || analysis.lastQuestion != "Can I deduct start-up costs?" {
		t.Errorf("analysis called %d times with %q", analysis.calls, analysis.lastQuestion)
	}
	if len(analysis.lastAuthorities) != 2 {
		t.Errorf("analysis given %d authorities", len(analysis.lastAuthorities))
	}
	if created.Confidence != 90 || created.ConfidenceColor != domain.ColorGreen {
		t.Errorf("expected 90/green, got %d/%s", created.Confidence, created.ConfidenceColor)
	}
	if len(created.RetrievedIDs) != 2 || created.RetrievedIDs[0] != "irc-IRC-195-chunk-0" {
		t.Errorf("retrieved ids not kept: %v", created.RetrievedIDs)
	}
	if created.CreatedAt.IsZero() {
		t.Error("CreatedAt must not be zero")
	}
	if created.Response == nil || created.Response.Conclusion != analysis.response.Conclusion {
		t.Error("response not attached to the stored query")
	}
}

func TestResearchService_Submit_EmptyQuestion(t *testing.T) {
	queries := newStubQueryRepo()
	users := newStubUserRepo()
	seedUser(users, "user-1", domain.TierTrial)
	retriever := &stubRetriever{}
	svc := newTestResearch(queries, users, retriever, &stubAnalysis{}, nil, 0)

	for _, question := range []string{"", "   ", "\n\t"} {
		_, err := svc.Submit(context.Background(), "user-1", question)
		if !errors.Is(err, domain.ErrInvalidQuery) {
			t.Errorf("question %q: expected ErrInvalidQuery, got %v", question, err)
		}
	}
	if retriever.calls != 0 {
		t.Errorf("retriever must not run for empty questions, got %d calls", retriever.calls)
	}
	if len(queries.byID) != 0 {
		t.Error("nothing should be stored for empty questions")
	}
}

func TestResearchService_Submit_UnknownUser(t *testing.T) {
	svc := newTestResearch(newStubQueryRepo(), newStubUserRepo(), &stubRetriever{}, &stubAnalysis{}, nil, 0)

	_, err := svc.Submit(context.Background(), "ghost", "question")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestResearchService_Submit_QuotaExceeded(t *testing.T) {
	queries := newStubQueryRepo()
	users := newStubUserRepo()
	seedUser(users, "user-1", domain.TierTrial)
	retriever := &stubRetriever{}
	quota := &stubQuota{err: domain.ErrQuotaExceeded}
	svc := newTestResearch(queries, users, retriever, &stubAnalysis{}, quota, 0)

	_, err := svc.Submit(context.Background(), "user-1", "question")
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if retriever.calls != 0 {
		t.Error("retriever must not run once the quota is spent")
	}
	if len(queries.byID) != 0 {
		t.Error("nothing should be stored once the quota is spent")
	}
}

func TestResearchService_Submit_QuotaBackendDown(t *testing.T) {
	queries := newStubQueryRepo()
	users := newStubUserRepo()
	seedUser(users, "user-1", domain.TierTrial)
	retriever := &stubRetriever{authorities: startupAuthorities(), ids: []string{"a", "b"}}
	quota := &stubQuota{err: errors.New("redis: connection refused")}
	svc := newTestResearch(queries, users, retriever, &stubAnalysis{response: analysisResponse(80)}, quota, 0)

	created, err := svc.Submit(context.Background(), "user-1", "question")
	if err != nil {
		t.Fatalf("a broken quota backend must not block research: %v", err)
	}
	if created.Confidence != 80 {
		t.Errorf("expected the real analysis to run, got confidence %d", created.Confidence)
	}
}

func TestResearchService_Submit_UnlimitedTier(t *testing.T) {
	queries := newStubQueryRepo()
	users := newStubUserRepo()
	seedUser(users, "user-1", domain.TierEnterprise)
	quota := &stubQuota{}
	svc := newTestResearch(queries, users, &stubRetriever{}, &stubAnalysis{response: analysisResponse(85)}, quota, 0)

	if _, err := svc.Submit(context.Background(), "user-1", "question"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quota.lastLimit != 0 {
		t.Errorf("enterprise tier should pass limit 0 (unlimited), got %d", quota.lastLimit)
	}
}

func TestResearchService_Submit_RetrievalFailure_Fallback(t *testing.T) {
	queries := newStubQueryRepo()
	users := newStubUserRepo()
	seedUser(users, "user-1", domain.TierTrial)
	retriever := &stubRetriever{err: errors.New("qdrant unreachable")}
	analysis := &stubAnalysis{response: analysisResponse(90)}
	svc := newTestResearch(queries, users, retriever, analysis, nil, 0)

	created, err := svc.Submit(context.Background(), "user-1", "question")
	if err != nil {
		t.Fatalf("retrieval failure must degrade, not fail: %v", err)
	}
	if analysis.calls != 0 {
		t.Error("analysis must not run without retrieval results")
	}
	if created.Response.Conclusion != FallbackConclusion {
		t.Errorf("expected fallback conclusion, got %q", created.Response.Conclusion)
	}
	if created.Confidence != 0 || created.ConfidenceColor != domain.ColorRed {
		t.Errorf("expected 0/red, got %d/%s", created.Confidence, created.ConfidenceColor)
	}
	if len(created.RetrievedIDs) != 0 {
		t.Errorf("no retrieved ids expected, got %v", created.RetrievedIDs)
	}
}

func TestResearchService_Submit_PersistFailure(t *testing.T) {
	queries := newStubQueryRepo()
	queries.createErr = errors.New("mongo: server selection timeout")
	users := newStubUserRepo()
	seedUser(users, "user-1", domain.TierTrial)
	svc := newTestResearch(queries, users, &stubRetriever{}, &stubAnalysis{response: analysisResponse(85)}, nil, 0)

	_, err := svc.Submit(context.Background(), "user-1", "question")
	if err == nil {
		t.Fatal("expected persistence error to surface")
	}
}

func TestResearchService_Submit_CustomTopK(t *testing.T) {
	queries := newStubQueryRepo()
	users := newStubUserRepo()
	seedUser(users, "user-1", domain.TierTrial)
	retriever := &stubRetriever{}
	svc := newTestResearch(queries, users, retriever, &stubAnalysis{response: analysisResponse(85)}, nil, 8)

	if _, err := svc.Submit(context.Background(), "user-1", "question"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retriever.lastLimit != 8 {
		t.Errorf("expected retrieval limit 8, got %d", retriever.lastLimit)
	}
}

// ---------------------------------------------------------------------------
// History / Get tests
// ---------------------------------------------------------------------------

func TestResearchService_History_OwnQueriesNewestFirst(t *testing.T) {
	queries := newStubQueryRepo()
	users := newStubUserRepo()
	seedUser(users, "user-1", domain.TierTrial)
	seedUser(users, "user-2", domain.TierTrial)
	svc := newTestResearch(queries, users, &stubRetriever{}, &stubAnalysis{response: analysisResponse(85)}, nil, 0)

	first, _ := svc.Submit(context.Background(), "user-1", "first question")
	time.Sleep(time.Millisecond)
	second, _ := svc.Submit(context.Background(), "user-1", "second question")
	if _, err := svc.Submit(context.Background(), "user-2", "other user"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history, err := svc.History(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(history))
	}
	if history[0].ID != second.ID || history[1].ID != first.ID {
		t.Errorf("expected newest first, got %s then %s", history[0].ID, history[1].ID)
	}
}

func TestResearchService_Get_Success(t *testing.T) {
	queries := newStubQueryRepo()
	users := newStubUserRepo()
	seedUser(users, "user-1", domain.TierTrial)
	svc := newTestResearch(queries, users, &stubRetriever{}, &stubAnalysis{response: analysisResponse(85)}, nil, 0)

	created, _ := svc.Submit(context.Background(), "user-1", "question")

	got, err := svc.Get(context.Background(), "user-1", created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("expected query %q, got %q", created.ID, got.ID)
	}
}

func TestResearchService_Get_Forbidden(t *testing.T) {
	queries := newStubQueryRepo()
	users := newStubUserRepo()
	seedUser(users, "user-1", domain.TierTrial)
	svc := newTestResearch(queries, users, &stubRetriever{}, &stubAnalysis{response: analysisResponse(85)}, nil, 0)

	created, _ := svc.Submit(context.Background(), "user-1", "question")

	_, err := svc.Get(context.Background(), "user-2", created.ID)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestResearchService_Get_NotFound(t *testing.T) {
	svc := newTestResearch(newStubQueryRepo(), newStubUserRepo(), &stubRetriever{}, &stubAnalysis{}, nil, 0)

	_, err := svc.Get(context.Background(), "user-1", "missing")
	if !errors.Is(err, domain.ErrQueryNotFound) {
		t.Fatalf("expected ErrQueryNotFound, got %v", err)
	}
}
